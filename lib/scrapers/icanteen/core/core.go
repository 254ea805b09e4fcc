// Package core maintains an authenticated session against an iCanteen
// lunch ordering portal.
//
// iCanteen is a Spring application, so the login dance is the standard
// spring-security one: fetch the login page for a fresh session cookie
// and a _csrf form token, then POST j_spring_security_check. All paths
// are relative to the canteen's code prefix, e.g.
// https://strav.nasejidelna.cz/0341/.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"jecnaapi/lib/auth"
	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/telemetry"
	"jecnaapi/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/icanteen/core")

const (
	DefaultEndpoint    = "https://strav.nasejidelna.cz"
	DefaultCanteenCode = "0341"

	loginPagePath   = "login"
	loginSubmitPath = "j_spring_security_check"
	loginProbePath  = "faces/secured/main.jsp"

	csrfCookieName = "XSRF-TOKEN"
)

// ErrAuthenticationRequired is reported when a query lands on the login
// redirect and the session cannot be re-established.
var ErrAuthenticationRequired = errors.New("authentication required")

type ClientOptions struct {
	// Endpoint is the scheme://host part of the canteen installation.
	// Defaults to DefaultEndpoint.
	Endpoint string
	// CanteenCode selects one canteen on a shared installation. Defaults
	// to DefaultCanteenCode.
	CanteenCode string
	// UserAgent overrides the client's User-Agent header. An empty value
	// suppresses the header entirely.
	UserAgent string
	Timeout   time.Duration
	// AutoLogin re-submits the last successful credentials once when a
	// query gets bounced to the login page.
	AutoLogin bool
}

// Client is an iCanteen session. Safe for concurrent use.
type Client struct {
	endpoint string
	code     string
	baseURL  *url.URL
	http     *resty.Client

	mu        sync.Mutex
	autoLogin bool
	saved     *auth.Credentials
	lastLogin time.Time
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.CanteenCode == "" {
		opts.CanteenCode = DefaultCanteenCode
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 10
	}

	base, err := url.Parse(opts.Endpoint + "/" + opts.CanteenCode + "/")
	if err != nil {
		return nil, fmt.Errorf("parse canteen endpoint: %w", err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(base.String(), "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetQueryParams(map[string]string{
			"terminal": "false",
			"printer":  "false",
			"keyboard": "false",
			"status":   "true",
		}).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	// the installation sits behind cloudflare which rejects the default
	// go http client fingerprint
	inner := client.GetClient()
	inner.Transport = cloudflarebp.AddCloudFlareByPass(inner.Transport)
	telemetry.InstrumentResty(client, "scrapers/icanteen/http")

	return &Client{
		endpoint:  opts.Endpoint,
		code:      opts.CanteenCode,
		baseURL:   base,
		http:      client,
		autoLogin: opts.AutoLogin,
	}, nil
}

func (c *Client) Endpoint() string    { return c.endpoint }
func (c *Client) CanteenCode() string { return c.code }

func (c *Client) AutoLogin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoLogin
}

func (c *Client) SetAutoLogin(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoLogin = enabled
}

// SavedCredentials returns the credentials of the last successful login,
// if the client still holds them.
func (c *Client) SavedCredentials() (auth.Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saved == nil {
		return auth.Credentials{}, false
	}
	return *c.saved, true
}

// LastLoginTime reports when the last successful login happened. Zero
// when the client has never logged in.
func (c *Client) LastLoginTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogin
}

func (c *Client) cookieValue(name string) (string, bool) {
	for _, cookie := range c.http.GetClient().Jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}

// Get performs a plain request without any login handling. The path is
// relative to the canteen code prefix.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	for key, values := range query {
		for _, value := range values {
			req.QueryParam.Add(key, value)
		}
	}
	return req.Get(path)
}

// Query performs an authenticated request. When the server bounces the
// request to the login page and auto login is enabled, the last
// successful credentials are re-submitted once and the request retried.
func (c *Client) Query(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "client:Query")
	defer span.End()
	return c.query(ctx, path, query, false)
}

// QueryBody is Query but returns the response body.
func (c *Client) QueryBody(ctx context.Context, path string, query url.Values) ([]byte, error) {
	res, err := c.Query(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// redirectsToLogin recognizes the two shapes the server uses to bounce
// an unauthenticated request: an absolute redirect to the login page and
// a relative redirect to the canteen index.
func (c *Client) redirectsToLogin(res *resty.Response) bool {
	location := res.Header().Get("Location")
	if location == "" {
		return false
	}
	return location == c.endpoint+"/"+c.code+"/login" ||
		strings.HasPrefix(location, "/"+c.code+"/index.jsp")
}

func (c *Client) query(ctx context.Context, path string, query url.Values, retried bool) (*resty.Response, error) {
	res, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if !c.redirectsToLogin(res) {
		return res, nil
	}

	c.mu.Lock()
	eligible := c.autoLogin && c.saved != nil && !retried
	var creds auth.Credentials
	if c.saved != nil {
		creds = *c.saved
	}
	c.mu.Unlock()

	if !eligible {
		return nil, fmt.Errorf("%w: GET %s", ErrAuthenticationRequired, path)
	}

	ok, err := c.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: re-login rejected", ErrAuthenticationRequired)
	}

	return c.query(ctx, path, query, true)
}

// findCsrfToken pulls the spring security token out of a page.
func findCsrfToken(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	token := doc.Find("input[name=_csrf]").AttrOr("value", "")
	if token == "" {
		return "", htmlutil.ElementNotFoundError{Name: "CSRF token", Selector: "input[name=_csrf]"}
	}
	return token, nil
}

// Login authenticates against the canteen. It reports whether the server
// accepted the credentials; an error means the exchange itself failed.
//
// The login page must be fetched each time even when a CSRF token is
// already in the cookie jar, because the request is what establishes a
// fresh session for the token to belong to.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Get(ctx, loginPagePath, nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return false, err
	}
	token, err := findCsrfToken(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "csrf token not found")
		return false, err
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"j_username":                   creds.Username,
			"j_password":                   creds.Password,
			"_spring_security_remember_me": "on",
			"type":                         "web",
			"_csrf":                        token,
			"targetUrl":                    "/",
		}).
		Post(loginSubmitPath)
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return false, err
	}

	// spring redirects back to the login page with login_error=1 on bad
	// credentials, anywhere else on success
	location := res.Header().Get("Location")
	if location == "" || strings.Contains(location, "login_error=1") {
		return false, nil
	}

	c.mu.Lock()
	c.saved = &creds
	c.lastLogin = timezone.Now()
	c.mu.Unlock()
	return true, nil
}

// Logout ends the session. Logging out an already logged out client is
// not an error.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	c.mu.Lock()
	c.saved = nil
	c.mu.Unlock()

	token, ok := c.cookieValue(csrfCookieName)
	if !ok {
		res, err := c.Get(ctx, loginProbePath, nil)
		if err != nil {
			return err
		}
		if isRedirect(res) {
			// nobody is logged in
			return nil
		}
		token, err = findCsrfToken(res.Body())
		if err != nil {
			return err
		}
	}

	_, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"_csrf": token}).
		Post("logout")
	if err != nil {
		return err
	}
	_, err = c.Get(ctx, "logoutall", nil)
	return err
}

// IsLoggedIn probes the session with an authenticated page. The server
// redirects anonymous visitors away from it.
func (c *Client) IsLoggedIn(ctx context.Context) (bool, error) {
	res, err := c.Get(ctx, loginProbePath, nil)
	if err != nil {
		return false, err
	}
	return !isRedirect(res), nil
}

// Close releases the connection pool. The client must not be used after.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

func isRedirect(res *resty.Response) bool {
	return res.StatusCode() >= 300 && res.StatusCode() <= 399
}
