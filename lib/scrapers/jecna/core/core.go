package core

import (
	"bytes"
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

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/jecna/core")

const (
	DefaultEndpoint = "https://www.spsejecna.cz"

	SessionCookieName = "JSESSIONID"
	roleCookieName    = "WTDGUID"

	loginPath  = "/user/login"
	logoutPath = "/user/logout"
	// redirect target the server uses for expired or missing sessions
	needLoginPath = "/user/need-login"
	// smallest authenticated page, so the cheapest login probe
	loginProbePath = "/user-student/record-list"
)

// ErrAuthenticationRequired is returned when a request needed a valid
// session and none could be established: auto-login is off, no credentials
// are saved, or the re-login itself failed.
var ErrAuthenticationRequired = errors.New("authentication required")

// Role selects which view of the portal the server renders. It is a
// rendering mode carried in a cookie, independent of whether anyone is
// logged in.
type Role int

const (
	RoleInterested Role = iota
	RoleStudent
	RoleEmployee
)

func (r Role) cookieValue() string {
	switch r {
	case RoleStudent:
		return "10"
	case RoleEmployee:
		return "100"
	default:
		return "0"
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleEmployee:
		return "employee"
	default:
		return "interested"
	}
}

// LoginResult distinguishes a fresh login from finding the session
// already authenticated. Failed means the server rejected the
// credentials, which is an expected outcome, not an error.
type LoginResult int

const (
	LoginFailed LoginResult = iota
	LoggedIn
	AlreadyLoggedIn
)

func (r LoginResult) Success() bool {
	return r != LoginFailed
}

type ClientOptions struct {
	// base origin, DefaultEndpoint when empty
	Endpoint string
	// sent verbatim; empty omits the User-Agent header entirely
	UserAgent string
	// per HTTP call, not per logical operation; defaults to 10s
	Timeout time.Duration
	// when true, an expired session is transparently re-established once
	// per query using the credentials of the last successful login
	AutoLogin bool
	// initial rendering role, RoleInterested when unset
	Role Role
}

// Client is the authenticated session client for the school portal. It
// owns the cookie jar and the HTTP connection pool; Close releases them.
//
// Methods may be called from multiple goroutines, but concurrent queries
// that each hit an expired session will each trigger their own re-login.
// Logging in twice is harmless, just wasteful; callers that care should
// serialize.
type Client struct {
	baseURL *url.URL
	http    *resty.Client

	mu        sync.Mutex
	autoLogin bool
	saved     *auth.Credentials
	lastLogin time.Time
	role      Role
}

func NewClient(opts ClientOptions) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 10
	}

	client := resty.New()
	client.SetBaseURL(endpoint)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	// redirects must come back to the caller: the Location header is how
	// expired sessions are detected
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	// an empty value suppresses net/http's default User-Agent
	client.SetHeader("User-Agent", opts.UserAgent)

	telemetry.InstrumentResty(client, "scrapers/jecna/http")

	c := &Client{
		baseURL:   baseURL,
		http:      client,
		autoLogin: opts.AutoLogin,
	}
	c.SetRole(opts.Role)
	return c, nil
}

func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

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

// LastLoginTime reports when the last successful login happened, zero if
// none has.
func (c *Client) LastLoginTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogin
}

// Role reports the last role set through SetRole. The value may be stale
// if the cookie expired server side.
func (c *Client) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// SetRole writes the role cookie. This is a purely local operation, no
// request is made; it only changes what the next request returns.
func (c *Client) SetRole(role Role) {
	c.SetCookie(roleCookieName, role.cookieValue())
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

// SetCookie stores a cookie scoped to the portal origin.
func (c *Client) SetCookie(name, value string) {
	c.http.GetClient().Jar.SetCookies(c.baseURL, []*http.Cookie{
		{Name: name, Value: value, Path: "/"},
	})
}

// CookieValue reads a cookie by name from the jar.
func (c *Client) CookieValue(name string) (string, bool) {
	for _, cookie := range c.http.GetClient().Jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}

// SessionCookie returns the server session identifier, if any.
func (c *Client) SessionCookie() (string, bool) {
	return c.CookieValue(SessionCookieName)
}

func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must begin with a slash: %q", path)
	}
	return nil
}

// Get issues a plain request with no authentication handling. Redirect
// responses are returned unfollowed.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	return req.Get(path)
}

// Query issues a request with auto-login handling: if the response is a
// redirect to the login page and re-login is possible, it logs back in
// with the saved credentials and retries the request exactly once.
// Any other response, including non-login redirects, is returned as is.
func (c *Client) Query(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	return c.query(ctx, path, query, false)
}

// QueryBody is Query returning the response body as text.
func (c *Client) QueryBody(ctx context.Context, path string, query url.Values) (string, error) {
	res, err := c.query(ctx, path, query, false)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// retried guards against login redirect loops: it is set on the single
// retry a call chain is allowed, so a second redirect after a successful
// re-login surfaces as ErrAuthenticationRequired instead of looping.
func (c *Client) query(ctx context.Context, path string, query url.Values, retried bool) (*resty.Response, error) {
	res, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	location := res.Header().Get("Location")
	if location == "" || !strings.HasPrefix(location, c.baseURL.String()+needLoginPath) {
		return res, nil
	}

	// redirect to login

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

	result, err := c.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !result.Success() {
		return nil, fmt.Errorf("%w: re-login rejected", ErrAuthenticationRequired)
	}

	return c.query(ctx, path, query, true)
}

// Login authenticates the credentials against the portal.
//
// It returns AlreadyLoggedIn without submitting anything when the session
// is still valid, LoginFailed when the server rejects the credentials
// (including a malformed login response with no Location header), and an
// error only for transport failures or structurally broken pages (no
// token3 field where one is expected).
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	// some roles don't render the login form at all, the student view
	// always does
	c.SetRole(RoleStudent)

	res, err := c.Get(ctx, "/", nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch root page")
		return LoginFailed, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse root page")
		return LoginFailed, err
	}

	if doc.Find(`[href="` + logoutPath + `"]`).Length() > 0 {
		span.AddEvent("already logged in")
		return AlreadyLoggedIn, nil
	}

	token3 := doc.Find("input[name=token3]").AttrOr("value", "")
	if token3 == "" {
		span.SetStatus(codes.Error, "token3 not found")
		return LoginFailed, htmlutil.ElementNotFoundError{Name: "token3", Selector: "input[name=token3]"}
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user":   creds.Username,
			"pass":   creds.Password,
			"token3": token3,
		}).
		Post(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return LoginFailed, err
	}

	// success is a redirect to exactly the site root; a redirect back to
	// the login page (or no redirect at all) is a rejected login
	if res.StatusCode() < 300 || res.StatusCode() > 399 {
		return LoginFailed, nil
	}
	if res.Header().Get("Location") != "/" {
		return LoginFailed, nil
	}

	c.mu.Lock()
	c.saved = &creds
	c.lastLogin = timezone.Now()
	c.mu.Unlock()

	return LoggedIn, nil
}

// Logout invalidates the server session and forgets the saved
// credentials. Cookies are left in place, the server round trip is what
// invalidates them.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	c.mu.Lock()
	c.saved = nil
	c.mu.Unlock()

	_, err := c.Get(ctx, logoutPath, nil)
	return err
}

// IsLoggedIn probes the session with a cheap authenticated page. The
// server answers 302 to the login page when nobody is logged in.
func (c *Client) IsLoggedIn(ctx context.Context) (bool, error) {
	res, err := c.Get(ctx, loginProbePath, nil)
	if err != nil {
		return false, err
	}
	return res.StatusCode() == http.StatusOK, nil
}

// Close releases the connection pool. The client must not be used after.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}
