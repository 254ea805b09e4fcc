package core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"jecnaapi/lib/auth"
	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const (
	testCode = "0341"
	testCsrf = "c0ffee"
)

var testCreds = auth.Credentials{Username: "novakj", Password: "hunter2"}

// fakeCanteen mimics the spring security surface of an iCanteen
// installation: the login page handing out CSRF tokens, the
// j_spring_security_check endpoint, and one secured page.
type fakeCanteen struct {
	server *httptest.Server

	loginPosts   atomic.Int64
	logoutPosts  atomic.Int64
	logoutAlls   atomic.Int64
	securedGets  atomic.Int64
	rejectLogins atomic.Bool
	// relativeRedirects switches the unauthenticated bounce from the
	// absolute login URL to the relative index.jsp form some
	// installations use
	relativeRedirects atomic.Bool
	// when set, secured pages bounce to the login page even for valid
	// sessions, while logins themselves keep succeeding
	bounceSessions atomic.Bool
}

func newFakeCanteen(t *testing.T) *fakeCanteen {
	c := &fakeCanteen{}
	mux := http.NewServeMux()
	prefix := "/" + testCode

	mux.HandleFunc(prefix+"/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: testCsrf, Path: prefix})
		fmt.Fprintf(w, `<html><body><form><input type="hidden" name="_csrf" value="%s"></form></body></html>`, testCsrf)
	})

	mux.HandleFunc(prefix+"/j_spring_security_check", func(w http.ResponseWriter, r *http.Request) {
		c.loginPosts.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if c.rejectLogins.Load() ||
			r.PostForm.Get("j_username") != testCreds.Username ||
			r.PostForm.Get("j_password") != testCreds.Password ||
			r.PostForm.Get("_csrf") != testCsrf {
			w.Header().Set("Location", c.server.URL+prefix+"/login?login_error=1")
			w.WriteHeader(http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-ok", Path: prefix})
		w.Header().Set("Location", c.server.URL+prefix+"/faces/secured/main.jsp")
		w.WriteHeader(http.StatusFound)
	})

	secured := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			c.securedGets.Add(1)
			if c.bounceSessions.Load() || !c.hasSession(r) {
				if c.relativeRedirects.Load() {
					w.Header().Set("Location", prefix+"/index.jsp?termUzt=")
				} else {
					w.Header().Set("Location", c.server.URL+prefix+"/login")
				}
				w.WriteHeader(http.StatusFound)
				return
			}
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc(prefix+"/faces/secured/main.jsp", secured(
		fmt.Sprintf(`<html><body><input name="_csrf" value="%s"><span id="Kredit">100,00 Kč</span></body></html>`, testCsrf)))
	mux.HandleFunc(prefix+"/faces/secured/mobile.jsp", secured("<html><body>menu</body></html>"))

	mux.HandleFunc(prefix+"/logout", func(w http.ResponseWriter, r *http.Request) {
		c.logoutPosts.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "", Path: prefix, MaxAge: -1})
		w.Header().Set("Location", c.server.URL+prefix+"/login")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc(prefix+"/logoutall", func(w http.ResponseWriter, r *http.Request) {
		c.logoutAlls.Add(1)
	})

	c.server = httptest.NewServer(mux)
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeCanteen) hasSession(r *http.Request) bool {
	cookie, err := r.Cookie("JSESSIONID")
	return err == nil && cookie.Value == "session-ok"
}

func (c *fakeCanteen) client(t *testing.T, autoLogin bool) *Client {
	client, err := NewClient(ClientOptions{
		Endpoint:    c.server.URL,
		CanteenCode: testCode,
		AutoLogin:   autoLogin,
		Timeout:     time.Second * 5,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestLogin(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/icanteen/core")
	defer cleanup()

	canteen := newFakeCanteen(t)
	client := canteen.client(t, false)

	require.True(t, client.LastLoginTime().IsZero())
	_, ok := client.SavedCredentials()
	require.False(t, ok)

	start := time.Now()
	success, err := client.Login(context.Background(), testCreds)
	end := time.Now()
	require.NoError(t, err)
	require.True(t, success)

	last := client.LastLoginTime()
	require.False(t, last.Before(start))
	require.False(t, last.After(end))

	saved, ok := client.SavedCredentials()
	require.True(t, ok)
	require.Equal(t, testCreds, saved)

	loggedIn, err := client.IsLoggedIn(context.Background())
	require.NoError(t, err)
	require.True(t, loggedIn)
}

func TestLoginRejected(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, false)

	success, err := client.Login(context.Background(), auth.Credentials{
		Username: "novakj",
		Password: "wrong",
	})
	require.NoError(t, err)
	require.False(t, success)
	require.True(t, client.LastLoginTime().IsZero())

	loggedIn, err := client.IsLoggedIn(context.Background())
	require.NoError(t, err)
	require.False(t, loggedIn)
}

func TestLoginNoRedirect(t *testing.T) {
	// a login response without a Location header is a failed login, not
	// an error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><input name="_csrf" value="%s"></body></html>`, testCsrf)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{Endpoint: server.URL, CanteenCode: testCode})
	require.NoError(t, err)
	defer client.Close()

	success, err := client.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.False(t, success)
}

func TestLoginCsrfMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{Endpoint: server.URL, CanteenCode: testCode})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Login(context.Background(), testCreds)
	var notFound htmlutil.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestQueryAutoLogin(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, true)

	success, err := client.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, int64(1), canteen.loginPosts.Load())

	// the secured mux handlers only accept the exact session value, so
	// overwriting it server side expires the session
	canteen.expireSession(t, client)

	res, err := client.Query(context.Background(), "faces/secured/mobile.jsp", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Contains(t, res.String(), "menu")
	require.Equal(t, int64(2), canteen.loginPosts.Load(), "exactly one re-login POST")
}

func TestQueryAutoLoginRelativeRedirect(t *testing.T) {
	canteen := newFakeCanteen(t)
	canteen.relativeRedirects.Store(true)
	client := canteen.client(t, true)

	success, err := client.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.True(t, success)

	canteen.expireSession(t, client)

	res, err := client.Query(context.Background(), "faces/secured/mobile.jsp", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, int64(2), canteen.loginPosts.Load())
}

func TestQueryAutoLoginFails(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, true)

	success, err := client.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.True(t, success)

	canteen.expireSession(t, client)
	canteen.rejectLogins.Store(true)

	_, err = client.Query(context.Background(), "faces/secured/mobile.jsp", nil)
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	require.Equal(t, int64(2), canteen.loginPosts.Load(), "no second retry after a rejected re-login")
}

func TestQueryRedirectLoopAfterRelogin(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, true)

	success, err := client.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, int64(1), canteen.loginPosts.Load())

	// a misbehaving installation: every login is accepted, yet the
	// secured pages keep bouncing; the retried query must give up
	// instead of logging in again
	canteen.expireSession(t, client)
	canteen.bounceSessions.Store(true)

	_, err = client.Query(context.Background(), "faces/secured/mobile.jsp", nil)
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	require.Equal(t, int64(2), canteen.loginPosts.Load(), "exactly one re-login")
	require.Equal(t, int64(2), canteen.securedGets.Load(), "one retry, no loop")
}

func TestQueryAutoLoginDisabled(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, false)

	_, err := client.Query(context.Background(), "faces/secured/mobile.jsp", nil)
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	require.Equal(t, int64(0), canteen.loginPosts.Load())
}

func TestLogout(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, false)

	success, err := client.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.True(t, success)

	require.NoError(t, client.Logout(context.Background()))
	require.Equal(t, int64(1), canteen.logoutPosts.Load())
	require.Equal(t, int64(1), canteen.logoutAlls.Load())

	_, ok := client.SavedCredentials()
	require.False(t, ok)
}

func TestLogoutWhenNotLoggedIn(t *testing.T) {
	canteen := newFakeCanteen(t)
	client := canteen.client(t, false)

	// never logged in, no XSRF-TOKEN cookie, the probe redirects: the
	// logout is a silent no-op
	require.NoError(t, client.Logout(context.Background()))
	require.Equal(t, int64(0), canteen.logoutPosts.Load())
	require.Equal(t, int64(0), canteen.logoutAlls.Load())
}

// expireSession overwrites the client's session cookie with a value the
// secured handlers reject.
func (c *fakeCanteen) expireSession(t *testing.T, client *Client) {
	t.Helper()
	client.http.GetClient().Jar.SetCookies(client.baseURL, []*http.Cookie{
		{Name: "JSESSIONID", Value: "expired", Path: "/" + testCode},
	})
}
