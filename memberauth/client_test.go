package memberauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexlup06-authgate/memberauth-go/internal/testutil"
)

// helper to create a client pointing at a test server
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(
		srv.URL,
		WithHTTPClient(srv.Client()),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	return client, srv
}

func newFakeAuthClient(t *testing.T) (*Client, *testutil.FakeAuth) {
	t.Helper()

	fake := testutil.NewFakeAuth(t)
	client, err := NewClient(fake.URL(), WithLogger(discardLogger()))
	require.NoError(t, err)

	return client, fake
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient("not a url")
	require.Error(t, err)
}

func TestNewClient_AttachesJarWithoutMutatingCallerClient(t *testing.T) {
	hc := &http.Client{}
	client, err := NewClient("http://localhost:8000/", WithHTTPClient(hc))
	require.NoError(t, err)

	require.Nil(t, hc.Jar)
	require.NotNil(t, client.Jar())
	require.Equal(t, client.Jar(), client.HTTPClient().Jar)
	require.Equal(t, "http://localhost:8000", client.BaseURL())
}

func TestNewClient_WithCookieJar(t *testing.T) {
	script := &scriptedServer{}
	srv := httptest.NewServer(script)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, _ := url.Parse(srv.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: CSRFCookieName, Value: "from-jar", Path: "/"}})

	hc := &http.Client{}
	client, err := NewClient(srv.URL, WithHTTPClient(hc), WithCookieJar(jar))
	require.NoError(t, err)

	require.Same(t, jar, client.Jar())
	require.Same(t, jar, client.HTTPClient().Jar)
	require.Nil(t, hc.Jar)
	csrf, ok := CSRFToken(client.Jar(), client.endpoint(RefreshPath))
	require.True(t, ok)
	require.Equal(t, "from-jar", csrf)

	// A gateway riding on the client's transport sends the same cookies.
	store, _ := newTestStore(t, "cred")
	g := NewGateway(store, &countingRefresher{}, WithGatewayHTTPClient(client.HTTPClient()))
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/a", nil)
	resp, err := g.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, CSRFCookieName+"=from-jar", script.cookies[0])
}

func TestLogin_OK(t *testing.T) {
	client, fake := newFakeAuthClient(t)
	fake.AddUser("member@example.com", "correct-horse")

	cred, err := client.Login(context.Background(), "member@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, cred)

	csrf, ok := CSRFToken(client.Jar(), client.endpoint(RefreshPath))
	require.True(t, ok)
	require.Equal(t, fake.LastCSRF(), csrf)
}

func TestLogin_InvalidCredentials_CarriesServerMessage(t *testing.T) {
	client, fake := newFakeAuthClient(t)
	fake.AddUser("member@example.com", "correct-horse")

	cred, err := client.Login(context.Background(), "member@example.com", "wrong")
	require.Empty(t, cred)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "Invalid email or password", ae.Message)
	require.Equal(t, int64(1), fake.Logins.Load())
}

func TestLogin_NonJSONFailureUsesDefaultMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Equal(t, "Login failed", DisplayMessage(err))
}

func TestLogin_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, "Network error", DisplayMessage(err))
}

func TestRefresh_SendsCSRFFromJar(t *testing.T) {
	client, fake := newFakeAuthClient(t)
	fake.AddUser("member@example.com", "correct-horse")

	_, err := client.Login(context.Background(), "member@example.com", "correct-horse")
	require.NoError(t, err)

	cred, err := client.Refresh(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cred)
	require.Equal(t, int64(1), fake.Refreshes.Load())
}

func TestRefresh_ReadsRotatedCSRFEachTime(t *testing.T) {
	client, fake := newFakeAuthClient(t)
	fake.AddUser("member@example.com", "correct-horse")
	fake.RotateCSRF = true

	_, err := client.Login(context.Background(), "member@example.com", "correct-horse")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Refresh(context.Background())
		require.NoError(t, err, "refresh %d", i)
	}
}

func TestRefresh_MissingCSRFSendsEmptyHeader(t *testing.T) {
	var values []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values = r.Header.Values(CSRFHeaderName)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.Equal(t, []string{""}, values)
}

func TestRefresh_FailuresAreSentinel(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{ not json`)) }},
		{"empty token", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"access_token":""}`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			cred, err := client.Refresh(context.Background())
			require.Empty(t, cred)
			require.ErrorIs(t, err, ErrRefreshFailed)
		})
	}
}

func TestRefresh_HonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.True(t, isCanceled(err))
}

func TestLogout_SwallowsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url, WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NotPanics(t, func() { client.Logout(context.Background()) })
}

func TestLogout_RevokesRefreshAnchor(t *testing.T) {
	client, fake := newFakeAuthClient(t)
	fake.AddUser("member@example.com", "correct-horse")

	_, err := client.Login(context.Background(), "member@example.com", "correct-horse")
	require.NoError(t, err)

	client.Logout(context.Background())
	require.Equal(t, int64(1), fake.Logouts.Load())

	_, err = client.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
}

func TestRegister_OK(t *testing.T) {
	client, _ := newFakeAuthClient(t)

	created, err := client.Register(context.Background(), Profile{
		Identifier: "new@example.com",
		Secret:     "long-enough-pw",
		FirstName:  "Jane",
		LastName:   "Doe",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "new@example.com", created.Email)
	require.Equal(t, "Jane", created.FirstName)
}

func TestRegister_AggregatesFieldErrorsInServerOrder(t *testing.T) {
	client, _ := newFakeAuthClient(t)

	_, err := client.Register(context.Background(), Profile{Identifier: "nope", Secret: "short"})
	require.ErrorIs(t, err, ErrRegistrationFailed)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "value is not a valid email address, password must be at least 8 characters", ae.Message)
	require.Len(t, ae.FieldErrors, 2)
	require.Equal(t, "email", ae.FieldErrors[0].Field)
	require.Equal(t, "password", ae.FieldErrors[1].Field)
}

func TestRegister_StringDetail(t *testing.T) {
	client, fake := newFakeAuthClient(t)
	fake.AddUser("taken@example.com", "whatever-pw")

	_, err := client.Register(context.Background(), Profile{Identifier: "taken@example.com", Secret: "long-enough-pw"})
	require.ErrorIs(t, err, ErrRegistrationFailed)
	require.Equal(t, "Email already registered", DisplayMessage(err))
}

func TestRegister_EmptySuccessBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	created, err := client.Register(context.Background(), Profile{Identifier: "x@example.com", Secret: "pw"})
	require.NoError(t, err)
	require.Equal(t, "x@example.com", created.Email)
}

func TestDisplayMessage(t *testing.T) {
	require.Equal(t, "", DisplayMessage(nil))
	require.Equal(t, "Network error", DisplayMessage(errors.New("dial tcp: refused")))
	require.Equal(t, "Account created but login failed. Please sign in.", DisplayMessage(ErrAutoLoginFailed))
}
