package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoshapihoff/bricks/identity/internal/auth"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	"github.com/yoshapihoff/bricks/identity/internal/repository/memory"
	"github.com/yoshapihoff/bricks/identity/internal/service"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	name        string
	subject     string
	claims      map[string]any
	exchangeErr error
}

func (p *fakeProvider) GetAuthURL(state string) string {
	return "https://" + p.name + ".example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "token-for-" + code}, nil
}

func (p *fakeProvider) FetchClaims(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	out := make(map[string]any, len(p.claims))
	for k, v := range p.claims {
		out[k] = v
	}
	return out, nil
}

func (p *fakeProvider) SubjectClaim() string { return p.subject }
func (p *fakeProvider) Name() string         { return p.name }

type testServer struct {
	router *mux.Router
	github *fakeProvider
	google *fakeProvider
	store  *memory.Store
	jwt    *auth.DefaultJWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()

	github := &fakeProvider{name: "github", subject: "id", claims: map[string]any{
		"id": json.Number("42"), "login": "Octo", "avatar_url": "https://avatars.example/42",
	}}
	google := &fakeProvider{name: "google", subject: "sub", claims: map[string]any{
		"sub": "g1", "email": "octo", "name": "Octo Google", "picture": "p.png",
	}}
	store := memory.NewStore()
	jwtSvc := auth.NewJWTService(auth.JWTConfig{Secret: "s3cret", Expiration: time.Hour, CookieName: "session"})

	h := NewAuthHandler(
		oauth.NewServiceWithProviders(github, google),
		service.NewIdentityResolver(store, nil, logger, service.IdentityResolverOptions{TrustGitHubEmailMerge: true}),
		service.NewUserService(store, nil, logger),
		jwtSvc,
		Config{LoginSuccessURL: "/profile", LoginFailureURL: "/login?from=oauth"},
		logger,
	)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &testServer{router: router, github: github, google: google, store: store, jwt: jwtSvc}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login walks the redirect flow and returns the session cookie.
func (s *testServer) login(t *testing.T, provider string) *http.Cookie {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodGet, "/auth/oauth/"+provider+"/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	state := findCookie(rec, stateCookieName)
	require.NotNil(t, state)

	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/"+provider+"/callback?code=abc&state="+url.QueryEscape(state.Value), nil)
	req.AddCookie(state)
	rec = s.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/profile", rec.Header().Get("Location"))
	session := findCookie(rec, "session")
	require.NotNil(t, session)
	return session
}

func TestHealthAndProviders(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/auth/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProvidersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"github", "google"}, resp.Providers)
}

func TestOAuthLoginRedirect(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/auth/oauth/github/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	state := findCookie(rec, stateCookieName)
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.example", location.Host)
	assert.Equal(t, state.Value, location.Query().Get("state"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/auth/oauth/vk/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthCallbackEstablishesSession(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "github")
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(session)
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	assert.Equal(t, "octo", profile["email"])
	assert.Equal(t, "Octo", profile["displayName"])
	assert.Equal(t, "https://avatars.example/42", profile["avatarUrl"])
	assert.Equal(t, "github", profile["provider"])

	// A Google account with the same email joins the same user.
	google := s.login(t, "google")
	req = httptest.NewRequest(http.MethodGet, "/auth/me/identities", nil)
	req.AddCookie(google)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var links []domain.IdentityLink
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&links))
	require.Len(t, links, 2)
	assert.Equal(t, links[0].UserID, links[1].UserID)
}

func TestOAuthCallbackFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *testServer)
		query   string
		state   string
		want    string
	}{
		{
			name:  "provider error",
			query: "error=access_denied",
			want:  "access_denied",
		},
		{
			name:  "state mismatch",
			query: "code=abc&state=forged",
			state: "expected",
			want:  "invalid_state",
		},
		{
			name:  "missing state cookie",
			query: "code=abc&state=expected",
			want:  "invalid_state",
		},
		{
			name:  "missing code",
			query: "state=expected",
			state: "expected",
			want:  "missing_code",
		},
		{
			name:    "exchange failure",
			prepare: func(s *testServer) { s.github.exchangeErr = errors.New("bad code") },
			query:   "code=abc&state=expected",
			state:   "expected",
			want:    "authentication_failed",
		},
		{
			name:    "missing login",
			prepare: func(s *testServer) { delete(s.github.claims, "login") },
			query:   "code=abc&state=expected",
			state:   "expected",
			want:    "missing_email",
		},
		{
			name:    "missing id",
			prepare: func(s *testServer) { delete(s.github.claims, "id") },
			query:   "code=abc&state=expected",
			state:   "expected",
			want:    "missing_provider_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.prepare != nil {
				tt.prepare(s)
			}
			req := httptest.NewRequest(http.MethodGet, "/auth/oauth/github/callback?"+tt.query, nil)
			if tt.state != "" {
				req.AddCookie(&http.Cookie{Name: stateCookieName, Value: tt.state})
			}
			rec := s.do(req)

			require.Equal(t, http.StatusFound, rec.Code)
			location, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/login", location.Path)
			assert.Equal(t, "oauth", location.Query().Get("from"))
			assert.Equal(t, tt.want, location.Query().Get("error"))
			assert.Nil(t, findCookie(rec, "session"))
		})
	}
}

func TestProfileRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/auth/me", strings.NewReader(`{"displayName":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "github")

	req := httptest.NewRequest(http.MethodPost, "/auth/me", strings.NewReader(`{"displayName":"  The Octocat ","bio":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+session.Value)
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UpdateProfileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "updated", resp.Status)
	assert.Equal(t, "The Octocat", resp.DisplayName)
	assert.Equal(t, "hi", resp.Bio)

	// A later login must not clobber the edited name.
	s.login(t, "github")
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(session)
	rec = s.do(req)
	var profile map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	assert.Equal(t, "The Octocat", profile["displayName"])

	req = httptest.NewRequest(http.MethodPost, "/auth/me", strings.NewReader(`{`))
	req.AddCookie(session)
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := findCookie(rec, "session")
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestHandleErrorStatuses(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := &AuthHandler{logger: logger}

	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotAuthenticated, http.StatusUnauthorized},
		{domain.ErrEmailUnavailable, http.StatusBadRequest},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrUnknownProvider, http.StatusNotFound},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.handleError(rec, tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.NotEmpty(t, body.Error)
		assert.NotContains(t, body.Error, "db down")
	}
}

func TestAccessLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/health", entry.Data["path"])
}
