package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"issuescout/internal/auth"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockOAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"gho_test","token_type":"bearer"}`)
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":583231,"login":"octocat"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newOAuthServer(t *testing.T, github *httptest.Server) (*Server, *auth.Service) {
	t.Helper()
	authSvc := auth.NewService(testSecret, time.Hour)
	oauth, err := auth.NewGitHubOAuth("client-id", "client-secret", "http://localhost/auth/github/callback").
		WithEndpoints(github.URL+"/login/oauth/authorize", github.URL+"/login/oauth/access_token", github.URL)
	require.NoError(t, err)
	return NewServer(Deps{Auth: authSvc, OAuth: oauth, Registry: prometheus.NewRegistry()}), authSvc
}

func TestGitHubLoginFlow(t *testing.T) {
	github := setupMockOAuthServer(t)
	server, authSvc := newOAuthServer(t, github)

	// 1. 跳转到授权页并写入 state cookie
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)
	assert.Equal(t, state, stateCookie.Value)
	assert.True(t, stateCookie.HttpOnly)

	// 2. 回调签发会话 token
	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc&state="+state, nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state})
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "583231", session.UserID)
	assert.Equal(t, "octocat", session.Login)

	claims, err := authSvc.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "583231", claims.UserID)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.Equal(t, session.Token, sessionCookie.Value)

	// 3. cookie 会话可以访问 /api/me
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"583231","login":"octocat"}`, rec.Body.String())
}

func TestGitHubCallback_Rejects(t *testing.T) {
	github := setupMockOAuthServer(t)
	server, _ := newOAuthServer(t, github)

	tests := []struct {
		name   string
		target string
		cookie string
	}{
		{name: "没有 state cookie", target: "/auth/github/callback?code=abc&state=s1"},
		{name: "state 不一致", target: "/auth/github/callback?code=abc&state=s1", cookie: "s2"},
		{name: "缺少 code", target: "/auth/github/callback?state=s1", cookie: "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGitHubLogin_NotConfigured(t *testing.T) {
	server := NewServer(Deps{Auth: auth.NewService(testSecret, time.Hour), Registry: prometheus.NewRegistry()})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignOut(t *testing.T) {
	server := NewServer(Deps{Auth: auth.NewService(testSecret, time.Hour), Registry: prometheus.NewRegistry()})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
