package api

import (
	"context"
	"net/http"
	"time"

	"issuescout/internal/auth"
	"issuescout/internal/port"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionTester 检查 GitHub 凭证是否可用，返回 token 对应的登录名
type ConnectionTester interface {
	TestConnection(ctx context.Context) (string, error)
}

// Pinger 健康检查用
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 是 Server 的依赖，Registry 为空时使用独立的 registry
type Deps struct {
	Searcher  port.IssueSearcher
	GitHub    ConnectionTester
	Bookmarks port.BookmarkRepository
	Recent    port.RecentlyViewedRepository
	DB        Pinger
	Auth      *auth.Service
	OAuth     *auth.GitHubOAuth
	Registry  *prometheus.Registry
}

type Server struct {
	searcher  port.IssueSearcher
	github    ConnectionTester
	bookmarks port.BookmarkRepository
	recent    port.RecentlyViewedRepository
	db        Pinger
	authSvc   *auth.Service
	oauth     *auth.GitHubOAuth

	registry *prometheus.Registry
	metrics  *httpMetrics
	mux      *http.ServeMux
	handler  http.Handler
	nowFunc  func() time.Time
}

func NewServer(deps Deps) *Server {
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := &Server{
		searcher:  deps.Searcher,
		github:    deps.GitHub,
		bookmarks: deps.Bookmarks,
		recent:    deps.Recent,
		db:        deps.DB,
		authSvc:   deps.Auth,
		oauth:     deps.OAuth,
		registry:  registry,
		metrics:   newHTTPMetrics(registry),
		mux:       http.NewServeMux(),
		nowFunc:   time.Now,
	}
	s.routes()

	// 中间件不能替换 *http.Request，否则外层拿不到 mux 写入的 r.Pattern
	var h http.Handler = s.mux
	h = requestBodyLimitMiddleware(h)
	h = requestMetricsMiddleware(s.metrics, h)
	h = requestLoggingMiddleware(h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Issues
	s.mux.HandleFunc("GET /api/issues", s.handleSearchIssues)
	s.mux.HandleFunc("GET /api/github/status", s.handleGitHubStatus)

	// Bookmarks
	s.mux.Handle("GET /api/bookmarks", s.requireAuth(s.handleListBookmarks))
	s.mux.Handle("POST /api/bookmarks", s.requireAuth(s.handleSaveBookmark))
	s.mux.Handle("DELETE /api/bookmarks", s.requireAuth(s.handleDeleteBookmark))

	// Recently viewed
	s.mux.Handle("GET /api/recently-viewed", s.requireAuth(s.handleListRecentlyViewed))
	s.mux.Handle("POST /api/recently-viewed", s.requireAuth(s.handleTrackView))

	// Dashboard
	s.mux.Handle("GET /api/stats", s.requireAuth(s.handleStats))
	s.mux.Handle("GET /api/me", s.requireAuth(s.handleMe))

	// Sign in
	s.mux.HandleFunc("GET /auth/github/login", s.handleGitHubLogin)
	s.mux.HandleFunc("GET /auth/github/callback", s.handleGitHubCallback)
	s.mux.HandleFunc("POST /auth/signout", s.handleSignOut)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metricsHandler(s.registry))
}

func (s *Server) requireAuth(fn http.HandlerFunc) http.Handler {
	return auth.Middleware(s.authSvc)(auth.RequireAuth(fn))
}
