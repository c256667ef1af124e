package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"issuescout/internal/adapter/localcache"
	"issuescout/internal/adapter/scout"
	"issuescout/internal/common"
	"issuescout/internal/domain"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI 模拟 IssueScout 服务端的一小部分接口
type fakeAPI struct {
	mu        sync.Mutex
	bookmarks []domain.Bookmark
	views     int
}

func (f *fakeAPI) snapshot() ([]domain.Bookmark, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Bookmark{}, f.bookmarks...), f.views
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	body := "Improve the README"
	issues := []domain.Issue{
		{ID: 101, Number: 1, Title: "Fix typo", Body: &body, RepositoryURL: "https://api.github.com/repos/acme/widgets",
			Repository: &domain.Repository{FullName: "acme/widgets", Language: "Go", Stars: 42}},
		{ID: 102, Number: 2, Title: "Add tests", RepositoryURL: "https://api.github.com/repos/acme/gadgets"},
	}

	authed := func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer good-token" }
	unauthorized := func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": common.ErrCodeUnauthenticated, "message": "sign in required"})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Go", r.URL.Query().Get("languages"))
		json.NewEncoder(w).Encode(domain.SearchResult{Items: issues, TotalCount: 2, Page: 1, TotalPages: 1})
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			unauthorized(w)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"userId": "42", "login": "octocat"})
	})
	mux.HandleFunc("GET /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(append([]domain.Bookmark{}, f.bookmarks...))
	})
	mux.HandleFunc("POST /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Issue domain.Issue `json:"issue"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b := domain.NewBookmark("42", req.Issue, time.Now())
		f.mu.Lock()
		f.bookmarks = append(f.bookmarks, b)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(b)
	})
	mux.HandleFunc("POST /api/recently-viewed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Issue domain.Issue `json:"issue"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.views++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(domain.RecentlyViewed{IssueID: req.Issue.ID, IssueData: req.Issue, CreatedAt: time.Now()})
	})
	mux.HandleFunc("GET /api/github/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"connected": true, "login": "scout-bot"})
	})
	return mux
}

func newTestApp(t *testing.T) (*app, *fakeAPI, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	api := &fakeAPI{}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	cache, err := localcache.OpenSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	out := &bytes.Buffer{}
	return newApp(cache, scout.NewClient(server.URL, nil), out), api, out
}

func TestScout_SearchThenBookmarkAnonymously(t *testing.T) {
	a, api, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, options{mode: "search", languages: "Go", sort: "created", order: "desc", page: 1}))
	assert.Contains(t, out.String(), "acme/widgets #1 Fix typo")
	assert.Contains(t, out.String(), "第 1/1 页")

	out.Reset()
	require.NoError(t, a.run(ctx, options{mode: "bookmark", id: 101}))
	assert.Contains(t, out.String(), "已收藏 acme/widgets #1")
	assert.Contains(t, out.String(), "共 1 个书签")
	remote, _ := api.snapshot()
	assert.Empty(t, remote, "anonymous bookmarks stay local")

	out.Reset()
	require.NoError(t, a.run(ctx, options{mode: "bookmarks"}))
	assert.Contains(t, out.String(), "Fix typo")

	out.Reset()
	require.NoError(t, a.run(ctx, options{mode: "bookmark", id: 101}))
	assert.Contains(t, out.String(), "已取消收藏")
	assert.Empty(t, a.bookmarks.Bookmarks())
}

func TestScout_ViewAnonymous(t *testing.T) {
	a, api, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, options{mode: "search", languages: "Go", page: 1}))
	out.Reset()

	require.NoError(t, a.run(ctx, options{mode: "view", id: 102}))
	assert.Contains(t, out.String(), domain.NoDescription)
	_, views := api.snapshot()
	assert.Zero(t, views, "anonymous views are not tracked")

	err := a.run(ctx, options{mode: "view", id: 999})
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeNotFound, common.CodeOf(err))
}

func TestScout_SignInSyncsLocalBookmarks(t *testing.T) {
	a, api, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, options{mode: "search", languages: "Go", page: 1}))
	require.NoError(t, a.run(ctx, options{mode: "bookmark", id: 101}))

	err := a.run(ctx, options{mode: "signin", token: "bad-token"})
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeUnauthenticated, common.CodeOf(err))
	assert.False(t, a.client.Authenticated())

	out.Reset()
	require.NoError(t, a.run(ctx, options{mode: "signin", token: "good-token"}))
	assert.Contains(t, out.String(), "已登录为 octocat")
	assert.Contains(t, out.String(), "已同步 1 个书签")
	remote, _ := api.snapshot()
	require.Len(t, remote, 1)
	assert.Equal(t, int64(101), remote[0].IssueID)

	var token string
	ok, err := a.cache.Load(localcache.KeySessionToken, &token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "good-token", token)

	require.NoError(t, a.run(ctx, options{mode: "view", id: 101}))
	_, views := api.snapshot()
	assert.Equal(t, 1, views)

	require.NoError(t, a.run(ctx, options{mode: "signout"}))
	ok, err = a.cache.Load(localcache.KeySessionToken, &token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, a.bookmarks.Bookmarks(), 1, "local bookmarks survive sign-out")
}

func TestScout_Status(t *testing.T) {
	a, _, out := newTestApp(t)

	require.NoError(t, a.run(context.Background(), options{mode: "status"}))
	assert.Contains(t, out.String(), "GitHub 已连接 (scout-bot)")
	assert.Contains(t, out.String(), "未登录")
}

func TestScout_Validation(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts options
	}{
		{name: "未知模式", opts: options{mode: "mine"}},
		{name: "缺少 id", opts: options{mode: "bookmark"}},
		{name: "缺少 token", opts: options{mode: "signin"}},
		{name: "非法排序", opts: options{mode: "search", sort: "stars"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.run(ctx, tt.opts)
			require.Error(t, err)
			assert.Equal(t, common.ErrCodeValidation, common.CodeOf(err))
		})
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"Go", "Rust"}, splitCSV(" Go, ,Rust "))
	assert.Nil(t, splitCSV(""))
}
