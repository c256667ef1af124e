package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"issuescout/internal/common"
	"issuescout/internal/domain"

	"github.com/google/go-github/v53/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMockGitHubServer 创建一个模拟的 GitHub API 服务器
func setupMockGitHubServer(t *testing.T, handler http.HandlerFunc) *Searcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	baseURL, _ := url.Parse(server.URL + "/")
	client.BaseURL = baseURL

	return &Searcher{client: client, lookupLimit: 4}
}

// createMockIssue 创建模拟的 GitHub issue，repo 形如 "owner/name"
func createMockIssue(id int64, repo string, comments int, createdAt time.Time) *github.Issue {
	return &github.Issue{
		ID:            github.Int64(id),
		Number:        github.Int(int(id)),
		Title:         github.String("Issue " + repo),
		HTMLURL:       github.String("https://github.com/" + repo + "/issues/1"),
		State:         github.String("open"),
		Comments:      github.Int(comments),
		CreatedAt:     &github.Timestamp{Time: createdAt},
		UpdatedAt:     &github.Timestamp{Time: createdAt},
		RepositoryURL: github.String("https://api.github.com/repos/" + repo),
		Labels:        []*github.Label{{Name: github.String("good first issue"), Color: github.String("7057ff")}},
	}
}

func createMockRepo(fullName, language string, stars int) *github.Repository {
	parts := strings.Split(fullName, "/")
	return &github.Repository{
		Name:            github.String(parts[1]),
		FullName:        github.String(fullName),
		HTMLURL:         github.String("https://github.com/" + fullName),
		Language:        github.String(language),
		StargazersCount: github.Int(stars),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// repoHandler 根据 /repos/{owner}/{name} 返回仓库详情，未知仓库返回 404
func repoHandler(t *testing.T, w http.ResponseWriter, r *http.Request, repos map[string]*github.Repository) {
	fullName := strings.TrimPrefix(r.URL.Path, "/repos/")
	repo, ok := repos[fullName]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	writeJSON(t, w, repo)
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.Filter
		language string
		want     string
	}{
		{
			name: "默认标签",
			want: `is:issue is:open label:"good first issue"`,
		},
		{
			name:     "多个标签和语言",
			filter:   domain.Filter{Labels: []string{"good first issue", "help wanted"}},
			language: "TypeScript",
			want:     `is:issue is:open label:"good first issue","help wanted" language:"TypeScript"`,
		},
		{
			name:   "全部条件",
			filter: domain.Filter{Labels: []string{"bug"}, MinStars: 100, NoAssignee: true, SearchQuery: "  memory   leak "},
			want:   `is:issue is:open label:"bug" stars:>=100 no:assignee memory leak`,
		},
		{
			name:   "minStars 为 0 不加限定",
			filter: domain.Filter{MinStars: 0},
			want:   `is:issue is:open label:"good first issue"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.filter, tt.language))
		})
	}
}

func TestSearcher_SearchCombined(t *testing.T) {
	now := time.Now().UTC()
	repos := map[string]*github.Repository{
		"vercel/next.js": createMockRepo("vercel/next.js", "TypeScript", 120000),
		"golang/go":      createMockRepo("golang/go", "Go", 110000),
	}

	var (
		mu          sync.Mutex
		repoCalls   = map[string]int{}
		searchQuery url.Values
	)
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/issues":
			mu.Lock()
			searchQuery = r.URL.Query()
			mu.Unlock()
			writeJSON(t, w, &github.IssuesSearchResult{
				Total: github.Int(98000),
				Issues: []*github.Issue{
					createMockIssue(1, "vercel/next.js", 3, now),
					createMockIssue(2, "golang/go", 1, now.Add(-time.Hour)),
					createMockIssue(3, "vercel/next.js", 0, now.Add(-2*time.Hour)),
				},
			})
		case strings.HasPrefix(r.URL.Path, "/repos/"):
			mu.Lock()
			repoCalls[r.URL.Path]++
			mu.Unlock()
			repoHandler(t, w, r, repos)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := searcher.Search(context.Background(), domain.Query{Filter: domain.DefaultFilter(), Page: 2})
	require.NoError(t, err)

	assert.Equal(t, 500, result.TotalCount, "total_count is capped")
	assert.Equal(t, 34, result.TotalPages)
	assert.Equal(t, 2, result.Page)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "TypeScript", result.Items[0].Language())
	assert.Equal(t, 120000, result.Items[0].Stars())
	assert.Equal(t, "golang/go", result.Items[1].RepoFullName())
	assert.Zero(t, result.RepoLookupFailures)
	assert.False(t, result.Partial)

	assert.Equal(t, `is:issue is:open label:"good first issue"`, searchQuery.Get("q"))
	assert.Equal(t, "2", searchQuery.Get("page"))
	assert.Equal(t, "15", searchQuery.Get("per_page"))
	assert.Equal(t, "created", searchQuery.Get("sort"))
	assert.Equal(t, "desc", searchQuery.Get("order"))

	// 同一仓库在一次搜索中只查询一次
	assert.Equal(t, 1, repoCalls["/repos/vercel/next.js"])
	assert.Equal(t, 1, repoCalls["/repos/golang/go"])
}

func TestSearcher_RepositoryLookupFallback(t *testing.T) {
	now := time.Now().UTC()
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/issues":
			writeJSON(t, w, &github.IssuesSearchResult{
				Total:  github.Int(1),
				Issues: []*github.Issue{createMockIssue(7, "ghost/missing", 0, now)},
			})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	result, err := searcher.Search(context.Background(), domain.Query{Filter: domain.DefaultFilter(), Page: 1})
	require.NoError(t, err, "repository lookup failures never fail the search")

	require.Len(t, result.Items, 1)
	repo := result.Items[0].Repository
	require.NotNil(t, repo)
	assert.Equal(t, "missing", repo.Name)
	assert.Equal(t, "ghost/missing", repo.FullName)
	assert.Equal(t, "https://api.github.com/repos/ghost/missing", repo.HTMLURL)
	assert.Equal(t, domain.LanguageUnknown, repo.Language)
	assert.Equal(t, 0, repo.Stars)
	assert.Equal(t, 1, result.RepoLookupFailures)
	assert.Equal(t, 1, result.TotalPages)
}

func TestSearcher_SearchByLanguage(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	repos := map[string]*github.Repository{
		"vercel/next.js":   createMockRepo("vercel/next.js", "TypeScript", 120000),
		"facebook/react":   createMockRepo("facebook/react", "JavaScript", 220000),
		"golang/go":        createMockRepo("golang/go", "Go", 110000),
		"tiny/ts-thing":    createMockRepo("tiny/ts-thing", "TypeScript", 3),
		"spf13/cobra":      createMockRepo("spf13/cobra", "Go", 37000),
		"microsoft/vscode": createMockRepo("microsoft/vscode", "TypeScript", 160000),
	}

	var (
		mu      sync.Mutex
		perPage []string
	)
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/repos/") {
			repoHandler(t, w, r, repos)
			return
		}
		q := r.URL.Query().Get("q")
		mu.Lock()
		perPage = append(perPage, r.URL.Query().Get("per_page"))
		mu.Unlock()

		var issues []*github.Issue
		switch {
		case strings.Contains(q, `language:"TypeScript"`):
			issues = []*github.Issue{
				createMockIssue(1, "vercel/next.js", 4, base.Add(3*time.Hour)),
				createMockIssue(2, "facebook/react", 9, base.Add(5*time.Hour)), // 仓库语言不匹配
				createMockIssue(3, "tiny/ts-thing", 2, base.Add(1*time.Hour)),
				createMockIssue(4, "microsoft/vscode", 7, base.Add(4*time.Hour)),
			}
		case strings.Contains(q, `language:"Go"`):
			issues = []*github.Issue{
				createMockIssue(5, "golang/go", 1, base.Add(6*time.Hour)),
				createMockIssue(4, "microsoft/vscode", 7, base.Add(4*time.Hour)), // TypeScript 仓库，在 Go 查询中被丢弃
				createMockIssue(5, "golang/go", 1, base.Add(6*time.Hour)),        // 重复
				createMockIssue(6, "spf13/cobra", 0, base.Add(2*time.Hour)),
			}
		}
		writeJSON(t, w, &github.IssuesSearchResult{Total: github.Int(len(issues)), Issues: issues})
	})

	query := domain.Query{
		Filter: domain.Filter{Languages: []string{"TypeScript", "Go"}, Sort: domain.SortCreated, Order: domain.OrderDesc},
		Page:   1,
	}
	result, err := searcher.Search(context.Background(), query)
	require.NoError(t, err)

	var got []int64
	for _, issue := range result.Items {
		got = append(got, issue.ID)
	}
	assert.Equal(t, []int64{5, 4, 1, 6, 3}, got)
	assert.Equal(t, 5, result.TotalCount)
	assert.Equal(t, 1, result.TotalPages)
	assert.False(t, result.Partial)
	assert.ElementsMatch(t, []string{"100", "100"}, perPage)

	// star 阈值在客户端生效
	query.MinStars = 50000
	result, err = searcher.Search(context.Background(), query)
	require.NoError(t, err)
	got = got[:0]
	for _, issue := range result.Items {
		got = append(got, issue.ID)
	}
	assert.Equal(t, []int64{5, 4, 1}, got)
}

func TestSearcher_SearchByLanguage_Pagination(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/repos/") {
			writeJSON(t, w, createMockRepo("rust-lang/rust", "Rust", 90000))
			return
		}
		issues := make([]*github.Issue, 0, 40)
		for i := range 40 {
			issues = append(issues, createMockIssue(int64(i+1), "rust-lang/rust", i, base.Add(time.Duration(i)*time.Minute)))
		}
		writeJSON(t, w, &github.IssuesSearchResult{Total: github.Int(40), Issues: issues})
	})

	query := domain.Query{
		Filter: domain.Filter{Languages: []string{"Rust"}, Sort: domain.SortComments, Order: domain.OrderAsc},
		Page:   3,
	}
	result, err := searcher.Search(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 40, result.TotalCount)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Items, 10)
	assert.Equal(t, int64(31), result.Items[0].ID)
	assert.Equal(t, int64(40), result.Items[9].ID)
}

func TestSearcher_PartialFailure(t *testing.T) {
	now := time.Now().UTC()
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/repos/") {
			writeJSON(t, w, createMockRepo("golang/go", "Go", 110000))
			return
		}
		if strings.Contains(r.URL.Query().Get("q"), `language:"Go"`) {
			writeJSON(t, w, &github.IssuesSearchResult{
				Total:  github.Int(1),
				Issues: []*github.Issue{createMockIssue(1, "golang/go", 0, now)},
			})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"unavailable"}`))
	})

	result, err := searcher.Search(context.Background(), domain.Query{
		Filter: domain.Filter{Languages: []string{"Go", "Zig"}},
		Page:   1,
	})
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Equal(t, []string{"Zig"}, result.FailedLanguages)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(1), result.Items[0].ID)
}

func TestSearcher_UpstreamError(t *testing.T) {
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	})

	tests := []struct {
		name  string
		query domain.Query
	}{
		{name: "合并查询失败", query: domain.Query{Filter: domain.DefaultFilter(), Page: 1}},
		{name: "所有语言都失败", query: domain.Query{Filter: domain.Filter{Languages: []string{"Go", "Rust"}}, Page: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := searcher.Search(context.Background(), tt.query)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, common.ErrCodeUpstream, common.CodeOf(err))
		})
	}
}

func TestSearcher_TestConnection(t *testing.T) {
	searcher := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user" {
			writeJSON(t, w, &github.User{Login: github.String("octocat")})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	login, err := searcher.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)

	broken := setupMockGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	})
	_, err = broken.TestConnection(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeUpstream, common.CodeOf(err))
}

func TestNewSearcherWithBaseURL(t *testing.T) {
	s, err := NewSearcherWithBaseURL("token", "http://localhost:9999/api")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/api/", s.client.BaseURL.String())

	s, err = NewSearcherWithBaseURL("", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", s.client.BaseURL.String())
}

func TestSplitRepositoryURL(t *testing.T) {
	owner, name, ok := splitRepositoryURL("https://api.github.com/repos/golang/go")
	assert.True(t, ok)
	assert.Equal(t, "golang", owner)
	assert.Equal(t, "go", name)

	_, _, ok = splitRepositoryURL("")
	assert.False(t, ok)
}
