package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"issuescout/internal/adapter/filter"
	"issuescout/internal/common"
	"issuescout/internal/domain"
	"issuescout/internal/port"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	// perLanguageFetch 按语言查询时每种语言拉取的条数
	perLanguageFetch = 100
	// defaultLookupLimit 仓库详情查询的并发上限
	defaultLookupLimit = 8
)

var _ port.IssueSearcher = (*Searcher)(nil)

// Searcher 实现了 port.IssueSearcher 接口
type Searcher struct {
	client      *github.Client
	lookupLimit int
}

// NewSearcher 初始化 GitHub 客户端，token 为空时匿名访问
func NewSearcher(token string) *Searcher {
	return &Searcher{client: newClient(token), lookupLimit: defaultLookupLimit}
}

// NewSearcherWithBaseURL 指向自定义的 API 地址 (GitHub Enterprise 或测试服务器)
func NewSearcherWithBaseURL(token, baseURL string) (*Searcher, error) {
	s := NewSearcher(token)
	if baseURL == "" {
		return s, nil
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeValidation, "invalid GitHub API url", err)
	}
	s.client.BaseURL = u
	return s, nil
}

func newClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(context.Background(), ts))
}

// Search 搜索一页 issue 并补全仓库信息
// 没有选择语言时走一次合并查询，分页交给 GitHub
// 选择了语言时每种语言单独查询，合并、去重、排序后在本地分页
func (s *Searcher) Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	query.Filter = query.Filter.Normalize()
	if query.Page < 1 {
		query.Page = 1
	}

	if len(query.Languages) == 0 {
		return s.searchCombined(ctx, query)
	}
	return s.searchByLanguage(ctx, query)
}

func (s *Searcher) searchCombined(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	opts := &github.SearchOptions{
		Sort:  string(query.Sort),
		Order: string(query.Order),
		ListOptions: github.ListOptions{
			Page:    query.Page,
			PerPage: domain.PageSize,
		},
	}

	result, _, err := s.client.Search.Issues(ctx, BuildQuery(query.Filter, ""), opts)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeUpstream, "GitHub issue search failed", err)
	}

	lookup := newRepoLookup(s.client, s.lookupLimit)
	issues := toIssues(result.Issues)
	lookup.attach(ctx, issues)
	issues = filter.Apply(issues, query.Filter)

	total := domain.CapTotal(result.GetTotal())
	return &domain.SearchResult{
		Items:              issues,
		TotalCount:         total,
		Page:               query.Page,
		TotalPages:         domain.TotalPages(total),
		RepoLookupFailures: lookup.failures(),
	}, nil
}

func (s *Searcher) searchByLanguage(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	opts := &github.SearchOptions{
		Sort:        string(query.Sort),
		Order:       string(query.Order),
		ListOptions: github.ListOptions{Page: 1, PerPage: perLanguageFetch},
	}

	lookup := newRepoLookup(s.client, s.lookupLimit)
	perLanguage := make([][]domain.Issue, len(query.Languages))
	errs := make([]error, len(query.Languages))

	// 单个语言失败不取消其它语言，只记入 FailedLanguages；全部失败才返回错误
	var g errgroup.Group
	for i, language := range query.Languages {
		g.Go(func() error {
			result, _, err := s.client.Search.Issues(ctx, BuildQuery(query.Filter, language), opts)
			if err != nil {
				errs[i] = fmt.Errorf("language %s: %w", language, err)
				return nil
			}
			issues := toIssues(result.Issues)
			lookup.attach(ctx, issues)
			perLanguage[i] = filter.MatchLanguage(issues, language)
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []domain.Issue
		failed []string
	)
	for i, language := range query.Languages {
		if errs[i] != nil {
			log.Printf("[Search] %s 查询失败，已跳过: %v", language, errs[i])
			failed = append(failed, language)
			continue
		}
		merged = append(merged, perLanguage[i]...)
	}
	if len(failed) == len(query.Languages) {
		return nil, common.WrapError(common.ErrCodeUpstream, "GitHub issue search failed", errors.Join(errs...))
	}

	merged = filter.DedupeByID(merged)
	merged = filter.Sort(merged, query.Sort, query.Order)
	merged = filter.Apply(merged, query.Filter)

	total := domain.CapTotal(len(merged))
	return &domain.SearchResult{
		Items:              filter.Paginate(merged[:total], query.Page, domain.PageSize),
		TotalCount:         total,
		Page:               query.Page,
		TotalPages:         domain.TotalPages(total),
		Partial:            len(failed) > 0,
		FailedLanguages:    failed,
		RepoLookupFailures: lookup.failures(),
	}, nil
}

// TestConnection 用当前 token 调用 GET /user，返回登录名
func (s *Searcher) TestConnection(ctx context.Context) (string, error) {
	user, _, err := s.client.Users.Get(ctx, "")
	if err != nil {
		return "", common.WrapError(common.ErrCodeUpstream, "GitHub connection test failed", err)
	}
	return user.GetLogin(), nil
}

// repoLookup 在一次搜索内按 repository_url 缓存仓库详情
type repoLookup struct {
	client *github.Client
	limit  int

	mu      sync.Mutex
	entries map[string]*repoEntry
	failed  atomic.Int64
}

type repoEntry struct {
	once sync.Once
	repo domain.Repository
}

func newRepoLookup(client *github.Client, limit int) *repoLookup {
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	return &repoLookup{client: client, limit: limit, entries: make(map[string]*repoEntry)}
}

// attach 为每个 issue 填充仓库信息，查询失败时使用占位仓库
func (l *repoLookup) attach(ctx context.Context, issues []domain.Issue) {
	var g errgroup.Group
	g.SetLimit(l.limit)
	for i := range issues {
		g.Go(func() error {
			repo := l.get(ctx, issues[i].RepositoryURL)
			issues[i].Repository = &repo
			return nil
		})
	}
	_ = g.Wait()
}

func (l *repoLookup) get(ctx context.Context, repositoryURL string) domain.Repository {
	l.mu.Lock()
	entry, ok := l.entries[repositoryURL]
	if !ok {
		entry = &repoEntry{}
		l.entries[repositoryURL] = entry
	}
	l.mu.Unlock()

	entry.once.Do(func() {
		entry.repo = l.fetch(ctx, repositoryURL)
	})
	return entry.repo
}

func (l *repoLookup) fetch(ctx context.Context, repositoryURL string) domain.Repository {
	owner, name, ok := splitRepositoryURL(repositoryURL)
	if !ok {
		l.failed.Add(1)
		log.Printf("[Search] 无法解析仓库地址 %q，使用占位数据", repositoryURL)
		return domain.PlaceholderRepository(repositoryURL)
	}

	repo, _, err := l.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		l.failed.Add(1)
		log.Printf("[Search] 获取仓库 %s/%s 详情失败，使用占位数据: %v", owner, name, err)
		return domain.PlaceholderRepository(repositoryURL)
	}
	return toRepository(repo)
}

func (l *repoLookup) failures() int {
	return int(l.failed.Load())
}

// splitRepositoryURL 取 repository_url 的最后两段作为 owner 和 repo
func splitRepositoryURL(repositoryURL string) (owner, name string, ok bool) {
	parts := strings.Split(strings.TrimRight(repositoryURL, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner, name = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}
