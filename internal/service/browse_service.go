package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"issuescout/internal/domain"
	"issuescout/internal/port"
)

// DefaultVisiblePages 分页条最多展示的页码个数
const DefaultVisiblePages = 5

// BrowseState 是浏览页的一份快照
type BrowseState struct {
	Filter  domain.Filter
	Page    int
	Result  *domain.SearchResult
	Err     error
	Loading bool
}

// BrowseService 维护筛选、排序和分页状态
// 任何筛选条件变化都回到第 1 页并触发一次搜索
// 每次搜索带一个递增的代数，过期的响应直接丢弃
type BrowseService struct {
	searcher port.IssueSearcher

	mu         sync.Mutex
	filter     domain.Filter
	page       int
	result     *domain.SearchResult
	err        error
	loading    bool
	generation uint64
}

func NewBrowseService(searcher port.IssueSearcher, initial domain.Filter) *BrowseService {
	return &BrowseService{
		searcher: searcher,
		filter:   initial.Normalize(),
		page:     1,
	}
}

// State 返回当前状态的快照
func (s *BrowseService) State() BrowseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BrowseState{
		Filter:  s.filter,
		Page:    s.page,
		Result:  s.result,
		Err:     s.err,
		Loading: s.loading,
	}
}

// TotalPages 根据最近一次结果计算总页数，没有结果时为 0
func (s *BrowseService) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPagesLocked()
}

func (s *BrowseService) totalPagesLocked() int {
	if s.result == nil {
		return 0
	}
	return domain.TotalPages(s.result.TotalCount)
}

// Refresh 用当前条件重新搜索当前页
func (s *BrowseService) Refresh(ctx context.Context) error {
	return s.fetch(ctx)
}

func (s *BrowseService) SetLanguages(ctx context.Context, languages []string) error {
	return s.update(ctx, func(f *domain.Filter) { f.Languages = languages })
}

func (s *BrowseService) SetLabels(ctx context.Context, labels []string) error {
	return s.update(ctx, func(f *domain.Filter) { f.Labels = labels })
}

func (s *BrowseService) SetSearchQuery(ctx context.Context, query string) error {
	return s.update(ctx, func(f *domain.Filter) { f.SearchQuery = query })
}

func (s *BrowseService) SetSort(ctx context.Context, key domain.SortKey) error {
	parsed, err := domain.ParseSortKey(string(key))
	if err != nil {
		return err
	}
	return s.update(ctx, func(f *domain.Filter) { f.Sort = parsed })
}

func (s *BrowseService) SetOrder(ctx context.Context, order domain.Order) error {
	parsed, err := domain.ParseOrder(string(order))
	if err != nil {
		return err
	}
	return s.update(ctx, func(f *domain.Filter) { f.Order = parsed })
}

// SetMinStars 负数按 0 处理
func (s *BrowseService) SetMinStars(ctx context.Context, minStars int) error {
	return s.update(ctx, func(f *domain.Filter) { f.MinStars = max(minStars, 0) })
}

func (s *BrowseService) SetNoAssignee(ctx context.Context, noAssignee bool) error {
	return s.update(ctx, func(f *domain.Filter) { f.NoAssignee = noAssignee })
}

// SetFilter 一次替换全部筛选条件
func (s *BrowseService) SetFilter(ctx context.Context, filter domain.Filter) error {
	if _, err := domain.ParseSortKey(string(filter.Sort)); err != nil {
		return err
	}
	if _, err := domain.ParseOrder(string(filter.Order)); err != nil {
		return err
	}
	return s.update(ctx, func(f *domain.Filter) { *f = filter })
}

// HandlePageChange 翻页，页码越界时直接忽略
func (s *BrowseService) HandlePageChange(ctx context.Context, page int) error {
	s.mu.Lock()
	if page < 1 || page > s.totalPagesLocked() {
		s.mu.Unlock()
		return nil
	}
	s.page = page
	s.mu.Unlock()
	return s.fetch(ctx)
}

func (s *BrowseService) update(ctx context.Context, mutate func(*domain.Filter)) error {
	s.mu.Lock()
	mutate(&s.filter)
	s.filter = s.filter.Normalize()
	s.page = 1
	s.mu.Unlock()
	return s.fetch(ctx)
}

func (s *BrowseService) fetch(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	query := domain.Query{Filter: s.filter, Page: s.page}
	s.loading = true
	s.mu.Unlock()

	result, err := s.searcher.Search(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// 已经有更新的请求，丢弃这次响应
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = fmt.Errorf("search issues: %w", err)
		return s.err
	}
	if result.Partial {
		log.Printf("[Browse] 部分语言查询失败: %v", result.FailedLanguages)
	}
	s.result = result
	s.err = nil
	return nil
}

// VisiblePages 返回分页条上展示的页码，以当前页为中心，靠近两端时整体平移
func VisiblePages(current, total, window int) []int {
	if total <= 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultVisiblePages
	}

	start, end := 1, total
	if total > window {
		start = max(current-window/2, 1)
		end = start + window - 1
		if end > total {
			end = total
			start = max(end-window+1, 1)
		}
	}

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
