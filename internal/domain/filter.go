package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"issuescout/internal/common"
)

// SortKey 是搜索结果的排序字段
type SortKey string

const (
	SortCreated  SortKey = "created"
	SortUpdated  SortKey = "updated"
	SortComments SortKey = "comments"
)

// Order 是排序方向
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

const (
	// PageSize 每页展示的 issue 数
	PageSize = 15
	// MaxResults GitHub 搜索可翻阅的结果上限，不是真实的结果总数
	MaxResults = 500
)

// Filter 是当前会话的筛选条件 (不持久化)
type Filter struct {
	Languages   []string `json:"languages,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	SearchQuery string   `json:"q,omitempty"`
	Sort        SortKey  `json:"sort"`
	Order       Order    `json:"order"`
	MinStars    int      `json:"min_stars,omitempty"`
	NoAssignee  bool     `json:"no_assignee,omitempty"`
}

// DefaultFilter 最新创建的 good first issue
func DefaultFilter() Filter {
	return Filter{Sort: SortCreated, Order: OrderDesc}
}

// Normalize 去掉空白和重复项，补全默认排序，minStars 不小于 0
func (f Filter) Normalize() Filter {
	out := f
	out.Languages = normalizeTerms(f.Languages)
	out.Labels = normalizeTerms(f.Labels)
	out.SearchQuery = strings.Join(strings.Fields(f.SearchQuery), " ")
	if out.Sort == "" {
		out.Sort = SortCreated
	}
	if out.Order == "" {
		out.Order = OrderDesc
	}
	if out.MinStars < 0 {
		out.MinStars = 0
	}
	return out
}

func normalizeTerms(terms []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(strings.ReplaceAll(term, `"`, ""))
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

// ParseSortKey 校验排序字段，空字符串使用默认值
func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "":
		return SortCreated, nil
	case SortCreated, SortUpdated, SortComments:
		return key, nil
	default:
		return "", common.NewError(common.ErrCodeValidation, fmt.Sprintf("unsupported sort %q", raw))
	}
}

// ParseOrder 校验排序方向，空字符串使用默认值
func ParseOrder(raw string) (Order, error) {
	switch order := Order(strings.ToLower(strings.TrimSpace(raw))); order {
	case "":
		return OrderDesc, nil
	case OrderAsc, OrderDesc:
		return order, nil
	default:
		return "", common.NewError(common.ErrCodeValidation, fmt.Sprintf("unsupported order %q", raw))
	}
}

// Query 是一次搜索请求: 筛选条件加页码
type Query struct {
	Filter
	Page int `json:"page"`
}

// MaxPages 结果上限对应的最大页数
func MaxPages() int {
	return ceilDiv(MaxResults, PageSize)
}

// TotalPages = min(ceil(total/PageSize), ceil(MaxResults/PageSize))
func TotalPages(totalCount int) int {
	if totalCount <= 0 {
		return 0
	}
	return min(ceilDiv(totalCount, PageSize), MaxPages())
}

// CapTotal 把结果总数限制在 MaxResults 以内
func CapTotal(totalCount int) int {
	return max(0, min(totalCount, MaxResults))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ParseQuery 从 URL 参数解析搜索请求
// languages / labels 支持逗号分隔，也支持重复参数
func ParseQuery(values url.Values) (Query, error) {
	q := Query{Page: 1}

	q.Languages = splitValues(values["languages"])
	q.Labels = splitValues(values["labels"])
	q.SearchQuery = values.Get("q")

	sort, err := ParseSortKey(values.Get("sort"))
	if err != nil {
		return Query{}, err
	}
	q.Sort = sort

	order, err := ParseOrder(values.Get("order"))
	if err != nil {
		return Query{}, err
	}
	q.Order = order

	if raw := values.Get("min_stars"); raw != "" {
		stars, err := strconv.Atoi(raw)
		if err != nil || stars < 0 {
			return Query{}, common.NewError(common.ErrCodeValidation, "min_stars must be a non-negative integer")
		}
		q.MinStars = stars
	}

	if raw := values.Get("no_assignee"); raw != "" {
		noAssignee, err := strconv.ParseBool(raw)
		if err != nil {
			return Query{}, common.NewError(common.ErrCodeValidation, "no_assignee must be a boolean")
		}
		q.NoAssignee = noAssignee
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Query{}, common.NewError(common.ErrCodeValidation, "page must be a positive integer")
		}
		q.Page = min(page, MaxPages())
	}

	q.Filter = q.Filter.Normalize()
	return q, nil
}

// Values 把搜索请求编码为 URL 参数，ParseQuery 的逆操作
func (q Query) Values() url.Values {
	values := url.Values{}
	if len(q.Languages) > 0 {
		values.Set("languages", strings.Join(q.Languages, ","))
	}
	if len(q.Labels) > 0 {
		values.Set("labels", strings.Join(q.Labels, ","))
	}
	if q.SearchQuery != "" {
		values.Set("q", q.SearchQuery)
	}
	if q.Sort != "" {
		values.Set("sort", string(q.Sort))
	}
	if q.Order != "" {
		values.Set("order", string(q.Order))
	}
	if q.MinStars > 0 {
		values.Set("min_stars", strconv.Itoa(q.MinStars))
	}
	if q.NoAssignee {
		values.Set("no_assignee", "true")
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	return values
}

func splitValues(raw []string) []string {
	var out []string
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SearchResult 是一页带仓库信息的 issue
type SearchResult struct {
	Items           []Issue  `json:"items"`
	TotalCount      int      `json:"total_count"`
	Page            int      `json:"page"`
	TotalPages      int      `json:"total_pages"`
	Partial         bool     `json:"partial,omitempty"`
	FailedLanguages []string `json:"failed_languages,omitempty"`

	// RepoLookupFailures 仓库详情查询失败、改用占位数据的次数
	RepoLookupFailures int `json:"-"`
}
