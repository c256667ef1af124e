package filter

import (
	"cmp"
	"slices"
	"strings"

	"issuescout/internal/domain"
)

// MatchLanguage 只保留仓库语言与请求语言一致的 issue (忽略大小写)
// 仓库详情缺失的 issue 语言为 "Unknown"，会被过滤掉
func MatchLanguage(issues []domain.Issue, language string) []domain.Issue {
	filtered := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if strings.EqualFold(issue.Language(), language) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// MinStars 过滤掉仓库 star 数低于阈值的 issue，阈值 <= 0 时不过滤
func MinStars(issues []domain.Issue, minStars int) []domain.Issue {
	if minStars <= 0 {
		return issues
	}
	filtered := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Stars() >= minStars {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// WithoutAssignee 只保留没有负责人的 issue
func WithoutAssignee(issues []domain.Issue) []domain.Issue {
	filtered := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Assignee == nil {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// Apply 在客户端执行 star 阈值和负责人筛选
func Apply(issues []domain.Issue, f domain.Filter) []domain.Issue {
	out := MinStars(issues, f.MinStars)
	if f.NoAssignee {
		out = WithoutAssignee(out)
	}
	return out
}

// DedupeByID 按 issue ID 去重，保留第一次出现的位置
func DedupeByID(issues []domain.Issue) []domain.Issue {
	seen := make(map[int64]struct{}, len(issues))
	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if _, ok := seen[issue.ID]; ok {
			continue
		}
		seen[issue.ID] = struct{}{}
		out = append(out, issue)
	}
	return out
}

// Sort 返回按字段和方向稳定排序后的副本
// created / updated 按时间比较，comments 按数值比较，相等时保持原顺序
func Sort(issues []domain.Issue, key domain.SortKey, order domain.Order) []domain.Issue {
	out := slices.Clone(issues)
	slices.SortStableFunc(out, func(a, b domain.Issue) int {
		c := compare(a, b, key)
		if order == domain.OrderDesc {
			return -c
		}
		return c
	})
	return out
}

func compare(a, b domain.Issue, key domain.SortKey) int {
	switch key {
	case domain.SortUpdated:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case domain.SortComments:
		return cmp.Compare(a.Comments, b.Comments)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// Paginate 截取第 page 页 (从 1 开始)，越界时返回空切片
func Paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := min(start+perPage, len(items))
	return items[start:end]
}
