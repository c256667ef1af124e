package github

import (
	"fmt"
	"strings"

	"issuescout/internal/domain"
)

// BuildQuery 把筛选条件拼成 GitHub 搜索语法
// 多个标签写在同一个 label: 限定符里，GitHub 按 OR 处理
// language 为空时不加语言限定 (合并查询)
func BuildQuery(f domain.Filter, language string) string {
	f = f.Normalize()

	parts := []string{"is:issue", "is:open"}

	labels := f.Labels
	if len(labels) == 0 {
		labels = []string{domain.DefaultLabel}
	}
	quoted := make([]string, 0, len(labels))
	for _, label := range labels {
		quoted = append(quoted, fmt.Sprintf("%q", label))
	}
	parts = append(parts, "label:"+strings.Join(quoted, ","))

	if language = strings.TrimSpace(language); language != "" {
		parts = append(parts, fmt.Sprintf("language:%q", language))
	}
	if f.MinStars > 0 {
		parts = append(parts, fmt.Sprintf("stars:>=%d", f.MinStars))
	}
	if f.NoAssignee {
		parts = append(parts, "no:assignee")
	}
	if f.SearchQuery != "" {
		parts = append(parts, f.SearchQuery)
	}

	return strings.Join(parts, " ")
}
