package domain

import (
	"strings"
	"time"
)

const (
	// LanguageUnknown 仓库详情拿不到时使用的语言占位
	LanguageUnknown = "Unknown"
	// DefaultLabel 没有选择任何标签时默认搜索的标签
	DefaultLabel = "good first issue"
	// NoDescription issue 没有正文时展示的文案
	NoDescription = "No description provided"
)

// Label 代表 issue 上的一个标签
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Repository 代表 issue 所属仓库的元信息 (来自 GitHub 的二次查询)
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"` // 例如 "golang/go"
	HTMLURL  string `json:"html_url"`
	Language string `json:"language"`
	Stars    int    `json:"stargazers_count"`
}

// Assignee 是 issue 的负责人
type Assignee struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Issue 代表 GitHub 搜索返回的一个 issue
// 抓取之后不会被修改，只会被重新抓取
type Issue struct {
	ID            int64       `json:"id"`
	Number        int         `json:"number"`
	Title         string      `json:"title"`
	Body          *string     `json:"body"`
	HTMLURL       string      `json:"html_url"`
	State         string      `json:"state,omitempty"`
	Labels        []Label     `json:"labels"`
	Comments      int         `json:"comments"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	RepositoryURL string      `json:"repository_url"`
	Repository    *Repository `json:"repository,omitempty"`
	Assignee      *Assignee   `json:"assignee"`
}

// Description 返回 issue 正文，正文为空时返回默认文案
func (i Issue) Description() string {
	if i.Body == nil || strings.TrimSpace(*i.Body) == "" {
		return NoDescription
	}
	return *i.Body
}

// RepoFullName 优先使用仓库详情，否则从 repository_url 推导 "owner/name"
func (i Issue) RepoFullName() string {
	if i.Repository != nil && i.Repository.FullName != "" {
		return i.Repository.FullName
	}
	return PlaceholderRepository(i.RepositoryURL).FullName
}

// Language 返回仓库语言，未知时返回 "Unknown"
func (i Issue) Language() string {
	if i.Repository == nil || i.Repository.Language == "" {
		return LanguageUnknown
	}
	return i.Repository.Language
}

// Stars 返回仓库 star 数，没有仓库详情时为 0
func (i Issue) Stars() int {
	if i.Repository == nil {
		return 0
	}
	return i.Repository.Stars
}

// PlaceholderRepository 在仓库详情查询失败时，根据 repository_url 构造一个占位仓库
// 例如 https://api.github.com/repos/golang/go -> {name: "go", full_name: "golang/go"}
func PlaceholderRepository(repositoryURL string) Repository {
	parts := strings.Split(strings.TrimRight(repositoryURL, "/"), "/")

	name := parts[len(parts)-1]
	if name == "" {
		name = LanguageUnknown
	}
	fullName := name
	if len(parts) >= 2 {
		fullName = strings.Join(parts[len(parts)-2:], "/")
	}

	return Repository{
		Name:     name,
		FullName: fullName,
		HTMLURL:  repositoryURL,
		Language: LanguageUnknown,
		Stars:    0,
	}
}
