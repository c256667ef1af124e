package port

import (
	"context"

	"issuescout/internal/domain"
)

// IssueSearcher (侦察兵): 根据筛选条件搜索一页 issue
// 服务端由 GitHub 搜索实现，客户端由 IssueScout API 实现
type IssueSearcher interface {
	Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error)
}

// BookmarkRepository (仓库管理员): 服务端的书签存储
type BookmarkRepository interface {
	// 按创建时间倒序列出用户的书签
	ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error)

	// 按 (userID, issueID) upsert，重复收藏只替换快照
	SaveBookmark(ctx context.Context, userID string, issue domain.Issue) (*domain.Bookmark, error)

	DeleteBookmark(ctx context.Context, userID string, issueID int64) error
}

// RecentlyViewedRepository 服务端的最近浏览存储
type RecentlyViewedRepository interface {
	ListRecentlyViewed(ctx context.Context, userID string, limit int) ([]domain.RecentlyViewed, error)

	// 记录一次浏览并裁剪到最近 domain.RecentlyViewedLimit 条
	TrackView(ctx context.Context, userID string, issue domain.Issue) (*domain.RecentlyViewed, error)
}

// Session 告诉客户端组件当前是否已登录
type Session interface {
	Authenticated() bool
}

// BookmarkRemote 客户端视角的书签接口 (当前登录用户)
type BookmarkRemote interface {
	ListBookmarks(ctx context.Context) ([]domain.Bookmark, error)
	SaveBookmark(ctx context.Context, issue domain.Issue) (*domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, issueID int64) error
}

// RecentlyViewedRemote 客户端视角的最近浏览接口
type RecentlyViewedRemote interface {
	ListRecentlyViewed(ctx context.Context) ([]domain.RecentlyViewed, error)
	TrackView(ctx context.Context, issue domain.Issue) (*domain.RecentlyViewed, error)
}

// LocalCache 客户端本地持久化缓存，值以 JSON 存储
type LocalCache interface {
	// Load 把 key 对应的值解码到 v，key 不存在时返回 false
	Load(key string, v any) (bool, error)
	Store(key string, v any) error
	Delete(key string) error
}
