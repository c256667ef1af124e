package domain

import "time"

// RecentlyViewedLimit 每个用户最多保留的最近浏览条数
const RecentlyViewedLimit = 10

// Bookmark 是用户收藏的 issue，IssueData 是收藏时的快照
// 同一个 (UserID, IssueID) 最多一条
type Bookmark struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    string    `json:"userId,omitempty" gorm:"size:64;not null;uniqueIndex:idx_bookmarks_user_issue"`
	IssueID   int64     `json:"issueId" gorm:"not null;uniqueIndex:idx_bookmarks_user_issue"`
	IssueData Issue     `json:"issueData" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBookmark 根据 issue 快照创建书签
func NewBookmark(userID string, issue Issue, now time.Time) Bookmark {
	return Bookmark{
		UserID:    userID,
		IssueID:   issue.ID,
		IssueData: issue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecentlyViewed 是一条浏览记录，每次浏览都会刷新 CreatedAt
type RecentlyViewed struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    string    `json:"userId,omitempty" gorm:"size:64;not null;uniqueIndex:idx_recently_viewed_user_issue;index:idx_recently_viewed_user_created,priority:1"`
	IssueID   int64     `json:"issueId" gorm:"not null;uniqueIndex:idx_recently_viewed_user_issue"`
	IssueData Issue     `json:"issueData" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_recently_viewed_user_created,priority:2,sort:desc"`
}

func (RecentlyViewed) TableName() string {
	return "recently_viewed"
}

// DashboardStats 是控制台顶部的统计卡片
type DashboardStats struct {
	Bookmarks         int    `json:"bookmarks"`
	BookmarksThisWeek int    `json:"bookmarksThisWeek"`
	BookmarkTrend     string `json:"bookmarkTrend"`
	RecentlyViewed    int    `json:"recentlyViewed"`
}
