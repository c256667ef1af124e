package service

import (
	"fmt"
	"time"

	"issuescout/internal/domain"
)

// ComputeDashboardStats 计算控制台统计卡片
// 最近 7 天内收藏的书签计入本周新增，最近浏览按 issue 去重后计数
func ComputeDashboardStats(bookmarks []domain.Bookmark, recent []domain.RecentlyViewed, now time.Time) domain.DashboardStats {
	weekAgo := now.AddDate(0, 0, -7)

	thisWeek := 0
	for _, b := range bookmarks {
		if !b.CreatedAt.Before(weekAgo) {
			thisWeek++
		}
	}

	trend := "No change this week"
	if thisWeek > 0 {
		trend = fmt.Sprintf("+%d this week", thisWeek)
	}

	return domain.DashboardStats{
		Bookmarks:         len(bookmarks),
		BookmarksThisWeek: thisWeek,
		BookmarkTrend:     trend,
		RecentlyViewed:    len(DedupeRecentlyViewed(recent)),
	}
}
