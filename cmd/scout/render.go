package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"issuescout/internal/adapter/scout"
	"issuescout/internal/common"
	"issuescout/internal/domain"
	"issuescout/internal/service"

	"github.com/fatih/color"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	repoColor    = color.New(color.FgMagenta)
	labelColor   = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func successMark() string {
	return successColor.Sprint("✔")
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("⚠"), msg)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s [%s] %v\n", errorColor.Sprint("✘"), common.CodeOf(err), err)
}

func formatLabels(labels []domain.Label) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return labelColor.Sprint("[" + strings.Join(names, ", ") + "]")
}

func printIssueLine(w io.Writer, issue domain.Issue, bookmarked bool) {
	mark := " "
	if bookmarked {
		mark = successColor.Sprint("★")
	}
	fmt.Fprintf(w, "%s %s %s #%d %s\n",
		mark,
		dimColor.Sprintf("%d", issue.ID),
		repoColor.Sprint(issue.RepoFullName()),
		issue.Number,
		titleColor.Sprint(issue.Title),
	)
	fmt.Fprintf(w, "    %s · ★ %d · 💬 %d · %s %s\n",
		issue.Language(),
		issue.Stars(),
		issue.Comments,
		issue.CreatedAt.Format(time.DateOnly),
		formatLabels(issue.Labels),
	)
}

func printSearchResult(w io.Writer, state service.BrowseState, isBookmarked func(int64) bool) {
	result := state.Result
	if len(result.Items) == 0 {
		fmt.Fprintln(w, "📭 没有符合条件的 issue")
		return
	}
	if result.Partial {
		printWarning(w, "部分语言搜索失败: "+strings.Join(result.FailedLanguages, ", "))
	}
	for _, issue := range result.Items {
		printIssueLine(w, issue, isBookmarked(issue.ID))
	}

	totalPages := domain.TotalPages(result.TotalCount)
	pages := service.VisiblePages(state.Page, totalPages, service.DefaultVisiblePages)
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p == state.Page {
			parts = append(parts, titleColor.Sprintf("[%d]", p))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d", p))
	}
	fmt.Fprintf(w, "\n共 %d 条 · 第 %d/%d 页 · %s\n", result.TotalCount, state.Page, totalPages, strings.Join(parts, " "))
}

func printIssueDetail(w io.Writer, issue domain.Issue, bookmarked bool) {
	printIssueLine(w, issue, bookmarked)
	fmt.Fprintf(w, "    %s\n\n", issue.HTMLURL)
	fmt.Fprintln(w, issue.Description())
}

func printToggle(w io.Writer, issue domain.Issue, added bool) {
	if added {
		fmt.Fprintf(w, "%s 已收藏 %s #%d\n", successMark(), issue.RepoFullName(), issue.Number)
		return
	}
	fmt.Fprintf(w, "%s 已取消收藏 %s #%d\n", successMark(), issue.RepoFullName(), issue.Number)
}

func printBookmarks(w io.Writer, bookmarks []domain.Bookmark) {
	if len(bookmarks) == 0 {
		fmt.Fprintln(w, "📭 还没有书签，用 -mode bookmark -id <issue> 收藏")
		return
	}
	for _, b := range bookmarks {
		printIssueLine(w, b.IssueData, true)
	}
	fmt.Fprintf(w, "\n共 %d 个书签\n", len(bookmarks))
}

func printRecent(w io.Writer, entries []domain.RecentlyViewed) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "📭 最近没有浏览记录")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  ", dimColor.Sprint(e.CreatedAt.Local().Format(time.DateTime)))
		printIssueLine(w, e.IssueData, false)
	}
}

func printStatus(w io.Writer, gh *scout.GitHubStatus, me *scout.Me, stats *domain.DashboardStats, localBookmarks int) {
	if gh.Connected {
		fmt.Fprintf(w, "%s GitHub 已连接 (%s)\n", successMark(), gh.Login)
	} else {
		printWarning(w, "GitHub 未连接: "+gh.Error)
	}

	if me == nil {
		fmt.Fprintf(w, "未登录 · 本地书签 %d 个\n", localBookmarks)
		return
	}
	fmt.Fprintf(w, "已登录为 %s\n", me.Login)
	if stats != nil {
		fmt.Fprintf(w, "书签 %d (%s) · 最近浏览 %d\n", stats.Bookmarks, stats.BookmarkTrend, stats.RecentlyViewed)
	}
}
