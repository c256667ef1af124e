package service

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"issuescout/internal/adapter/localcache"
	"issuescout/internal/common"
	"issuescout/internal/domain"
	"issuescout/internal/port"
	"issuescout/internal/pubsub"

	"golang.org/x/sync/errgroup"
)

// BookmarkService 管理当前用户的书签
// 本地缓存是权威来源，登录后每次变更先写服务端再写本地
type BookmarkService struct {
	cache   port.LocalCache
	remote  port.BookmarkRemote
	session port.Session
	bus     *pubsub.Broker[[]domain.Bookmark]
	nowFunc func() time.Time

	mu        sync.Mutex
	bookmarks []domain.Bookmark
}

// NewBookmarkService 创建书签服务并从本地缓存加载已有书签
func NewBookmarkService(
	cache port.LocalCache,
	remote port.BookmarkRemote,
	session port.Session,
	bus *pubsub.Broker[[]domain.Bookmark],
) *BookmarkService {
	s := &BookmarkService{
		cache:   cache,
		remote:  remote,
		session: session,
		bus:     bus,
		nowFunc: time.Now,
	}
	s.bookmarks = s.loadLocked()
	return s
}

// Bookmarks 返回书签列表的副本，最新收藏在前
func (s *BookmarkService) Bookmarks() []domain.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.bookmarks)
}

// IsBookmarked 判断 issue 是否已收藏
func (s *BookmarkService) IsBookmarked(issueID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOfBookmark(s.bookmarks, issueID) >= 0
}

// Toggle 切换收藏状态，返回切换后是否处于收藏状态
// 新收藏插到列表最前，和服务端、合并结果的 CreatedAt 倒序一致
// 已登录时服务端调用失败会直接返回错误，本地状态不变
func (s *BookmarkService) Toggle(ctx context.Context, issue domain.Issue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.loadLocked()
	idx := indexOfBookmark(current, issue.ID)

	var saved *domain.Bookmark
	if s.session.Authenticated() {
		var err error
		if idx >= 0 {
			err = s.remote.DeleteBookmark(ctx, issue.ID)
		} else {
			saved, err = s.remote.SaveBookmark(ctx, issue)
		}
		if err != nil {
			return idx >= 0, fmt.Errorf("toggle bookmark %d: %w", issue.ID, err)
		}
	}

	var next []domain.Bookmark
	if idx >= 0 {
		next = slices.Delete(slices.Clone(current), idx, idx+1)
	} else {
		bookmark := domain.NewBookmark("", issue, s.nowFunc())
		if saved != nil {
			bookmark = *saved
		}
		next = append([]domain.Bookmark{bookmark}, current...)
	}

	s.commitLocked(next)
	return idx < 0, nil
}

// SyncOnSignIn 登录后把本地书签和服务端书签合并
// 只存在于本地的书签会推送到服务端，任何一条推送失败都不会改动本地状态
func (s *BookmarkService) SyncOnSignIn(ctx context.Context) ([]domain.Bookmark, error) {
	if !s.session.Authenticated() {
		return nil, common.NewError(common.ErrCodeUnauthenticated, "sign in before syncing bookmarks")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remote, err := s.remote.ListBookmarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch server bookmarks: %w", err)
	}
	local := s.loadLocked()

	remoteIDs := make(map[int64]struct{}, len(remote))
	for _, b := range remote {
		remoteIDs[b.IssueID] = struct{}{}
	}

	var toPush []domain.Bookmark
	for _, b := range local {
		if _, ok := remoteIDs[b.IssueID]; !ok {
			toPush = append(toPush, b)
		}
	}

	// 推送结果按下标写回，合并时用服务端返回的行代替本地副本
	saved := make([]*domain.Bookmark, len(toPush))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, b := range toPush {
		g.Go(func() error {
			row, err := s.remote.SaveBookmark(gctx, b.IssueData)
			if err != nil {
				return fmt.Errorf("push bookmark %d: %w", b.IssueID, err)
			}
			saved[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	serverView := slices.Clone(remote)
	for _, row := range saved {
		if row != nil {
			serverView = append(serverView, *row)
		}
	}

	merged := MergeBookmarks(local, serverView)
	s.commitLocked(merged)
	log.Printf("[Bookmark] 同步完成: 本地 %d 条，服务端 %d 条，推送 %d 条，合并后 %d 条",
		len(local), len(remote), len(toPush), len(merged))
	return slices.Clone(merged), nil
}

// MergeBookmarks 合并本地和服务端书签
// 同一个 issue 以服务端为准，结果按 CreatedAt 倒序，时间相同按 IssueID 升序
func MergeBookmarks(local, remote []domain.Bookmark) []domain.Bookmark {
	seen := make(map[int64]struct{}, len(local)+len(remote))
	merged := make([]domain.Bookmark, 0, len(local)+len(remote))
	for _, list := range [][]domain.Bookmark{remote, local} {
		for _, b := range list {
			if _, ok := seen[b.IssueID]; ok {
				continue
			}
			seen[b.IssueID] = struct{}{}
			merged = append(merged, b)
		}
	}
	slices.SortStableFunc(merged, func(a, b domain.Bookmark) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.IssueID, b.IssueID)
	})
	return merged
}

// loadLocked 读取本地缓存，读取失败时退回内存中的列表
func (s *BookmarkService) loadLocked() []domain.Bookmark {
	var cached []domain.Bookmark
	found, err := s.cache.Load(localcache.KeyBookmarks, &cached)
	if err != nil {
		log.Printf("[Bookmark] 读取本地缓存失败，使用内存数据: %v", err)
		return slices.Clone(s.bookmarks)
	}
	if !found {
		return slices.Clone(s.bookmarks)
	}
	return cached
}

// commitLocked 写本地缓存 (失败只记录日志)，更新内存并广播
func (s *BookmarkService) commitLocked(next []domain.Bookmark) {
	if next == nil {
		next = []domain.Bookmark{}
	}
	if err := s.cache.Store(localcache.KeyBookmarks, next); err != nil {
		log.Printf("[Bookmark] 写入本地缓存失败: %v", err)
	}
	s.bookmarks = next
	s.bus.Publish(slices.Clone(next))
}

func indexOfBookmark(bookmarks []domain.Bookmark, issueID int64) int {
	return slices.IndexFunc(bookmarks, func(b domain.Bookmark) bool {
		return b.IssueID == issueID
	})
}
