package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"issuescout/internal/domain"
	"issuescout/internal/port"
	"issuescout/internal/pubsub"
)

// RecentService 维护已登录用户最近浏览的 issue，最多 domain.RecentlyViewedLimit 条
type RecentService struct {
	remote  port.RecentlyViewedRemote
	session port.Session
	bus     *pubsub.Broker[[]domain.RecentlyViewed]

	mu      sync.Mutex
	entries []domain.RecentlyViewed
}

func NewRecentService(remote port.RecentlyViewedRemote, session port.Session, bus *pubsub.Broker[[]domain.RecentlyViewed]) *RecentService {
	return &RecentService{remote: remote, session: session, bus: bus}
}

// Recent 返回最近浏览列表的副本
func (s *RecentService) Recent() []domain.RecentlyViewed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Refresh 从服务端重新加载，匿名会话时清空
func (s *RecentService) Refresh(ctx context.Context) ([]domain.RecentlyViewed, error) {
	var entries []domain.RecentlyViewed
	if s.session.Authenticated() {
		var err error
		entries, err = s.remote.ListRecentlyViewed(ctx)
		if err != nil {
			return nil, fmt.Errorf("load recently viewed: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(entries), nil
}

// TrackView 记录一次浏览，匿名会话时什么都不做
func (s *RecentService) TrackView(ctx context.Context, issue domain.Issue) error {
	if !s.session.Authenticated() {
		return nil
	}

	entry, err := s.remote.TrackView(ctx, issue)
	if err != nil {
		return fmt.Errorf("track view of issue %d: %w", issue.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(append([]domain.RecentlyViewed{*entry}, s.entries...))
	return nil
}

// replaceLocked 去重、截断到上限后替换并广播
func (s *RecentService) replaceLocked(entries []domain.RecentlyViewed) []domain.RecentlyViewed {
	next := DedupeRecentlyViewed(entries)
	if len(next) > domain.RecentlyViewedLimit {
		next = next[:domain.RecentlyViewedLimit]
	}
	s.entries = next
	s.bus.Publish(slices.Clone(next))
	return slices.Clone(next)
}

// DedupeRecentlyViewed 每个 issue 只保留第一条 (最近的一次) 记录
func DedupeRecentlyViewed(entries []domain.RecentlyViewed) []domain.RecentlyViewed {
	seen := make(map[int64]struct{}, len(entries))
	out := make([]domain.RecentlyViewed, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.IssueID]; ok {
			continue
		}
		seen[entry.IssueID] = struct{}{}
		out = append(out, entry)
	}
	return out
}
