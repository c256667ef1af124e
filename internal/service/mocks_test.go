package service

import (
	"context"
	"encoding/json"
	"sync"

	"issuescout/internal/domain"

	"github.com/stretchr/testify/mock"
)

// Mock implementations for testing
type MockBookmarkRemote struct {
	mock.Mock
}

func (m *MockBookmarkRemote) ListBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.Bookmark)
	return list, args.Error(1)
}

func (m *MockBookmarkRemote) SaveBookmark(ctx context.Context, issue domain.Issue) (*domain.Bookmark, error) {
	args := m.Called(ctx, issue)
	b, _ := args.Get(0).(*domain.Bookmark)
	return b, args.Error(1)
}

func (m *MockBookmarkRemote) DeleteBookmark(ctx context.Context, issueID int64) error {
	args := m.Called(ctx, issueID)
	return args.Error(0)
}

type MockRecentRemote struct {
	mock.Mock
}

func (m *MockRecentRemote) ListRecentlyViewed(ctx context.Context) ([]domain.RecentlyViewed, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.RecentlyViewed)
	return list, args.Error(1)
}

func (m *MockRecentRemote) TrackView(ctx context.Context, issue domain.Issue) (*domain.RecentlyViewed, error) {
	args := m.Called(ctx, issue)
	entry, _ := args.Get(0).(*domain.RecentlyViewed)
	return entry, args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	args := m.Called(ctx, query)
	result, _ := args.Get(0).(*domain.SearchResult)
	return result, args.Error(1)
}

// searcherFunc 用函数实现 port.IssueSearcher，方便控制响应顺序
type searcherFunc func(ctx context.Context, query domain.Query) (*domain.SearchResult, error)

func (f searcherFunc) Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	return f(ctx, query)
}

type fakeSession struct {
	authenticated bool
}

func (s *fakeSession) Authenticated() bool {
	return s.authenticated
}

// fakeCache 是内存版的本地缓存，可以注入读写错误
type fakeCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	loadErr  error
	storeErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Load(key string, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return false, c.loadErr
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (c *fakeCache) Store(key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *fakeCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
