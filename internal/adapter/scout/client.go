package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"issuescout/internal/common"
	"issuescout/internal/domain"
	"issuescout/internal/port"
)

var (
	_ port.IssueSearcher        = (*Client)(nil)
	_ port.BookmarkRemote       = (*Client)(nil)
	_ port.RecentlyViewedRemote = (*Client)(nil)
	_ port.Session              = (*Client)(nil)
)

// Client 调用 IssueScout 服务端 API，token 为空时视为匿名会话
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient httpClient 为 nil 时使用 15 秒超时的默认客户端
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Me 是当前会话对应的用户
type Me struct {
	UserID string `json:"userId"`
	Login  string `json:"login"`
}

// GitHubStatus 是服务端 GitHub 连接检查的结果
type GitHubStatus struct {
	Connected bool   `json:"connected"`
	Login     string `json:"login,omitempty"`
	Error     string `json:"error,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type issueBody struct {
	Issue domain.Issue `json:"issue"`
}

type deleteBody struct {
	IssueID int64 `json:"issueId"`
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

// Search 调用 GET /api/issues
func (c *Client) Search(ctx context.Context, query domain.Query) (*domain.SearchResult, error) {
	var result domain.SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/issues?"+query.Values().Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	var bookmarks []domain.Bookmark
	if err := c.do(ctx, http.MethodGet, "/api/bookmarks", nil, &bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

func (c *Client) SaveBookmark(ctx context.Context, issue domain.Issue) (*domain.Bookmark, error) {
	var bookmark domain.Bookmark
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", issueBody{Issue: issue}, &bookmark); err != nil {
		return nil, err
	}
	return &bookmark, nil
}

func (c *Client) DeleteBookmark(ctx context.Context, issueID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks", deleteBody{IssueID: issueID}, nil)
}

func (c *Client) ListRecentlyViewed(ctx context.Context) ([]domain.RecentlyViewed, error) {
	var entries []domain.RecentlyViewed
	if err := c.do(ctx, http.MethodGet, "/api/recently-viewed", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) TrackView(ctx context.Context, issue domain.Issue) (*domain.RecentlyViewed, error) {
	var entry domain.RecentlyViewed
	if err := c.do(ctx, http.MethodPost, "/api/recently-viewed", issueBody{Issue: issue}, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) GitHubStatus(ctx context.Context) (*GitHubStatus, error) {
	var status GitHubStatus
	if err := c.do(ctx, http.MethodGet, "/api/github/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return common.WrapError(common.ErrCodeInternal, "encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return common.WrapError(common.ErrCodeInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.WrapError(common.ErrCodeUpstream, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return common.WrapError(common.ErrCodeUpstream, "decode response", err)
	}
	return nil
}

// decodeError 把服务端的错误响应还原成 AppError
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		code := common.ErrCodeUpstream
		if resp.StatusCode == http.StatusUnauthorized {
			code = common.ErrCodeUnauthenticated
		}
		return common.NewError(code, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var cause error
	if body.Details != "" {
		cause = errors.New(body.Details)
	}
	return &common.AppError{Code: body.Error, Message: body.Message, Err: cause}
}
