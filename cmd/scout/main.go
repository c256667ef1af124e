package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"issuescout/internal/adapter/localcache"
	"issuescout/internal/adapter/scout"
	"issuescout/internal/common"
	"issuescout/internal/config"
	"issuescout/internal/domain"
	"issuescout/internal/pubsub"
	"issuescout/internal/service"
)

type options struct {
	mode       string
	id         int64
	token      string
	languages  string
	labels     string
	query      string
	sort       string
	order      string
	minStars   int
	noAssignee bool
	page       int
}

func main() {
	// 1. 定义命令行参数
	var opts options
	flag.StringVar(&opts.mode, "mode", "search", "运行模式: search | bookmarks | bookmark | view | recent | signin | signout | status")
	flag.Int64Var(&opts.id, "id", 0, "issue ID (bookmark / view 模式)")
	flag.StringVar(&opts.token, "token", "", "会话 token (signin 模式)")
	flag.StringVar(&opts.languages, "lang", "", "语言，逗号分隔，例如 Go,Rust")
	flag.StringVar(&opts.labels, "labels", "", "标签，逗号分隔，默认 good first issue")
	flag.StringVar(&opts.query, "q", "", "关键词")
	flag.StringVar(&opts.sort, "sort", "created", "排序字段: created | updated | comments")
	flag.StringVar(&opts.order, "order", "desc", "排序方向: asc | desc")
	flag.IntVar(&opts.minStars, "min-stars", 0, "仓库最少 star 数")
	flag.BoolVar(&opts.noAssignee, "no-assignee", false, "只看没有负责人的 issue")
	flag.IntVar(&opts.page, "page", 1, "页码")
	flag.Parse()

	// 2. 加载配置
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("❌ 读取 .env 失败: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}

	// 3. 初始化本地缓存和 API 客户端
	cache, err := localcache.OpenSQLiteCache(cfg.Client.CachePath)
	if err != nil {
		log.Fatalf("❌ 本地缓存初始化失败: %v", err)
	}
	defer cache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	app := newApp(cache, scout.NewClient(cfg.Client.ServerURL, nil), os.Stdout)
	if err := app.run(ctx, opts); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// app 把命令行模式连接到客户端服务上
type app struct {
	cache     *localcache.SQLiteCache
	client    *scout.Client
	bookmarks *service.BookmarkService
	recent    *service.RecentService
	out       io.Writer

	bookmarkUpdates <-chan []domain.Bookmark
}

func newApp(cache *localcache.SQLiteCache, client *scout.Client, out io.Writer) *app {
	var token string
	if ok, err := cache.Load(localcache.KeySessionToken, &token); err != nil {
		log.Printf("[Scout] 读取会话失败: %v", err)
	} else if ok {
		client.SetToken(token)
	}

	bookmarkBus := pubsub.NewBroker[[]domain.Bookmark]()
	updates, _ := bookmarkBus.Subscribe()

	return &app{
		cache:           cache,
		client:          client,
		bookmarks:       service.NewBookmarkService(cache, client, client, bookmarkBus),
		recent:          service.NewRecentService(client, client, pubsub.NewBroker[[]domain.RecentlyViewed]()),
		out:             out,
		bookmarkUpdates: updates,
	}
}

func (a *app) run(ctx context.Context, opts options) error {
	switch opts.mode {
	case "search":
		return a.search(ctx, opts)
	case "bookmarks":
		printBookmarks(a.out, a.bookmarks.Bookmarks())
		return nil
	case "bookmark":
		return a.toggleBookmark(ctx, opts.id)
	case "view":
		return a.view(ctx, opts.id)
	case "recent":
		return a.showRecent(ctx)
	case "signin":
		return a.signIn(ctx, opts.token)
	case "signout":
		return a.signOut()
	case "status":
		return a.status(ctx)
	default:
		return common.NewError(common.ErrCodeValidation, fmt.Sprintf("未知模式 %q", opts.mode))
	}
}

func (a *app) search(ctx context.Context, opts options) error {
	sortKey, err := domain.ParseSortKey(opts.sort)
	if err != nil {
		return err
	}
	order, err := domain.ParseOrder(opts.order)
	if err != nil {
		return err
	}

	browse := service.NewBrowseService(a.client, domain.DefaultFilter())
	filter := domain.Filter{
		Languages:   splitCSV(opts.languages),
		Labels:      splitCSV(opts.labels),
		SearchQuery: opts.query,
		Sort:        sortKey,
		Order:       order,
		MinStars:    opts.minStars,
		NoAssignee:  opts.noAssignee,
	}
	if err := browse.SetFilter(ctx, filter); err != nil {
		return err
	}
	if opts.page > 1 {
		if err := browse.HandlePageChange(ctx, opts.page); err != nil {
			return err
		}
	}

	state := browse.State()
	if state.Result == nil {
		return common.NewError(common.ErrCodeInternal, "search returned no result")
	}
	if err := a.cache.Store(localcache.KeyLastResults, state.Result.Items); err != nil {
		log.Printf("[Scout] 缓存搜索结果失败: %v", err)
	}

	printSearchResult(a.out, state, a.bookmarks.IsBookmarked)
	return nil
}

// lookupIssue 依次在上次搜索结果、书签、最近浏览中查找 issue 快照
func (a *app) lookupIssue(ctx context.Context, id int64) (domain.Issue, error) {
	if id == 0 {
		return domain.Issue{}, common.NewError(common.ErrCodeValidation, "请用 -id 指定 issue")
	}

	var last []domain.Issue
	if _, err := a.cache.Load(localcache.KeyLastResults, &last); err != nil {
		log.Printf("[Scout] 读取上次搜索结果失败: %v", err)
	}
	for _, issue := range last {
		if issue.ID == id {
			return issue, nil
		}
	}
	for _, b := range a.bookmarks.Bookmarks() {
		if b.IssueID == id {
			return b.IssueData, nil
		}
	}
	if a.client.Authenticated() {
		entries, err := a.recent.Refresh(ctx)
		if err == nil {
			for _, e := range entries {
				if e.IssueID == id {
					return e.IssueData, nil
				}
			}
		}
	}
	return domain.Issue{}, common.NewError(common.ErrCodeNotFound, fmt.Sprintf("找不到 issue %d，请先搜索", id))
}

func (a *app) toggleBookmark(ctx context.Context, id int64) error {
	issue, err := a.lookupIssue(ctx, id)
	if err != nil {
		return err
	}
	added, err := a.bookmarks.Toggle(ctx, issue)
	if err != nil {
		return err
	}
	printToggle(a.out, issue, added)

	select {
	case list := <-a.bookmarkUpdates:
		fmt.Fprintf(a.out, "共 %d 个书签\n", len(list))
	default:
	}
	return nil
}

func (a *app) view(ctx context.Context, id int64) error {
	issue, err := a.lookupIssue(ctx, id)
	if err != nil {
		return err
	}
	printIssueDetail(a.out, issue, a.bookmarks.IsBookmarked(issue.ID))

	// 记录浏览失败只提示，不影响查看
	if err := a.recent.TrackView(ctx, issue); err != nil {
		printWarning(a.out, "记录最近浏览失败: "+err.Error())
	}
	return nil
}

func (a *app) showRecent(ctx context.Context) error {
	if !a.client.Authenticated() {
		printWarning(a.out, "登录后才会记录最近浏览 (scout -mode signin -token ...)")
		return nil
	}
	entries, err := a.recent.Refresh(ctx)
	if err != nil {
		return err
	}
	printRecent(a.out, entries)
	return nil
}

func (a *app) signIn(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return common.NewError(common.ErrCodeValidation, "请用 -token 提供登录后拿到的会话 token")
	}
	a.client.SetToken(token)
	me, err := a.client.Me(ctx)
	if err != nil {
		a.client.SetToken("")
		return err
	}
	if err := a.cache.Store(localcache.KeySessionToken, token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s 已登录为 %s\n", successMark(), me.Login)

	merged, err := a.bookmarks.SyncOnSignIn(ctx)
	if err != nil {
		printWarning(a.out, "书签同步失败: "+err.Error())
		return nil
	}
	fmt.Fprintf(a.out, "已同步 %d 个书签\n", len(merged))
	return nil
}

func (a *app) signOut() error {
	if err := a.cache.Delete(localcache.KeySessionToken); err != nil {
		return err
	}
	a.client.SetToken("")
	fmt.Fprintf(a.out, "%s 已退出登录，本地书签保留\n", successMark())
	return nil
}

func (a *app) status(ctx context.Context) error {
	gh, err := a.client.GitHubStatus(ctx)
	if err != nil {
		return err
	}
	var me *scout.Me
	var stats *domain.DashboardStats
	if a.client.Authenticated() {
		if me, err = a.client.Me(ctx); err != nil {
			return err
		}
		if stats, err = a.client.Stats(ctx); err != nil {
			return err
		}
	}
	printStatus(a.out, gh, me, stats, len(a.bookmarks.Bookmarks()))
	return nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
