package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"issuescout/internal/adapter/github"
	"issuescout/internal/adapter/repository"
	"issuescout/internal/api"
	"issuescout/internal/auth"
	"issuescout/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 1. 定义命令行参数
	configPath := flag.String("config", "", "YAML 配置文件路径 (可选)")
	flag.Parse()

	// 2. 加载配置: .env -> YAML -> 环境变量
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("❌ 读取 .env 失败: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		log.Fatalf("❌ 配置校验失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("❌ 服务异常退出: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// 3. 初始化数据库
	store, err := repository.NewPostgresRepo(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// 4. 初始化 GitHub 搜索和登录
	searcher, err := newSearcher(cfg)
	if err != nil {
		return err
	}
	oauth, err := newOAuth(cfg)
	if err != nil {
		return err
	}
	if !oauth.Enabled() {
		log.Println("⚠️ 未配置 GITHUB_ID / GITHUB_SECRET，GitHub 登录不可用")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := api.NewServer(api.Deps{
		Searcher:  searcher,
		GitHub:    searcher,
		Bookmarks: store,
		Recent:    store,
		DB:        store,
		Auth:      auth.NewService(cfg.Session.Secret, cfg.SessionTTL()),
		OAuth:     oauth,
		Registry:  registry,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 IssueScout API 监听 %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// 5. 优雅关闭
	log.Println("👋 收到停止信号，正在退出...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newSearcher 配置了 GITHUB_API_URL 时连接到对应的 API 地址
func newSearcher(cfg *config.Config) (*github.Searcher, error) {
	if cfg.GitHub.Token == "" {
		log.Println("⚠️ GITHUB_TOKEN 未设置，使用匿名额度搜索")
	}
	if cfg.GitHub.APIURL != "" {
		return github.NewSearcherWithBaseURL(cfg.GitHub.Token, cfg.GitHub.APIURL)
	}
	return github.NewSearcher(cfg.GitHub.Token), nil
}

func newOAuth(cfg *config.Config) (*auth.GitHubOAuth, error) {
	if !cfg.OAuthEnabled() {
		return nil, nil
	}
	oauth := auth.NewGitHubOAuth(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)
	if base := cfg.GitHub.OAuthURL; base != "" {
		return oauth.WithEndpoints(base+"/login/oauth/authorize", base+"/login/oauth/access_token", cfg.GitHub.APIURL)
	}
	return oauth, nil
}
