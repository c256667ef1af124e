package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	GitHub   GitHubConfig   `yaml:"github"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Client   ClientConfig   `yaml:"client"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type GitHubConfig struct {
	Token        string `yaml:"token"`         // 搜索用的 token，可为空 (匿名限流更严)
	APIURL       string `yaml:"api_url"`       // GitHub Enterprise 或测试用
	OAuthURL     string `yaml:"oauth_url"`     // 授权端点所在的站点，空为 github.com
	ClientID     string `yaml:"client_id"`     // OAuth 应用
	ClientSecret string `yaml:"client_secret"` // OAuth 应用
	RedirectURL  string `yaml:"redirect_url"`
}

type SessionConfig struct {
	Secret string `yaml:"secret"`
	TTL    string `yaml:"ttl"` // e.g. "720h"
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // postgres 连接串
}

type ClientConfig struct {
	ServerURL string `yaml:"server_url"` // scout 连接的 API 地址
	CachePath string `yaml:"cache_path"` // 本地 sqlite 缓存
}

const defaultSessionSecret = "change-me-in-production"

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		GitHub: GitHubConfig{
			RedirectURL: "http://localhost:8080/auth/github/callback",
		},
		Session: SessionConfig{
			Secret: defaultSessionSecret,
			TTL:    "720h",
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
			CachePath: defaultCachePath(),
		},
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "issuescout-cache.db"
	}
	return filepath.Join(dir, "issuescout", "cache.db")
}

// LoadDotEnv 读取 .env 文件，已存在的环境变量不会被覆盖，文件不存在时忽略
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ISSUESCOUT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		cfg.GitHub.APIURL = v
	}
	if v := os.Getenv("GITHUB_OAUTH_URL"); v != "" {
		cfg.GitHub.OAuthURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("GITHUB_ID"); v != "" {
		cfg.GitHub.ClientID = v
	}
	if v := os.Getenv("GITHUB_SECRET"); v != "" {
		cfg.GitHub.ClientSecret = v
	}
	if v := os.Getenv("OAUTH_REDIRECT_URL"); v != "" {
		cfg.GitHub.RedirectURL = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.Session.TTL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ISSUESCOUT_CACHE_PATH"); v != "" {
		cfg.Client.CachePath = v
	}
	if v := os.Getenv("ISSUESCOUT_SERVER"); v != "" {
		cfg.Client.ServerURL = strings.TrimRight(v, "/")
	}
}

// SessionTTL 解析会话有效期，非法值退回 30 天
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil || d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// OAuthEnabled 是否配置了 GitHub 登录
func (c *Config) OAuthEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.Session.Secret == "" || c.Session.Secret == defaultSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be set to a non-default value")
	}
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters (current length: %d)", len(c.Session.Secret))
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL must be configured")
	}
	if _, err := time.ParseDuration(c.Session.TTL); err != nil {
		return fmt.Errorf("SESSION_TTL %q is not a duration: %w", c.Session.TTL, err)
	}
	return nil
}
