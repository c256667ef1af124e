package localcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"issuescout/internal/common"
	"issuescout/internal/port"

	_ "modernc.org/sqlite"
)

var _ port.LocalCache = (*SQLiteCache)(nil)

// 客户端缓存使用的 key
const (
	KeyBookmarks      = "bookmarks"
	KeyRecentlyViewed = "recently_viewed"
	KeyLastResults    = "last_results"
	KeySessionToken   = "session_token"
)

const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteCache 是客户端的本地持久化缓存，每个 key 存一份 JSON
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache 打开 (或创建) 缓存文件，path 为 ":memory:" 时只在内存中
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, common.WrapError(common.ErrCodePersistence, "create cache directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "open sqlite cache", err)
	}
	// 单连接: 内存库在多个连接间不共享，文件库也避免写锁竞争
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, common.WrapError(common.ErrCodePersistence, fmt.Sprintf("init sqlite cache: %s", stmt), err)
		}
	}
	return &SQLiteCache{db: db}, nil
}

// Load 把 key 对应的 JSON 解码到 v，key 不存在时返回 false
func (c *SQLiteCache) Load(key string, v any) (bool, error) {
	var raw string
	err := c.db.QueryRow(`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, common.WrapError(common.ErrCodePersistence, "read cache entry "+key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, common.WrapError(common.ErrCodePersistence, "decode cache entry "+key, err)
	}
	return true, nil
}

// Store 覆盖写入 key 对应的值
func (c *SQLiteCache) Store(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return common.WrapError(common.ErrCodePersistence, "encode cache entry "+key, err)
	}
	_, err = c.db.Exec(
		`INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC(),
	)
	if err != nil {
		return common.WrapError(common.ErrCodePersistence, "write cache entry "+key, err)
	}
	return nil
}

// Delete 删除 key，key 不存在时不报错
func (c *SQLiteCache) Delete(key string) error {
	if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return common.WrapError(common.ErrCodePersistence, "delete cache entry "+key, err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
