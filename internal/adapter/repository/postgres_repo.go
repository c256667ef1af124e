package repository

import (
	"context"
	"log"
	"time"

	"issuescout/internal/common"
	"issuescout/internal/domain"
	"issuescout/internal/port"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	_ port.BookmarkRepository       = (*PostgresRepo)(nil)
	_ port.RecentlyViewedRepository = (*PostgresRepo)(nil)
)

// PostgresRepo 是书签和最近浏览的文档存储，issue 快照以 jsonb 保存
type PostgresRepo struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
// 服务启动时数据库可能还没就绪，连接失败会按退避策略重试
func NewPostgresRepo(ctx context.Context, dsn string) (*PostgresRepo, error) {
	var db *gorm.DB
	err := common.Do(ctx, func(ctx context.Context) error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		return openErr
	},
		common.WithMaxRetries(5),
		common.WithInitialDelay(500*time.Millisecond),
		common.WithMaxDelay(5*time.Second),
	)
	if err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "连接数据库失败", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&domain.Bookmark{}, &domain.RecentlyViewed{}); err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "数据库迁移失败", err)
	}

	return &PostgresRepo{db: db, nowFunc: time.Now}, nil
}

func (r *PostgresRepo) now() time.Time {
	if r.nowFunc == nil {
		return time.Now()
	}
	return r.nowFunc()
}

// Ping 检查数据库连接是否可用
func (r *PostgresRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return common.WrapError(common.ErrCodePersistence, "获取数据库连接失败", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return common.WrapError(common.ErrCodePersistence, "数据库不可用", err)
	}
	return nil
}

// Close 关闭底层连接池
func (r *PostgresRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListBookmarks 按创建时间倒序列出用户的书签
func (r *PostgresRepo) ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	var bookmarks []domain.Bookmark
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&bookmarks).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "查询书签失败", err)
	}
	return bookmarks, nil
}

// SaveBookmark 按 (user_id, issue_id) upsert
// 重复收藏只替换 issue 快照和 updated_at，created_at 保持第一次收藏的时间
func (r *PostgresRepo) SaveBookmark(ctx context.Context, userID string, issue domain.Issue) (*domain.Bookmark, error) {
	bookmark := domain.NewBookmark(userID, issue, r.now())

	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "issue_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"issue_data", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(&bookmark).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "保存书签失败", err)
	}
	return &bookmark, nil
}

// DeleteBookmark 删除用户的书签，书签不存在时不报错
func (r *PostgresRepo) DeleteBookmark(ctx context.Context, userID string, issueID int64) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND issue_id = ?", userID, issueID).
		Delete(&domain.Bookmark{}).Error
	if err != nil {
		return common.WrapError(common.ErrCodePersistence, "删除书签失败", err)
	}
	return nil
}

// ListRecentlyViewed 按浏览时间倒序列出最多 limit 条
func (r *PostgresRepo) ListRecentlyViewed(ctx context.Context, userID string, limit int) ([]domain.RecentlyViewed, error) {
	if limit <= 0 {
		limit = domain.RecentlyViewedLimit
	}
	var entries []domain.RecentlyViewed
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "查询最近浏览失败", err)
	}
	return entries, nil
}

// TrackView 记录一次浏览: upsert 并把 created_at 刷新为当前时间，然后裁剪旧记录
// 裁剪是先查后删的两步操作，并发浏览时可能短暂多于上限
func (r *PostgresRepo) TrackView(ctx context.Context, userID string, issue domain.Issue) (*domain.RecentlyViewed, error) {
	entry := domain.RecentlyViewed{
		UserID:    userID,
		IssueID:   issue.ID,
		IssueData: issue,
		CreatedAt: r.now(),
	}

	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "issue_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"issue_data", "created_at"}),
			},
			clause.Returning{},
		).
		Create(&entry).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodePersistence, "记录浏览失败", err)
	}

	if err := r.trimRecentlyViewed(ctx, userID); err != nil {
		// 裁剪失败不影响本次浏览记录
		log.Printf("[Repository] 裁剪用户 %s 的最近浏览失败: %v", userID, err)
	}
	return &entry, nil
}

func (r *PostgresRepo) trimRecentlyViewed(ctx context.Context, userID string) error {
	var staleIDs []uint
	err := r.db.WithContext(ctx).
		Model(&domain.RecentlyViewed{}).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(domain.RecentlyViewedLimit).
		Pluck("id", &staleIDs).Error
	if err != nil {
		return err
	}
	if len(staleIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", staleIDs).
		Delete(&domain.RecentlyViewed{}).Error
}
