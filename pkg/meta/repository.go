package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrContentNotFound  = errors.New("content not found")
	ErrContentExists    = errors.New("content already exists")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Change 描述一次原子保存：新状态 + 追加的块 / 白名单成员 / 事件
type Change struct {
	Content         *ContentModel
	ExpectedVersion int64 // 读取时的版本号；0 表示首次创建
	NewChunks       []ChunkModel
	NewWhitelist    []WhitelistModel
	Events          []EventModel
}

func isDuplicateKey(err error) bool {
	// 兼容 PG 与 SQLite 的唯一约束错误
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value")
}

// -----------------------------------------------------------------------------
// 1. 写入
// -----------------------------------------------------------------------------

// Save 在一个事务中应用 Change
func (r *Repository) Save(ctx context.Context, ch Change) error {
	if ch.Content == nil {
		return fmt.Errorf("change without content")
	}
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ch.ExpectedVersion == 0 {
			// 场景 A: 首次创建
			ch.Content.Version = 1
			if err := tx.Create(ch.Content).Error; err != nil {
				if isDuplicateKey(err) {
					return ErrContentExists
				}
				return fmt.Errorf("failed to create content: %w", err)
			}
		} else {
			// 场景 B: CAS 更新
			// UPDATE contents SET ..., version = version + 1 WHERE id = ? AND version = ?
			c := ch.Content
			result := tx.Model(&ContentModel{}).
				Where("id = ? AND version = ?", c.ID, ch.ExpectedVersion).
				Updates(map[string]any{
					"state":         c.State,
					"usage_count":   c.UsageCount,
					"chunk_count":   c.ChunkCount,
					"total_size":    c.TotalSize,
					"manifest_hash": c.ManifestHash,
					"version":       gorm.Expr("version + 1"),
					"updated_at":    time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			// 影响行数为 0：版本号不匹配，被别人抢先改了
			if result.RowsAffected == 0 {
				return ErrConcurrentUpdate
			}
			c.Version = ch.ExpectedVersion + 1
		}

		if len(ch.NewChunks) > 0 {
			if err := tx.Create(&ch.NewChunks).Error; err != nil {
				if isDuplicateKey(err) {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to append chunks: %w", err)
			}
		}

		if len(ch.NewWhitelist) > 0 {
			// 幂等写入
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ch.NewWhitelist).Error
			if err != nil {
				return fmt.Errorf("failed to add whitelist entries: %w", err)
			}
		}

		if len(ch.Events) > 0 {
			if err := tx.Create(&ch.Events).Error; err != nil {
				return fmt.Errorf("failed to record events: %w", err)
			}
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// 2. 读取
// -----------------------------------------------------------------------------

func (r *Repository) GetContent(ctx context.Context, id string) (*ContentModel, error) {
	var c ContentModel
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadChunks 按 seq 顺序返回块记录
func (r *Repository) LoadChunks(ctx context.Context, id string) ([]ChunkModel, error) {
	var chunks []ChunkModel
	err := r.db.GetConn().WithContext(ctx).
		Where("content_id = ?", id).
		Order("seq ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *Repository) LoadWhitelist(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := r.db.GetConn().WithContext(ctx).
		Model(&WhitelistModel{}).
		Where("content_id = ?", id).
		Order("identity ASC").
		Pluck("identity", &ids).Error
	return ids, err
}

// ListEvents 返回某个内容的事件，按发生顺序
func (r *Repository) ListEvents(ctx context.Context, id string, limit int) ([]EventModel, error) {
	var events []EventModel
	q := r.db.GetConn().WithContext(ctx).
		Where("content_id = ?", id).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

// ListContentsByOwner 最新创建的在前
func (r *Repository) ListContentsByOwner(ctx context.Context, owner string, limit int) ([]ContentModel, error) {
	var contents []ContentModel
	q := r.db.GetConn().WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&contents).Error
	return contents, err
}
