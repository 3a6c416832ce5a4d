package meta

import (
	"time"

	"gorm.io/datatypes"
)

// ContentModel 是内容实例在关系型数据库中的投影
type ContentModel struct {
	ID       string `gorm:"primaryKey;type:varchar(64)"`
	Owner    string `gorm:"index;type:varchar(255);not null"`
	MimeType string `gorm:"type:varchar(255)"`

	// 策略参数，构造后不可变
	PolicyKind          string `gorm:"type:varchar(32);not null"`
	MaxUses             uint64
	PricePerUse         uint64
	RequireFinalizedUse bool

	// 可变状态
	State        string `gorm:"type:varchar(16);not null"`
	UsageCount   uint64
	ChunkCount   int
	TotalSize    int64
	ManifestHash string `gorm:"type:varchar(64)"`

	// Version 用于乐观锁 (CAS)，每次保存 +1
	Version int64 `gorm:"default:1"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (ContentModel) TableName() string { return "contents" }

// ChunkModel 记录块的顺序。块数据本身在 Blob 存储里。
type ChunkModel struct {
	ContentID string `gorm:"primaryKey;type:varchar(64)"`
	Seq       int    `gorm:"primaryKey;autoIncrement:false"`
	Hash      string `gorm:"type:char(64);not null"`
	Size      int64
}

func (ChunkModel) TableName() string { return "content_chunks" }

// WhitelistModel 是 Whitelisted 策略的成员
type WhitelistModel struct {
	ContentID string `gorm:"primaryKey;type:varchar(64)"`
	Identity  string `gorm:"primaryKey;type:varchar(255)"`
	CreatedAt time.Time
}

func (WhitelistModel) TableName() string { return "content_whitelist" }

// EventModel 是可观测事件 (sealed / used / whitelisted) 的追加日志
type EventModel struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ContentID string `gorm:"index;type:varchar(64);not null"`
	Kind      string `gorm:"index;type:varchar(32);not null"`
	Payload   datatypes.JSON
	CreatedAt time.Time
}

func (EventModel) TableName() string { return "content_events" }
