package content

import (
	"time"

	"chunkvault/pkg/types"
)

// EventKind 是可观测事件的类型。拒绝不是事件，而是返回给调用方的错误。
type EventKind string

const (
	EventSealed      EventKind = "sealed"
	EventUsed        EventKind = "used"
	EventWhitelisted EventKind = "whitelisted"
)

type Event struct {
	Kind       EventKind       `json:"kind"`
	ContentID  types.ContentID `json:"content_id"`
	ChunkCount int             `json:"chunk_count,omitempty"`
	UsageCount uint64          `json:"usage_count,omitempty"`
	Caller     types.Identity  `json:"caller,omitempty"`
	Value      types.Amount    `json:"value,omitempty"`
	Identity   types.Identity  `json:"identity,omitempty"`
	At         time.Time       `json:"at"`
}
