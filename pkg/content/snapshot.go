package content

import (
	"fmt"
	"time"

	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/core"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/types"
	"chunkvault/pkg/usage"
)

// Snapshot 是实例的持久化投影
type Snapshot struct {
	ID                  types.ContentID
	Owner               types.Identity
	MimeType            string
	Policy              policy.Spec
	State               chunkstore.State
	UsageCount          uint64
	RequireFinalizedUse bool

	// Chunks 是持有引用的块。SummaryCount > 0 时它们接在摘要前缀之后。
	Chunks       []*core.Chunk
	SummaryCount int
	SummarySize  int64

	// 派生值，Restore 时忽略
	ChunkCount int
	TotalSize  int64
}

func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	n, size := i.store.Summarized()
	return Snapshot{
		ID:                  i.id,
		Owner:               i.owner,
		MimeType:            i.mimeType,
		Policy:              i.policy.Spec(),
		State:               i.store.State(),
		UsageCount:          i.meter.Count(),
		RequireFinalizedUse: i.requireFinalizedUse,
		Chunks:              i.store.Loaded(),
		SummaryCount:        n,
		SummarySize:         size,
		ChunkCount:          i.store.ChunkCount(),
		TotalSize:           i.store.TotalSize(),
	}
}

// Restore 从快照重建实例。不会产生事件。
func Restore(s Snapshot) (*Instance, error) {
	if s.Owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	pol, err := policy.New(s.Policy)
	if err != nil {
		return nil, err
	}
	store, err := restoreStore(s)
	if err != nil {
		return nil, fmt.Errorf("restore content %s: %w", s.ID, err)
	}
	return &Instance{
		id:                  s.ID,
		owner:               s.Owner,
		mimeType:            s.MimeType,
		requireFinalizedUse: s.RequireFinalizedUse,
		store:               store,
		meter:               usage.Restore(s.UsageCount),
		policy:              pol,
		now:                 time.Now,
	}, nil
}

// restoreStore 有摘要前缀时，已加载的块也并入摘要
func restoreStore(s Snapshot) (*chunkstore.Store, error) {
	if s.SummaryCount == 0 {
		return chunkstore.Restore(s.Chunks, s.State)
	}
	count, size := s.SummaryCount, s.SummarySize
	for _, c := range s.Chunks {
		count++
		size += c.Size()
	}
	return chunkstore.RestoreSummary(count, size, s.State)
}
