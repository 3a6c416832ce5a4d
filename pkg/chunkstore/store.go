// Package chunkstore 持有内容的有序块序列及其“累积 -> 封存”生命周期。
package chunkstore

import (
	"errors"
	"fmt"

	"chunkvault/pkg/core"
)

var (
	ErrEmptySeed        = errors.New("seed chunk must not be empty")
	ErrInvalidState     = errors.New("content is finalized: cannot extend")
	ErrAlreadyFinalized = errors.New("content already finalized")
	ErrNotLoaded        = errors.New("chunk references not loaded")
)

// State 是块存储的生命周期状态
type State string

const (
	Accumulating State = "accumulating"
	Finalized    State = "finalized"
)

// Store 不是并发安全的，由上层 (content.Instance) 负责串行化。
//
// 从摘要恢复时，前 base 个块只记数量和大小，chunks 只包含之后追加的块。
type Store struct {
	base     int
	baseSize int64
	chunks   []*core.Chunk
	state    State
}

// New 用种子块创建一个处于 Accumulating 状态的存储
func New(seed *core.Chunk) (*Store, error) {
	if seed == nil || seed.IsEmpty() {
		return nil, ErrEmptySeed
	}
	return &Store{
		chunks: []*core.Chunk{seed},
		state:  Accumulating,
	}, nil
}

// Restore 从持久化形式重建存储
func Restore(chunks []*core.Chunk, state State) (*Store, error) {
	if len(chunks) == 0 || chunks[0] == nil || chunks[0].IsEmpty() {
		return nil, ErrEmptySeed
	}
	if state != Accumulating && state != Finalized {
		return nil, fmt.Errorf("unknown chunk store state %q", state)
	}
	out := make([]*core.Chunk, len(chunks))
	copy(out, chunks)
	return &Store{chunks: out, state: state}, nil
}

// RestoreSummary 只恢复块数量和总大小，不持有任何块引用。
// 适用于不关心块顺序的操作 (use、白名单)，以及只追加新块的 extend。
func RestoreSummary(count int, size int64, state State) (*Store, error) {
	if count <= 0 {
		return nil, ErrEmptySeed
	}
	if state != Accumulating && state != Finalized {
		return nil, fmt.Errorf("unknown chunk store state %q", state)
	}
	return &Store{base: count, baseSize: size, state: state}, nil
}

// Extend 按顺序追加一批块。空批次是合法的 no-op。
func (s *Store) Extend(chunks ...*core.Chunk) error {
	if s.state == Finalized {
		return ErrInvalidState
	}
	for i, c := range chunks {
		if c == nil {
			return fmt.Errorf("chunk %d is nil", i)
		}
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Finalize 只能成功一次，第二次必须报错，保证封存事件只被观察到一次
func (s *Store) Finalize() error {
	if s.state == Finalized {
		return ErrAlreadyFinalized
	}
	s.state = Finalized
	return nil
}

func (s *Store) ChunkCount() int   { return s.base + len(s.chunks) }
func (s *Store) IsFinalized() bool { return s.state == Finalized }
func (s *Store) State() State      { return s.state }

// Summarized 返回未加载引用的前缀块数量和大小
func (s *Store) Summarized() (int, int64) { return s.base, s.baseSize }

// Chunks 返回完整块序列的副本。从摘要恢复的存储没有完整序列。
func (s *Store) Chunks() ([]*core.Chunk, error) {
	if s.base > 0 {
		return nil, fmt.Errorf("%w: %d summarized chunks", ErrNotLoaded, s.base)
	}
	return s.Loaded(), nil
}

// Loaded 返回已持有引用的块 (摘要前缀之后的部分)
func (s *Store) Loaded() []*core.Chunk {
	out := make([]*core.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// TotalSize 是所有块大小之和，包括摘要前缀
func (s *Store) TotalSize() int64 {
	n := s.baseSize
	for _, c := range s.chunks {
		n += c.Size()
	}
	return n
}
