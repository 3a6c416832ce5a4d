package ingester

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chunkvault/pkg/codec"
	"chunkvault/pkg/core"
	"chunkvault/pkg/storage"

	"golang.org/x/sync/errgroup"
)

var ErrNoStore = errors.New("ingester has no store")

// DefaultConcurrency 是同时写入 Blob 存储的块数上限
const DefaultConcurrency = 8

type Ingester struct {
	store       storage.Store
	chunkSize   int
	concurrency int
}

// NewIngester 的 store 可以为 nil，此时只能用于 Split
func NewIngester(store storage.Store, chunkSize, concurrency int) *Ingester {
	if chunkSize <= 0 {
		chunkSize = codec.DefaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Ingester{
		store:       store,
		chunkSize:   chunkSize,
		concurrency: concurrency,
	}
}

// Split 读取整个流并切成定长块 (只在内存中，不写存储)
func (ing *Ingester) Split(reader io.Reader) ([]*core.Chunk, error) {
	blocks, err := codec.EncodeReader(reader, ing.chunkSize)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Chunk, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, core.NewChunk(b))
	}
	return out, nil
}

// Store 并发写入带数据的块。只有引用 (从元数据恢复) 的块会被跳过。
func (ing *Ingester) Store(ctx context.Context, chunks []*core.Chunk) error {
	if ing.store == nil {
		return ErrNoStore
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for i, c := range chunks {
		if c == nil || !c.HasData() {
			continue
		}
		g.Go(func() error {
			if err := ing.store.Put(ctx, c); err != nil {
				return fmt.Errorf("failed to store chunk %d (%s): %w", i, c.ID().Short(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
