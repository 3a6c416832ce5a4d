package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"chunkvault/pkg/core"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"
)

var ErrCorruptChunk = errors.New("chunk content does not match its hash")

type Exporter struct {
	store storage.Store
}

func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// ReadManifest 读取并解码封存时写入的 Manifest
func (e *Exporter) ReadManifest(ctx context.Context, hash types.Hash) (*core.Manifest, error) {
	reader, err := e.store.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest bytes: %w", err)
	}
	return core.DecodeManifest(data)
}

// ExportManifest 按 Manifest 的顺序还原内容
func (e *Exporter) ExportManifest(ctx context.Context, hash types.Hash, w io.Writer) (int64, error) {
	m, err := e.ReadManifest(ctx, hash)
	if err != nil {
		return 0, err
	}
	return e.ExportChunks(ctx, m.ChunkHashes(), w)
}

// ExportChunks 按顺序把块写入 w，边写边校验哈希
func (e *Exporter) ExportChunks(ctx context.Context, hashes []types.Hash, w io.Writer) (int64, error) {
	var written int64
	for i, h := range hashes {
		// 匿名函数构建 Scope，保证每个块读完立即关闭
		n, err := func() (int64, error) {
			reader, err := e.store.Get(ctx, h)
			if err != nil {
				return 0, fmt.Errorf("failed to get chunk %d: %w", i, err)
			}
			defer reader.Close()

			hasher := sha256.New()
			n, err := io.Copy(io.MultiWriter(w, hasher), reader)
			if err != nil {
				return n, fmt.Errorf("failed to write chunk %d data: %w", i, err)
			}
			if types.Hash(hex.EncodeToString(hasher.Sum(nil))) != h {
				return n, fmt.Errorf("%w: chunk %d (%s)", ErrCorruptChunk, i, h.Short())
			}
			return n, nil
		}()
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// PrintManifest 以表格形式打印 Manifest
func PrintManifest(m *core.Manifest, w io.Writer) error {
	fmt.Fprintf(w, "Manifest:  %s\n", m.ID())
	fmt.Fprintf(w, "Content:   %s\n", m.ContentID)
	fmt.Fprintf(w, "Owner:     %s\n", m.Owner)
	fmt.Fprintf(w, "MimeType:  %s\n", m.MimeType)
	fmt.Fprintf(w, "TotalSize: %d bytes\n", m.TotalSize)
	fmt.Fprintf(w, "Chunks:    %d\n\n", len(m.Chunks))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	var offset int64
	for i, c := range m.Chunks {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i, c.Cid.Hash.Short(), offset, c.Size)
		offset += c.Size
	}
	return tw.Flush()
}
