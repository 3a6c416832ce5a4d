package core

import (
	"fmt"

	"chunkvault/pkg/types"
)

// ChunkLink 描述了 Manifest 对一个 Chunk 的引用
type ChunkLink struct {
	Cid  Link  `cbor:"h"`
	Size int64 `cbor:"s"` // 用于计算 offset
}

// Manifest 在 finalize 时生成，记录封存后不可变的块顺序
type Manifest struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal   ObjectType  `cbor:"t"` // 必须是 "manifest"
	ContentID string      `cbor:"id"`
	MimeType  string      `cbor:"mt"`
	Owner     string      `cbor:"o"`
	TotalSize int64       `cbor:"ts"`
	Chunks    []ChunkLink `cbor:"cs"`
}

// NewManifest 按给定顺序为 chunks 构造清单
func NewManifest(id types.ContentID, mimeType string, owner types.Identity, chunks []*Chunk) (*Manifest, error) {
	links := make([]ChunkLink, 0, len(chunks))
	var total int64
	for _, c := range chunks {
		links = append(links, ChunkLink{Cid: NewLink(c.ID()), Size: c.Size()})
		total += c.Size()
	}

	m := &Manifest{
		TypeVal:   TypeManifest,
		ContentID: id.String(),
		MimeType:  mimeType,
		Owner:     owner.String(),
		TotalSize: total,
		Chunks:    links,
	}
	h, b, err := CalculateHash(m)
	if err != nil {
		return nil, err
	}
	m.hash = h
	m.rawBytes = b
	return m, nil
}

// DecodeManifest 从存储中的字节还原 Manifest
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := DecodeObject(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.TypeVal != TypeManifest {
		return nil, fmt.Errorf("object is not a manifest, got: %s", m.TypeVal)
	}
	m.hash = CalculateBlobHash(data)
	m.rawBytes = data
	return &m, nil
}

func (m *Manifest) Type() ObjectType { return TypeManifest }
func (m *Manifest) ID() types.Hash   { return m.hash }
func (m *Manifest) Bytes() []byte    { return m.rawBytes }

// ChunkHashes 返回按顺序排列的块哈希
func (m *Manifest) ChunkHashes() []types.Hash {
	out := make([]types.Hash, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = c.Cid.Hash
	}
	return out
}
