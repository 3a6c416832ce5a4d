package core

import "chunkvault/pkg/types"

// Chunk 代表内容中的一个有序数据块
// 从元数据库恢复时，Chunk 可能只是一个引用 (只有 Hash 和 Size，没有数据)
type Chunk struct {
	hash types.Hash
	data []byte
	size int64
}

func NewChunk(data []byte) *Chunk {
	return &Chunk{
		hash: CalculateBlobHash(data),
		data: data,
		size: int64(len(data)),
	}
}

// NewChunkRef 构造一个不携带数据的 Chunk 引用
func NewChunkRef(hash types.Hash, size int64) *Chunk {
	return &Chunk{hash: hash, size: size}
}

func (c *Chunk) Type() ObjectType { return TypeChunk }
func (c *Chunk) ID() types.Hash   { return c.hash }
func (c *Chunk) Bytes() []byte    { return c.data }
func (c *Chunk) Size() int64      { return c.size }

// HasData 区分“完整块”与“引用”
func (c *Chunk) HasData() bool { return c.data != nil }

// IsEmpty 报告块是否为零长度
func (c *Chunk) IsEmpty() bool { return c.size == 0 }
