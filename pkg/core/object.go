package core

import "chunkvault/pkg/types"

// ObjectType 定义了 ChunkVault 中会落到 Blob 存储的对象类型
type ObjectType string

const (
	TypeChunk    ObjectType = "chunk"    // 原始数据块
	TypeManifest ObjectType = "manifest" // 封存时写入的有序索引
)

// Object 是所有可持久化对象的通用接口
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的哈希值
	ID() types.Hash

	// Bytes 返回对象的序列化数据 (用于存储)
	Bytes() []byte
}
