package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chunkvault/pkg/core"
	"chunkvault/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
)

// Store 是 Blob 存储后端的接口 (本地磁盘、S3、带缓存的装饰器)
// 对象按内容哈希寻址，Put 必须幂等。
type Store interface {
	// Put 持久化一个对象，Hash 已经在 core.Object 里了
	Put(ctx context.Context, obj core.Object) error

	// Get 返回 io.ReadCloser 以支持流式读取
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重)
	Has(ctx context.Context, hash types.Hash) (bool, error)
}

var (
	ErrInvalidHash = errors.New("invalid object hash")
	ErrNoData      = errors.New("object carries no data")
)

// ValidateHash 拒绝非 64 位小写 Hex 的哈希，避免拼出越界的路径或 Key
func ValidateHash(h types.Hash) error {
	if !h.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidHash, h)
	}
	for _, c := range h {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return fmt.Errorf("%w: %q", ErrInvalidHash, h)
		}
	}
	return nil
}

// CheckPut 是各后端 Put 共用的前置检查
func CheckPut(obj core.Object) error {
	if err := ValidateHash(obj.ID()); err != nil {
		return err
	}
	if obj.Bytes() == nil {
		return fmt.Errorf("%w: %s", ErrNoData, obj.ID())
	}
	return nil
}
