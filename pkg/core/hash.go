package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"chunkvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Manifest 使用 DAG-CBOR 风格的规范编码：相同内容必须得到相同的 Hash
var encOptions = cbor.EncOptions{
	// Map Key 排序 (Canonical)
	Sort:          cbor.SortCanonical,
	ShortestFloat: cbor.ShortestFloatNone,
	Time:          cbor.TimeUnix,
	TimeTag:       cbor.EncTagNone,
	// 数组和 Map 必须在头部声明长度
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 限制容器大小和嵌套深度，防止恶意构造的头部耗尽内存
	MaxArrayElements: 1 << 20,
	MaxMapPairs:      10000,
	MaxNestedLevels:  32,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// CalculateHash 序列化对象并计算其 Hash
func CalculateHash(v any) (types.Hash, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:])), data, nil
}

// CalculateBlobHash 计算原始数据块的 Hash
func CalculateBlobHash(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// DecodeObject 使用严格模式解码
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}
