// Package cvrpc 定义 chunkvault.v1.ContentService 的消息、服务描述和客户端桩代码。
//
// 消息是普通的 Go 结构体，通过注册名为 "cbor" 的 gRPC Codec 传输。
// 客户端需要使用 grpc.CallContentSubtype(CodecName)。
package cvrpc

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

const CodecName = "cbor"

// IdentityHeader 携带调用者身份 (认证由宿主负责)
const IdentityHeader = "x-cv-identity"

// 消息大小由 gRPC 的 MaxRecvMsgSize 限制，这里只约束结构
var (
	encMode, _ = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	decMode, _ = cbor.DecOptions{
		MaxNestedLevels: 16,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
)

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error)      { return encMode.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }
func (cborCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(cborCodec{})
}
