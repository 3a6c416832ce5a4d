// pkg/types/common.go
package types

import "strings"

// Hash 代表对象的唯一标识符 (SHA256 Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool  { return h == "" }
func (h Hash) IsValid() bool { return len(h) == 64 } // 简单的长度检查

// Short 返回前 8 位，仅用于日志和 CLI 输出
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}

// Identity 代表调用者身份 (地址、用户名、公钥指纹...)
// 身份认证由宿主环境负责，这里只做比较。
type Identity string

func (i Identity) String() string { return string(i) }
func (i Identity) IsZero() bool   { return strings.TrimSpace(string(i)) == "" }

// Amount 是随 use 调用附带的价值 (最小计价单位)
type Amount uint64

// ContentID 是一个内容实例的标识 (UUID 字符串)
type ContentID string

func (c ContentID) String() string { return string(c) }
func (c ContentID) IsZero() bool   { return c == "" }
