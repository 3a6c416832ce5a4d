package core

import (
	"encoding/hex"
	"fmt"

	"chunkvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Link 是 Manifest 对 Chunk 的哈希引用
// CBOR 层面序列化为 Tag 42(0x00 + HashBytes)，与 IPLD 的 CID 表示兼容
type Link struct {
	Hash types.Hash
}

const linkTagNumber = 42

func NewLink(hash types.Hash) Link {
	return Link{Hash: hash}
}

func (l Link) MarshalCBOR() ([]byte, error) {
	raw, err := hex.DecodeString(string(l.Hash))
	if err != nil {
		return nil, fmt.Errorf("invalid hash format in link: %w", err)
	}

	// 0x00: Multibase Identity 前缀
	content := make([]byte, 0, len(raw)+1)
	content = append(content, 0x00)
	content = append(content, raw...)

	return em.Marshal(cbor.Tag{
		Number:  linkTagNumber,
		Content: content,
	})
}

func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := dm.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Number != linkTagNumber {
		return fmt.Errorf("expected tag 42 for Link, got %d", tag.Number)
	}

	content, ok := tag.Content.([]byte)
	if !ok {
		return fmt.Errorf("link content must be byte string")
	}
	if len(content) < 1 || content[0] != 0x00 {
		return fmt.Errorf("invalid link: missing 0x00 multibase prefix")
	}

	l.Hash = types.Hash(hex.EncodeToString(content[1:]))
	return nil
}
