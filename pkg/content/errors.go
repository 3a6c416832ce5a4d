package content

import "errors"

// 其余错误来自下层并原样透传：
// chunkstore.ErrEmptySeed / ErrInvalidState / ErrAlreadyFinalized，
// policy.ErrMaxAccessReached / ErrPaymentRequired / ErrNotWhitelisted / ErrUnsupportedOperation。
var (
	ErrUnauthorized = errors.New("caller is not the owner")
	ErrInvalidOwner = errors.New("owner identity must not be empty")
	ErrNotFinalized = errors.New("content is not finalized yet")
)
