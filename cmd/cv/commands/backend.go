package commands

import (
	"context"
	"io"

	"chunkvault/pkg/client"
	"chunkvault/pkg/content"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"
)

// Backend 是子命令依赖的最小接口，本地 Vault 和远程客户端都实现了它
type Backend interface {
	Create(ctx context.Context, req vault.CreateRequest) (vault.Info, error)
	Extend(ctx context.Context, id types.ContentID, caller types.Identity, blocks ...[]byte) error
	Finalize(ctx context.Context, id types.ContentID, caller types.Identity) error
	Use(ctx context.Context, id types.ContentID, caller types.Identity, value types.Amount) (uint64, error)
	AddToWhitelist(ctx context.Context, id types.ContentID, caller, member types.Identity) error
	Info(ctx context.Context, id types.ContentID) (vault.Info, error)
	Export(ctx context.Context, id types.ContentID, w io.Writer) (int64, error)
	Events(ctx context.Context, id types.ContentID, limit int) ([]content.Event, error)
	ListByOwner(ctx context.Context, owner types.Identity, limit int) ([]vault.Info, error)
}

var (
	_ Backend = (*vault.Vault)(nil)
	_ Backend = (*client.CVClient)(nil)
)
