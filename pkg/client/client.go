package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/content"
	"chunkvault/pkg/service"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// CVClient 封装了与 ChunkVault 服务端的连接。
// 方法签名与 vault.Vault 保持一致，返回的错误可以直接用 errors.Is 判断。
type CVClient struct {
	conn *grpc.ClientConn

	// 公开底层 Service Client
	Content cvrpc.ContentServiceClient
}

// NewCVClient 创建并初始化客户端
// 注意：这里不再需要 context，因为它只负责创建对象，不负责等待连接就绪
func NewCVClient(addr string, extra ...grpc.DialOption) (*CVClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(cvrpc.CodecName),
			grpc.MaxCallRecvMsgSize(64*1024*1024),
			grpc.MaxCallSendMsgSize(64*1024*1024),
		),
		// 保持连接活跃
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	// NewClient 会立即返回，连接在后台进行
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		// 这里的 err 通常只是配置错误（如地址格式不对），网络不通不会在这里报错
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}

	return &CVClient{
		conn:    conn,
		Content: cvrpc.NewContentServiceClient(conn),
	}, nil
}

// Close 关闭底层连接
func (c *CVClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func withCaller(ctx context.Context, caller types.Identity) context.Context {
	if caller.IsZero() {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, cvrpc.IdentityHeader, caller.String())
}

func (c *CVClient) Create(ctx context.Context, req vault.CreateRequest) (vault.Info, error) {
	params, err := service.ParamsToRPC(req.Policy)
	if err != nil {
		return vault.Info{}, err
	}
	resp, err := c.Content.Create(withCaller(ctx, req.Owner), &cvrpc.CreateRequest{
		MimeType:     req.MimeType,
		Seed:         req.Seed,
		Policy:       params,
		AutoFinalize: req.AutoFinalize,
	})
	if err != nil {
		return vault.Info{}, service.FromStatus(err)
	}
	return service.InfoFromRPC(resp.Info), nil
}

func (c *CVClient) Extend(ctx context.Context, id types.ContentID, caller types.Identity, blocks ...[]byte) error {
	_, err := c.Content.Extend(withCaller(ctx, caller), &cvrpc.ExtendRequest{
		ContentID: id.String(),
		Chunks:    blocks,
	})
	return service.FromStatus(err)
}

func (c *CVClient) Finalize(ctx context.Context, id types.ContentID, caller types.Identity) error {
	_, err := c.Content.Finalize(withCaller(ctx, caller), &cvrpc.FinalizeRequest{ContentID: id.String()})
	return service.FromStatus(err)
}

func (c *CVClient) Use(ctx context.Context, id types.ContentID, caller types.Identity, value types.Amount) (uint64, error) {
	resp, err := c.Content.Use(withCaller(ctx, caller), &cvrpc.UseRequest{
		ContentID: id.String(),
		Value:     uint64(value),
	})
	if err != nil {
		return 0, service.FromStatus(err)
	}
	return resp.UsageCount, nil
}

func (c *CVClient) AddToWhitelist(ctx context.Context, id types.ContentID, caller, member types.Identity) error {
	_, err := c.Content.AddToWhitelist(withCaller(ctx, caller), &cvrpc.AddToWhitelistRequest{
		ContentID: id.String(),
		Identity:  member.String(),
	})
	return service.FromStatus(err)
}

func (c *CVClient) Info(ctx context.Context, id types.ContentID) (vault.Info, error) {
	resp, err := c.Content.Info(ctx, &cvrpc.InfoRequest{ContentID: id.String()})
	if err != nil {
		return vault.Info{}, service.FromStatus(err)
	}
	return service.InfoFromRPC(resp.Info), nil
}

func (c *CVClient) Events(ctx context.Context, id types.ContentID, limit int) ([]content.Event, error) {
	resp, err := c.Content.Events(ctx, &cvrpc.EventsRequest{ContentID: id.String(), Limit: int32(limit)})
	if err != nil {
		return nil, service.FromStatus(err)
	}
	out := make([]content.Event, 0, len(resp.Events))
	for _, e := range resp.Events {
		out = append(out, service.EventFromRPC(e))
	}
	return out, nil
}

func (c *CVClient) ListByOwner(ctx context.Context, owner types.Identity, limit int) ([]vault.Info, error) {
	resp, err := c.Content.List(ctx, &cvrpc.ListRequest{Owner: owner.String(), Limit: int32(limit)})
	if err != nil {
		return nil, service.FromStatus(err)
	}
	out := make([]vault.Info, 0, len(resp.Contents))
	for _, i := range resp.Contents {
		out = append(out, service.InfoFromRPC(i))
	}
	return out, nil
}

// Export 通过 Download 流把内容写入 w
func (c *CVClient) Export(ctx context.Context, id types.ContentID, w io.Writer) (int64, error) {
	stream, err := c.Content.Download(ctx, &cvrpc.DownloadRequest{ContentID: id.String()})
	if err != nil {
		return 0, service.FromStatus(err)
	}

	var written int64
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, service.FromStatus(err)
		}
		n, err := w.Write(resp.ChunkData)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write downloaded data: %w", err)
		}
	}
}
