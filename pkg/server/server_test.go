package server_test

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"

	"chunkvault/pkg/app"
	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/client"
	"chunkvault/pkg/content"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/server"
	"chunkvault/pkg/storage/disk"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const alice = types.Identity("alice")

// setupServer 在内存管道上启动完整的 gRPC 服务，返回连好的客户端
func setupServer(t *testing.T) *client.CVClient {
	dir := t.TempDir()

	store, err := disk.NewAdapter(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	db, err := meta.NewDB(context.Background(), meta.Config{Driver: "sqlite", Path: filepath.Join(dir, "meta.db")})
	require.NoError(t, err)
	repo := meta.NewRepository(db)

	application := &app.App{
		Store:      store,
		DB:         db,
		Repository: repo,
		Vault:      vault.New(store, repo, vault.Options{}),
		RepoPath:   dir,
	}

	lis := bufconn.Listen(1024 * 1024)
	srv := server.New(application)
	go func() { _ = srv.Serve(lis) }()

	cli, err := client.NewCVClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		cli.Close()
		srv.Stop()
		db.Close()
	})
	return cli
}

func TestRoundTrip(t *testing.T) {
	cli := setupServer(t)
	ctx := context.Background()

	info, err := cli.Create(ctx, vault.CreateRequest{
		Owner:    alice,
		MimeType: "text/plain",
		Seed:     []byte("Hello "),
		Policy:   policy.Spec{Kind: policy.KindCapped, MaxUses: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, alice, info.Owner)
	assert.Equal(t, chunkstore.Accumulating, info.State)
	assert.Equal(t, policy.KindCapped, info.Policy.Kind)

	require.NoError(t, cli.Extend(ctx, info.ID, alice, []byte("over "), []byte("gRPC")))
	require.NoError(t, cli.Finalize(ctx, info.ID, alice))

	n, err := cli.Use(ctx, info.ID, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	got, err := cli.Info(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinalized())
	assert.Equal(t, 3, got.ChunkCount)
	assert.Equal(t, uint64(1), got.UsageCount)
	assert.False(t, got.ManifestHash.IsZero())

	var buf bytes.Buffer
	written, err := cli.Export(ctx, info.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("Hello over gRPC")), written)
	assert.Equal(t, "Hello over gRPC", buf.String())

	events, err := cli.Events(ctx, info.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, content.EventSealed, events[0].Kind)
	assert.Equal(t, content.EventUsed, events[1].Kind)
	assert.Equal(t, types.Identity("bob"), events[1].Caller)

	list, err := cli.ListByOwner(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)
}

// 错误经过网络后仍然可以用 errors.Is 判断
func TestErrorKindsSurviveTransport(t *testing.T) {
	cli := setupServer(t)
	ctx := context.Background()

	capped, err := cli.Create(ctx, vault.CreateRequest{
		Owner: alice, Seed: []byte("x"),
		Policy: policy.Spec{Kind: policy.KindCapped, MaxUses: 1}, AutoFinalize: true,
	})
	require.NoError(t, err)

	_, err = cli.Use(ctx, capped.ID, "bob", 0)
	require.NoError(t, err)
	n, err := cli.Use(ctx, capped.ID, "bob", 0)
	assert.ErrorIs(t, err, policy.ErrMaxAccessReached)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Zero(t, n)

	assert.ErrorIs(t, cli.Finalize(ctx, capped.ID, alice), chunkstore.ErrAlreadyFinalized)
	assert.ErrorIs(t, cli.Extend(ctx, capped.ID, alice, []byte("y")), chunkstore.ErrInvalidState)
	assert.ErrorIs(t, cli.Extend(ctx, capped.ID, "mallory", []byte("y")), content.ErrUnauthorized)
	assert.ErrorIs(t, cli.AddToWhitelist(ctx, capped.ID, alice, "bob"), policy.ErrUnsupportedOperation)

	paid, err := cli.Create(ctx, vault.CreateRequest{
		Owner: alice, Seed: []byte("x"),
		Policy: policy.Spec{Kind: policy.KindPayPerUse, PricePerUse: 10},
	})
	require.NoError(t, err)
	_, err = cli.Use(ctx, paid.ID, "bob", 9)
	assert.ErrorIs(t, err, policy.ErrPaymentRequired)
	_, err = cli.Use(ctx, paid.ID, "bob", 10)
	assert.NoError(t, err)

	wl, err := cli.Create(ctx, vault.CreateRequest{
		Owner: alice, Seed: []byte("x"),
		Policy: policy.Spec{Kind: policy.KindWhitelisted},
	})
	require.NoError(t, err)
	_, err = cli.Use(ctx, wl.ID, "bob", 0)
	assert.ErrorIs(t, err, policy.ErrNotWhitelisted)
	require.NoError(t, cli.AddToWhitelist(ctx, wl.ID, alice, "bob"))
	_, err = cli.Use(ctx, wl.ID, "bob", 0)
	assert.NoError(t, err)

	_, err = cli.Create(ctx, vault.CreateRequest{Owner: alice, Policy: policy.Spec{Kind: policy.KindOpen}})
	assert.ErrorIs(t, err, chunkstore.ErrEmptySeed)

	// 没有身份的创建请求
	_, err = cli.Create(ctx, vault.CreateRequest{Seed: []byte("x"), Policy: policy.Spec{Kind: policy.KindOpen}})
	assert.ErrorIs(t, err, content.ErrInvalidOwner)

	_, err = cli.Info(ctx, "missing")
	assert.ErrorIs(t, err, meta.ErrContentNotFound)
	assert.Equal(t, codes.NotFound, status.Code(err))

	var buf bytes.Buffer
	_, err = cli.Export(ctx, "missing", &buf)
	assert.ErrorIs(t, err, meta.ErrContentNotFound)
}
