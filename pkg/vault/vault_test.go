package vault

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/content"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/storage/disk"
	"chunkvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = types.Identity("alice")

type fixture struct {
	vault  *Vault
	db     *meta.DB
	store  *disk.Adapter
	dbPath string
	dir    string
}

func setupVault(t *testing.T, opts Options) *fixture {
	dir := t.TempDir()
	f := &fixture{dir: dir, dbPath: filepath.Join(dir, "meta.db")}

	store, err := disk.NewAdapter(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	f.store = store

	f.vault = f.open(t, opts)
	return f
}

// open 在同一个数据库文件上打开一个新的 Vault (模拟进程重启)
func (f *fixture) open(t *testing.T, opts Options) *Vault {
	db, err := meta.NewDB(context.Background(), meta.Config{Driver: "sqlite", Path: f.dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f.db = db
	return New(f.store, meta.NewRepository(db), opts)
}

func mustCreate(t *testing.T, v *Vault, spec policy.Spec, seed string) Info {
	t.Helper()
	info, err := v.Create(context.Background(), CreateRequest{
		Owner:    alice,
		MimeType: "text/plain",
		Seed:     []byte(seed),
		Policy:   spec,
	})
	require.NoError(t, err)
	return info
}

func TestCreate(t *testing.T) {
	f := setupVault(t, Options{})
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindOpen}, "seed")

	assert.False(t, info.ID.IsZero())
	assert.Equal(t, alice, info.Owner)
	assert.Equal(t, chunkstore.Accumulating, info.State)
	assert.Equal(t, 1, info.ChunkCount)
	assert.Equal(t, int64(4), info.TotalSize)
	assert.True(t, info.ManifestHash.IsZero())

	_, err := f.vault.Create(context.Background(), CreateRequest{Owner: alice, Policy: policy.Spec{Kind: policy.KindOpen}})
	assert.ErrorIs(t, err, chunkstore.ErrEmptySeed)

	_, err = f.vault.Create(context.Background(), CreateRequest{Owner: alice, Seed: []byte("x"), Policy: policy.Spec{Kind: policy.KindCapped}})
	assert.ErrorIs(t, err, policy.ErrInvalidPolicy)
}

func TestLifecycle_ExtendFinalizeExport(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindOpen}, "Hello ")

	require.NoError(t, f.vault.Extend(ctx, info.ID, alice, []byte("Chunk"), []byte("Vault")))
	assert.ErrorIs(t, f.vault.Extend(ctx, info.ID, "mallory", []byte("x")), content.ErrUnauthorized)

	// 未封存时按块记录导出
	var buf bytes.Buffer
	_, err := f.vault.Export(ctx, info.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Hello ChunkVault", buf.String())

	_, err = f.vault.Manifest(ctx, info.ID)
	assert.ErrorIs(t, err, content.ErrNotFinalized)

	require.NoError(t, f.vault.Finalize(ctx, info.ID, alice))
	assert.ErrorIs(t, f.vault.Finalize(ctx, info.ID, alice), chunkstore.ErrAlreadyFinalized)
	assert.ErrorIs(t, f.vault.Extend(ctx, info.ID, alice, []byte("late")), chunkstore.ErrInvalidState)

	got, err := f.vault.Info(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinalized())
	assert.Equal(t, 3, got.ChunkCount)
	assert.False(t, got.ManifestHash.IsZero())

	m, err := f.vault.Manifest(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ManifestHash, m.ID())
	assert.Equal(t, int64(16), m.TotalSize)

	buf.Reset()
	n, err := f.vault.Export(ctx, info.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(16), n)
	assert.Equal(t, "Hello ChunkVault", buf.String())

	// 封存事件只出现一次
	events, err := f.vault.Events(ctx, info.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, content.EventSealed, events[0].Kind)
	assert.Equal(t, 3, events[0].ChunkCount)
}

func TestUse_CappedScenario(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindCapped, MaxUses: 2}, "seed")
	require.NoError(t, f.vault.Finalize(ctx, info.ID, alice))

	n, err := f.vault.Use(ctx, info.ID, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, err = f.vault.Use(ctx, info.ID, "carol", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, err = f.vault.Use(ctx, info.ID, "bob", 0)
	assert.ErrorIs(t, err, policy.ErrMaxAccessReached)
	assert.Equal(t, uint64(2), n)

	got, err := f.vault.Info(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.UsageCount)

	events, err := f.vault.Events(ctx, info.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3) // sealed + 2 × used
	assert.Equal(t, content.EventUsed, events[2].Kind)
	assert.Equal(t, types.Identity("carol"), events[2].Caller)
	assert.Equal(t, uint64(2), events[2].UsageCount)
}

func TestUse_DoesNotReadChunkRows(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindWhitelisted}, "seed")
	require.NoError(t, f.vault.Extend(ctx, info.ID, alice, []byte("one"), []byte("two")))

	// 删掉块行：use / 白名单 / 追加 只依赖 contents 上的块数和大小
	require.NoError(t, f.db.GetConn().Where("content_id = ?", info.ID.String()).Delete(&meta.ChunkModel{}).Error)

	require.NoError(t, f.vault.AddToWhitelist(ctx, info.ID, alice, "bob"))
	n, err := f.vault.Use(ctx, info.ID, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	require.NoError(t, f.vault.Extend(ctx, info.ID, alice, []byte("three!")))

	got, err := f.vault.Info(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ChunkCount)
	assert.Equal(t, int64(4+3+3+6), got.TotalSize)

	// 新块的序号接在原有块之后
	rows, err := meta.NewRepository(f.db).LoadChunks(ctx, info.ID.String())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Seq)

	// 封存需要完整序列，缺行时报错而不是写出错误的 Manifest
	assert.Error(t, f.vault.Finalize(ctx, info.ID, alice))
}

func TestUse_PayPerUseAndWhitelist(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()

	paid := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindPayPerUse, PricePerUse: 100}, "seed")
	_, err := f.vault.Use(ctx, paid.ID, "bob", 99)
	assert.ErrorIs(t, err, policy.ErrPaymentRequired)
	_, err = f.vault.Use(ctx, paid.ID, "bob", 100)
	assert.NoError(t, err)

	wl := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindWhitelisted}, "seed")
	_, err = f.vault.Use(ctx, wl.ID, "bob", 0)
	assert.ErrorIs(t, err, policy.ErrNotWhitelisted)

	assert.ErrorIs(t, f.vault.AddToWhitelist(ctx, wl.ID, "bob", "carol"), content.ErrUnauthorized)
	require.NoError(t, f.vault.AddToWhitelist(ctx, wl.ID, alice, "bob"))
	require.NoError(t, f.vault.AddToWhitelist(ctx, wl.ID, alice, "carol"))
	require.NoError(t, f.vault.AddToWhitelist(ctx, wl.ID, alice, "carol"))

	n, err := f.vault.Use(ctx, wl.ID, "carol", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	got, err := f.vault.Info(ctx, wl.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.Identity{"bob", "carol"}, got.Policy.Whitelist)

	// 每个成员恰好一个 whitelisted 事件，重复添加不产生新事件
	events, err := f.vault.Events(ctx, wl.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, content.EventWhitelisted, events[0].Kind)
	assert.Equal(t, types.Identity("bob"), events[0].Identity)
	assert.Equal(t, types.Identity("carol"), events[1].Identity)
	assert.Equal(t, content.EventUsed, events[2].Kind)

	assert.ErrorIs(t, f.vault.AddToWhitelist(ctx, paid.ID, alice, "carol"), policy.ErrUnsupportedOperation)
}

func TestDenialsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	f := setupVault(t, Options{Logger: logger})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindCapped, MaxUses: 1}, "seed")

	_, err := f.vault.Use(ctx, info.ID, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "成功的调用不写 Warn")

	_, err = f.vault.Use(ctx, info.ID, "bob", 0)
	require.ErrorIs(t, err, policy.ErrMaxAccessReached)
	assert.ErrorIs(t, f.vault.Finalize(ctx, info.ID, "bob"), content.ErrUnauthorized)

	logs := buf.String()
	assert.Contains(t, logs, `"level":"WARN"`)
	assert.Contains(t, logs, `"msg":"use denied"`)
	assert.Contains(t, logs, "max use reached")
	assert.Contains(t, logs, `"msg":"finalize rejected"`)
	assert.Contains(t, logs, `"caller":"bob"`)
}

func TestCreate_RejectsSeededWhitelist(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()

	_, err := f.vault.Create(ctx, CreateRequest{
		Owner:  alice,
		Seed:   []byte("seed"),
		Policy: policy.Spec{Kind: policy.KindWhitelisted, Whitelist: []types.Identity{"bob"}},
	})
	assert.ErrorIs(t, err, policy.ErrInvalidPolicy)

	list, err := f.vault.ListByOwner(ctx, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "被拒绝的创建不能落库")
}

func TestUse_RequireFinalized(t *testing.T) {
	f := setupVault(t, Options{RequireFinalizedUse: true})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindOpen}, "seed")

	_, err := f.vault.Use(ctx, info.ID, "bob", 0)
	assert.ErrorIs(t, err, content.ErrNotFinalized)

	require.NoError(t, f.vault.Finalize(ctx, info.ID, alice))
	_, err = f.vault.Use(ctx, info.ID, "bob", 0)
	assert.NoError(t, err)
}

func TestUse_ConcurrentCapped(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindCapped, MaxUses: 5}, "seed")

	var (
		wg      sync.WaitGroup
		success atomic.Int32
		denied  atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.vault.Use(ctx, info.ID, "bob", 0)
			switch {
			case err == nil:
				success.Add(1)
			case assert.ErrorIs(t, err, policy.ErrMaxAccessReached):
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), success.Load())
	assert.Equal(t, int32(15), denied.Load())

	got, err := f.vault.Info(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.UsageCount)
	assert.Equal(t, 0, f.vault.locks.size(), "idle locks must be released")
}

func TestPersistence_Reopen(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()
	info := mustCreate(t, f.vault, policy.Spec{Kind: policy.KindCapped, MaxUses: 2}, "Hello ")
	require.NoError(t, f.vault.Extend(ctx, info.ID, alice, []byte("again")))
	_, err := f.vault.Use(ctx, info.ID, "bob", 0)
	require.NoError(t, err)

	// 新的 Vault 实例，状态来自磁盘
	reopened := f.open(t, Options{})
	got, err := reopened.Info(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.UsageCount)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, policy.KindCapped, got.Policy.Kind)

	require.NoError(t, reopened.Finalize(ctx, info.ID, alice))
	_, err = reopened.Use(ctx, info.ID, "bob", 0)
	require.NoError(t, err)
	_, err = reopened.Use(ctx, info.ID, "bob", 0)
	assert.ErrorIs(t, err, policy.ErrMaxAccessReached)

	var buf bytes.Buffer
	_, err = reopened.Export(ctx, info.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", buf.String())
}

func TestNotFound(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()

	_, err := f.vault.Info(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.vault.Use(ctx, "missing", "bob", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.vault.Events(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	f := setupVault(t, Options{})
	ctx := context.Background()

	mustCreate(t, f.vault, policy.Spec{Kind: policy.KindOpen}, "one")
	mustCreate(t, f.vault, policy.Spec{Kind: policy.KindOpen}, "two")
	_, err := f.vault.Create(ctx, CreateRequest{Owner: "bob", Seed: []byte("x"), Policy: policy.Spec{Kind: policy.KindOpen}})
	require.NoError(t, err)

	list, err := f.vault.ListByOwner(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, info := range list {
		assert.Equal(t, alice, info.Owner)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		unlock()
		close(done)
	}()

	unlockA()
	<-done
	unlockB()
	assert.Equal(t, 0, k.size())
}
