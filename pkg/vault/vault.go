// Package vault 托管多个内容实例，并把每次操作的结果原子地落到元数据库和 Blob 存储。
//
// 一次操作的流程：加载快照 -> 重建 content.Instance -> 执行操作 -> 写块 / Manifest -> 提交元数据。
// 进程内用按 ID 的互斥锁串行化，跨进程依赖 contents.version 的 CAS。
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/content"
	"chunkvault/pkg/core"
	"chunkvault/pkg/exporter"
	"chunkvault/pkg/ingester"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"

	"github.com/google/uuid"
)

var ErrNotFound = meta.ErrContentNotFound

// CAS 失败后的最大重试次数
const maxAttempts = 3

type Options struct {
	// RequireFinalizedUse 作用于之后新建的实例
	RequireFinalizedUse bool
	UploadConcurrency   int
	Logger              *slog.Logger
}

type Vault struct {
	store    storage.Store
	repo     *meta.Repository
	ingester *ingester.Ingester
	exporter *exporter.Exporter
	locks    *keyedMutex
	log      *slog.Logger

	requireFinalizedUse bool
}

func New(store storage.Store, repo *meta.Repository, opts Options) *Vault {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Vault{
		store:               store,
		repo:                repo,
		ingester:            ingester.NewIngester(store, 0, opts.UploadConcurrency),
		exporter:            exporter.NewExporter(store),
		locks:               newKeyedMutex(),
		log:                 log,
		requireFinalizedUse: opts.RequireFinalizedUse,
	}
}

type CreateRequest struct {
	Owner        types.Identity
	MimeType     string
	Seed         []byte
	Policy       policy.Spec
	AutoFinalize bool
}

// loaded 记录加载时的基线，用于计算本次操作的增量
type loaded struct {
	inst      *content.Instance
	model     *meta.ContentModel
	whitelist []types.Identity
}

// -----------------------------------------------------------------------------
// 1. 写操作
// -----------------------------------------------------------------------------

func (v *Vault) Create(ctx context.Context, req CreateRequest) (Info, error) {
	if len(req.Policy.Whitelist) > 0 {
		return Info{}, fmt.Errorf("%w: whitelist members are added with AddToWhitelist", policy.ErrInvalidPolicy)
	}
	pol, err := policy.New(req.Policy)
	if err != nil {
		return Info{}, err
	}
	inst, err := content.New(content.Params{
		ID:                  types.ContentID(uuid.NewString()),
		Owner:               req.Owner,
		MimeType:            req.MimeType,
		Seed:                core.NewChunk(req.Seed),
		Policy:              pol,
		AutoFinalize:        req.AutoFinalize,
		RequireFinalizedUse: v.requireFinalizedUse,
	})
	if err != nil {
		return Info{}, err
	}

	if err := v.commit(ctx, inst, nil); err != nil {
		return Info{}, err
	}
	v.log.InfoContext(ctx, "content created",
		"id", inst.ID(), "owner", inst.Owner(), "mime", inst.MimeType(),
		"policy", inst.PolicyKind(), "finalized", inst.IsFinalized())
	return v.Info(ctx, inst.ID())
}

func (v *Vault) Extend(ctx context.Context, id types.ContentID, caller types.Identity, blocks ...[]byte) error {
	chunks := make([]*core.Chunk, len(blocks))
	for i, b := range blocks {
		if b == nil {
			b = []byte{}
		}
		chunks[i] = core.NewChunk(b)
	}
	var total int
	err := v.mutate(ctx, id, summaryOnly, func(inst *content.Instance) error {
		if err := inst.Extend(caller, chunks...); err != nil {
			v.log.WarnContext(ctx, "extend rejected", "id", id, "caller", caller, "err", err)
			return err
		}
		total = inst.ChunkCount()
		return nil
	})
	if err != nil {
		return err
	}
	v.log.InfoContext(ctx, "content extended", "id", id, "added", len(chunks), "chunks", total)
	return nil
}

func (v *Vault) Finalize(ctx context.Context, id types.ContentID, caller types.Identity) error {
	// 封存要写 Manifest，需要完整的块序列
	var chunks int
	var uses uint64
	err := v.mutate(ctx, id, withChunks, func(inst *content.Instance) error {
		if err := inst.Finalize(caller); err != nil {
			v.log.WarnContext(ctx, "finalize rejected", "id", id, "caller", caller, "err", err)
			return err
		}
		chunks, uses = inst.ChunkCount(), inst.UsageCount()
		return nil
	})
	if err != nil {
		return err
	}
	v.log.InfoContext(ctx, "content sealed", "id", id, "chunks", chunks, "uses_before_seal", uses)
	return nil
}

// Use 返回本次使用后的计数
func (v *Vault) Use(ctx context.Context, id types.ContentID, caller types.Identity, value types.Amount) (uint64, error) {
	var count uint64
	err := v.mutate(ctx, id, summaryOnly, func(inst *content.Instance) error {
		n, err := inst.Use(content.UseRequest{Caller: caller, Value: value})
		count = n
		if err != nil {
			v.log.WarnContext(ctx, "use denied", "id", id, "caller", caller, "value", value, "err", err)
		}
		return err
	})
	if err != nil {
		return count, err
	}
	v.log.InfoContext(ctx, "content used", "id", id, "caller", caller, "value", value, "count", count)
	return count, nil
}

func (v *Vault) AddToWhitelist(ctx context.Context, id types.ContentID, caller, member types.Identity) error {
	var existed bool
	err := v.mutate(ctx, id, summaryOnly, func(inst *content.Instance) error {
		existed = inst.IsWhitelisted(member)
		if err := inst.AddToWhitelist(caller, member); err != nil {
			v.log.WarnContext(ctx, "whitelist update rejected", "id", id, "caller", caller, "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if existed {
		v.log.DebugContext(ctx, "whitelist unchanged", "id", id, "identity", member)
		return nil
	}
	v.log.InfoContext(ctx, "whitelist updated", "id", id, "identity", member)
	return nil
}

// loadMode 决定是否加载 content_chunks 行
type loadMode bool

const (
	summaryOnly loadMode = false
	withChunks  loadMode = true
)

// mutate 在实例锁内执行 op 并提交；CAS 失败时用最新状态重放
func (v *Vault) mutate(ctx context.Context, id types.ContentID, mode loadMode, op func(*content.Instance) error) error {
	unlock := v.locks.Lock(id.String())
	defer unlock()

	for attempt := 1; ; attempt++ {
		l, err := v.load(ctx, id, mode)
		if err != nil {
			return err
		}
		if err := op(l.inst); err != nil {
			return err
		}
		err = v.commit(ctx, l.inst, l)
		if errors.Is(err, meta.ErrConcurrentUpdate) && attempt < maxAttempts {
			v.log.WarnContext(ctx, "concurrent update, retrying", "id", id, "attempt", attempt)
			continue
		}
		return err
	}
}

func (v *Vault) load(ctx context.Context, id types.ContentID, mode loadMode) (*loaded, error) {
	m, err := v.repo.GetContent(ctx, id.String())
	if err != nil {
		return nil, err
	}
	wl, err := v.repo.LoadWhitelist(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load whitelist: %w", err)
	}

	info := toInfo(m, wl)
	snap := content.Snapshot{
		ID:                  info.ID,
		Owner:               info.Owner,
		MimeType:            info.MimeType,
		Policy:              info.Policy,
		State:               info.State,
		UsageCount:          info.UsageCount,
		RequireFinalizedUse: info.RequireFinalizedUse,
		SummaryCount:        m.ChunkCount,
		SummarySize:         m.TotalSize,
	}
	if mode == withChunks {
		rows, err := v.repo.LoadChunks(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunks: %w", err)
		}
		if len(rows) != m.ChunkCount {
			return nil, fmt.Errorf("content %s: %d chunk rows, expected %d", m.ID, len(rows), m.ChunkCount)
		}
		// 块数据留在 Blob 存储，这里只恢复引用
		snap.Chunks = make([]*core.Chunk, len(rows))
		for i, r := range rows {
			snap.Chunks[i] = core.NewChunkRef(types.Hash(r.Hash), r.Size)
		}
		snap.SummaryCount, snap.SummarySize = 0, 0
	}

	inst, err := content.Restore(snap)
	if err != nil {
		return nil, err
	}
	return &loaded{inst: inst, model: m, whitelist: info.Policy.Whitelist}, nil
}

// commit 先写 Blob，再在一个事务里提交元数据和事件。prev 为 nil 表示新建。
func (v *Vault) commit(ctx context.Context, inst *content.Instance, prev *loaded) error {
	snap := inst.Snapshot()

	var (
		offset       int
		expected     int64
		wasFinalized bool
		manifest     types.Hash
		wlBefore     []types.Identity
	)
	if prev != nil {
		offset = prev.model.ChunkCount
		expected = prev.model.Version
		wasFinalized = prev.model.State == string(chunkstore.Finalized)
		manifest = types.Hash(prev.model.ManifestHash)
		wlBefore = prev.whitelist
	}
	// 摘要恢复时 snap.Chunks 只有本次追加的块
	newChunks := snap.Chunks[offset-snap.SummaryCount:]

	// 1. 块数据 (幂等，重试无害)
	if err := v.ingester.Store(ctx, newChunks); err != nil {
		return err
	}

	// 2. 封存时写入 Manifest
	if snap.State == chunkstore.Finalized && !wasFinalized {
		all, err := inst.Chunks()
		if err != nil {
			return fmt.Errorf("manifest for %s: %w", snap.ID, err)
		}
		m, err := core.NewManifest(snap.ID, snap.MimeType, snap.Owner, all)
		if err != nil {
			return fmt.Errorf("failed to build manifest: %w", err)
		}
		if err := v.store.Put(ctx, m); err != nil {
			return fmt.Errorf("failed to store manifest: %w", err)
		}
		manifest = m.ID()
	}

	// 3. 元数据 + 事件
	events, err := eventRows(inst.DrainEvents())
	if err != nil {
		return err
	}
	return v.repo.Save(ctx, meta.Change{
		Content:         toModel(snap, manifest),
		ExpectedVersion: expected,
		NewChunks:       chunkRows(snap.ID, offset, newChunks),
		NewWhitelist:    whitelistDiff(snap.ID, wlBefore, snap.Policy.Whitelist),
		Events:          events,
	})
}

// -----------------------------------------------------------------------------
// 2. 读操作
// -----------------------------------------------------------------------------

func (v *Vault) Info(ctx context.Context, id types.ContentID) (Info, error) {
	m, err := v.repo.GetContent(ctx, id.String())
	if err != nil {
		return Info{}, err
	}
	wl, err := v.repo.LoadWhitelist(ctx, m.ID)
	if err != nil {
		return Info{}, fmt.Errorf("failed to load whitelist: %w", err)
	}
	return toInfo(m, wl), nil
}

// Export 按块顺序把内容写入 w。封存后的内容通过 Manifest 还原。
func (v *Vault) Export(ctx context.Context, id types.ContentID, w io.Writer) (int64, error) {
	m, err := v.repo.GetContent(ctx, id.String())
	if err != nil {
		return 0, err
	}
	if m.ManifestHash != "" {
		return v.exporter.ExportManifest(ctx, types.Hash(m.ManifestHash), w)
	}

	rows, err := v.repo.LoadChunks(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load chunks: %w", err)
	}
	hashes := make([]types.Hash, len(rows))
	for i, r := range rows {
		hashes[i] = types.Hash(r.Hash)
	}
	return v.exporter.ExportChunks(ctx, hashes, w)
}

// Manifest 仅对已封存的内容可用
func (v *Vault) Manifest(ctx context.Context, id types.ContentID) (*core.Manifest, error) {
	m, err := v.repo.GetContent(ctx, id.String())
	if err != nil {
		return nil, err
	}
	if m.ManifestHash == "" {
		return nil, content.ErrNotFinalized
	}
	return v.exporter.ReadManifest(ctx, types.Hash(m.ManifestHash))
}

// Events 按发生顺序返回事件，limit <= 0 表示全部
func (v *Vault) Events(ctx context.Context, id types.ContentID, limit int) ([]content.Event, error) {
	if _, err := v.repo.GetContent(ctx, id.String()); err != nil {
		return nil, err
	}
	rows, err := v.repo.ListEvents(ctx, id.String(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]content.Event, 0, len(rows))
	for _, r := range rows {
		e, err := decodeEvent(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (v *Vault) ListByOwner(ctx context.Context, owner types.Identity, limit int) ([]Info, error) {
	models, err := v.repo.ListContentsByOwner(ctx, owner.String(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(models))
	for i := range models {
		wl, err := v.repo.LoadWhitelist(ctx, models[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, toInfo(&models[i], wl))
	}
	return out, nil
}
