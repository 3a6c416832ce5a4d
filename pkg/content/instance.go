// Package content 组合块存储、使用计数器和访问策略，对外暴露内容实例的全部操作。
//
// 每个 Instance 是独立的状态单元，由一把互斥锁串行化：
// 任一操作要么完整提交，要么失败且不留下任何可观察的副作用。
package content

import (
	"fmt"
	"sync"
	"time"

	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/core"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/types"
	"chunkvault/pkg/usage"
)

// Params 是构造参数，除白名单外构造后不可变
type Params struct {
	ID           types.ContentID
	Owner        types.Identity
	MimeType     string
	Seed         *core.Chunk
	Policy       *policy.Policy
	AutoFinalize bool

	// RequireFinalizedUse 为 true 时，累积阶段的 Use 返回 ErrNotFinalized
	RequireFinalizedUse bool
}

// UseRequest 携带调用者身份和附带价值
type UseRequest struct {
	Caller types.Identity
	Value  types.Amount
}

type Instance struct {
	mu sync.Mutex

	id                  types.ContentID
	owner               types.Identity
	mimeType            string
	requireFinalizedUse bool

	store  *chunkstore.Store
	meter  *usage.Meter
	policy *policy.Policy

	events []Event
	now    func() time.Time
}

// New 创建一个新的内容实例
func New(p Params) (*Instance, error) {
	if p.Owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	if p.Policy == nil {
		return nil, fmt.Errorf("%w: missing policy", policy.ErrInvalidPolicy)
	}
	// 白名单从空开始，成员只能经 AddToWhitelist 加入，这样每个成员都有对应的事件
	if n := len(p.Policy.Whitelist()); n > 0 {
		return nil, fmt.Errorf("%w: whitelist must start empty (got %d members)", policy.ErrInvalidPolicy, n)
	}
	store, err := chunkstore.New(p.Seed)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		id:                  p.ID,
		owner:               p.Owner,
		mimeType:            p.MimeType,
		requireFinalizedUse: p.RequireFinalizedUse,
		store:               store,
		meter:               usage.NewMeter(),
		policy:              p.Policy,
		now:                 time.Now,
	}

	if p.AutoFinalize {
		if err := inst.store.Finalize(); err != nil {
			return nil, err
		}
		inst.emit(Event{Kind: EventSealed, ChunkCount: inst.store.ChunkCount()})
	}
	return inst, nil
}

// requireOwner 是所有管理操作共用的所有者检查，必须在任何修改之前调用
func (i *Instance) requireOwner(caller types.Identity) error {
	if caller != i.owner {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	return nil
}

func (i *Instance) emit(e Event) {
	e.ContentID = i.id
	e.At = i.now().UTC()
	i.events = append(i.events, e)
}

// Extend 追加一批块 (仅所有者，仅累积阶段)
func (i *Instance) Extend(caller types.Identity, chunks ...*core.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireOwner(caller); err != nil {
		return err
	}
	return i.store.Extend(chunks...)
}

// Finalize 封存内容 (仅所有者，只能成功一次)
func (i *Instance) Finalize(caller types.Identity) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireOwner(caller); err != nil {
		return err
	}
	if err := i.store.Finalize(); err != nil {
		return err
	}
	i.emit(Event{Kind: EventSealed, ChunkCount: i.store.ChunkCount()})
	return nil
}

// Use 对任意调用者开放：先授权，放行后才计数。拒绝时不做任何修改。
// 返回本次使用之后的计数。
func (i *Instance) Use(req UseRequest) (uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.requireFinalizedUse && !i.store.IsFinalized() {
		return i.meter.Count(), ErrNotFinalized
	}

	// 必须在计数之前读取 usage
	if err := i.policy.Authorize(policy.Request{
		Caller: req.Caller,
		Value:  req.Value,
		Usage:  i.meter.Count(),
	}); err != nil {
		return i.meter.Count(), err
	}

	count := i.meter.RecordUse()
	i.emit(Event{Kind: EventUsed, UsageCount: count, Caller: req.Caller, Value: req.Value})
	return count, nil
}

// AddToWhitelist 仅所有者可调用，且仅对 Whitelisted 策略有效；封存前后都可以
func (i *Instance) AddToWhitelist(caller, id types.Identity) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireOwner(caller); err != nil {
		return err
	}
	added, err := i.policy.AddToWhitelist(id)
	if err != nil {
		return err
	}
	if added {
		i.emit(Event{Kind: EventWhitelisted, Identity: id})
	}
	return nil
}

// DrainEvents 取走并清空待发布的事件
func (i *Instance) DrainEvents() []Event {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := i.events
	i.events = nil
	return out
}

func (i *Instance) ID() types.ContentID     { return i.id }
func (i *Instance) Owner() types.Identity   { return i.owner }
func (i *Instance) MimeType() string        { return i.mimeType }
func (i *Instance) PolicyKind() policy.Kind { return i.policy.Kind() }

func (i *Instance) ChunkCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.store.ChunkCount()
}

func (i *Instance) UsageCount() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.meter.Count()
}

func (i *Instance) IsFinalized() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.store.IsFinalized()
}

// Chunks 返回完整块序列；从摘要恢复的实例返回 chunkstore.ErrNotLoaded
func (i *Instance) Chunks() ([]*core.Chunk, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.store.Chunks()
}

func (i *Instance) IsWhitelisted(id types.Identity) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.policy.IsWhitelisted(id)
}
