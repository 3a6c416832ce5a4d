// Package policy 实现内容实例的访问策略。
//
// 四种策略 (Open, Capped, PayPerUse, Whitelisted) 是一个封闭的 tagged union：
// 同一个 Policy 结构体通过 Kind 区分变体，由 Authorize 中唯一的 switch 分发。
// 策略在构造时确定，之后除了白名单成员外不能再修改参数。
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"chunkvault/pkg/types"
)

var (
	ErrMaxAccessReached     = errors.New("max use reached")
	ErrPaymentRequired      = errors.New("insufficient payment")
	ErrNotWhitelisted       = errors.New("not whitelisted")
	ErrUnsupportedOperation = errors.New("operation not supported by access policy")
	ErrInvalidPolicy        = errors.New("invalid access policy")
)

// Kind 标识策略变体
type Kind string

const (
	KindOpen        Kind = "open"
	KindCapped      Kind = "capped"
	KindPayPerUse   Kind = "pay_per_use"
	KindWhitelisted Kind = "whitelisted"
)

// Kinds 按固定顺序列出全部变体
var Kinds = []Kind{KindOpen, KindCapped, KindPayPerUse, KindWhitelisted}

func (k Kind) String() string { return string(k) }

// ParseKind 接受 CLI / 配置里的写法 ("pay-per-use"、"PayPerUse" 等)
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "open", "basic":
		return KindOpen, nil
	case "capped":
		return KindCapped, nil
	case "pay_per_use", "payperuse", "paid":
		return KindPayPerUse, nil
	case "whitelisted", "whitelist":
		return KindWhitelisted, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, s)
}

// Request 是一次 use 的授权上下文
type Request struct {
	Caller types.Identity
	Value  types.Amount
	Usage  uint64 // 本次调用计数之前的使用次数
}

// Policy 是访问策略的 tagged union
type Policy struct {
	kind    Kind
	limit   uint64                      // Capped
	price   types.Amount                // PayPerUse
	allowed map[types.Identity]struct{} // Whitelisted
}

func Open() *Policy { return &Policy{kind: KindOpen} }

// Capped 允许恰好 limit 次成功使用
func Capped(limit uint64) (*Policy, error) {
	if limit == 0 {
		return nil, fmt.Errorf("%w: capped limit must be positive", ErrInvalidPolicy)
	}
	return &Policy{kind: KindCapped, limit: limit}, nil
}

func PayPerUse(price types.Amount) *Policy {
	return &Policy{kind: KindPayPerUse, price: price}
}

// Whitelisted 的初始成员只用于从持久化状态恢复；新建的实例必须从空白名单开始
func Whitelisted(ids ...types.Identity) *Policy {
	p := &Policy{kind: KindWhitelisted, allowed: make(map[types.Identity]struct{}, len(ids))}
	for _, id := range ids {
		p.allowed[id] = struct{}{}
	}
	return p
}

// Spec 是策略的可序列化参数 (配置、持久化、网络传输共用)
type Spec struct {
	Kind        Kind
	MaxUses     uint64
	PricePerUse types.Amount
	Whitelist   []types.Identity
}

// New 根据 Spec 构造策略
func New(spec Spec) (*Policy, error) {
	switch spec.Kind {
	case KindOpen:
		return Open(), nil
	case KindCapped:
		return Capped(spec.MaxUses)
	case KindPayPerUse:
		return PayPerUse(spec.PricePerUse), nil
	case KindWhitelisted:
		return Whitelisted(spec.Whitelist...), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, spec.Kind)
}

// Spec 返回当前参数的快照
func (p *Policy) Spec() Spec {
	return Spec{
		Kind:        p.kind,
		MaxUses:     p.limit,
		PricePerUse: p.price,
		Whitelist:   p.Whitelist(),
	}
}

func (p *Policy) Kind() Kind                { return p.kind }
func (p *Policy) Limit() uint64             { return p.limit }
func (p *Policy) PricePerUse() types.Amount { return p.price }

// Authorize 是纯决策函数：返回 nil 表示放行，否则返回拒绝原因。它从不修改状态。
func (p *Policy) Authorize(req Request) error {
	switch p.kind {
	case KindOpen:
		return nil
	case KindCapped:
		// 严格小于：恰好 limit 次成功，第 limit+1 次被拒
		if req.Usage < p.limit {
			return nil
		}
		return ErrMaxAccessReached
	case KindPayPerUse:
		if req.Value >= p.price {
			return nil
		}
		return ErrPaymentRequired
	case KindWhitelisted:
		if _, ok := p.allowed[req.Caller]; ok {
			return nil
		}
		return ErrNotWhitelisted
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, p.kind)
}

// AddToWhitelist 幂等。返回值报告是否真正新增了成员。
func (p *Policy) AddToWhitelist(id types.Identity) (bool, error) {
	if p.kind != KindWhitelisted {
		return false, fmt.Errorf("%w: whitelist on %s policy", ErrUnsupportedOperation, p.kind)
	}
	if id.IsZero() {
		return false, fmt.Errorf("%w: empty identity", ErrInvalidPolicy)
	}
	if _, ok := p.allowed[id]; ok {
		return false, nil
	}
	p.allowed[id] = struct{}{}
	return true, nil
}

func (p *Policy) IsWhitelisted(id types.Identity) bool {
	_, ok := p.allowed[id]
	return ok
}

// Whitelist 返回排序后的成员列表
func (p *Policy) Whitelist() []types.Identity {
	if len(p.allowed) == 0 {
		return nil
	}
	out := make([]types.Identity, 0, len(p.allowed))
	for id := range p.allowed {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
