package service

import (
	"fmt"
	"time"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/content"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"
)

// =============================================================================
// DTO <-> Domain
// =============================================================================

func SpecToRPC(s policy.Spec) cvrpc.PolicySpec {
	wl := make([]string, 0, len(s.Whitelist))
	for _, id := range s.Whitelist {
		wl = append(wl, id.String())
	}
	return cvrpc.PolicySpec{
		Kind:        s.Kind.String(),
		MaxUses:     s.MaxUses,
		PricePerUse: uint64(s.PricePerUse),
		Whitelist:   wl,
	}
}

// SpecFromRPC 接受 ParseKind 支持的所有写法
func SpecFromRPC(p cvrpc.PolicySpec) (policy.Spec, error) {
	kind, err := policy.ParseKind(p.Kind)
	if err != nil {
		return policy.Spec{}, err
	}
	var wl []types.Identity
	for _, id := range p.Whitelist {
		wl = append(wl, types.Identity(id))
	}
	return policy.Spec{
		Kind:        kind,
		MaxUses:     p.MaxUses,
		PricePerUse: types.Amount(p.PricePerUse),
		Whitelist:   wl,
	}, nil
}

// ParamsToRPC 只携带创建参数；带成员的白名单在这里就被拒绝
func ParamsToRPC(s policy.Spec) (cvrpc.PolicyParams, error) {
	if len(s.Whitelist) > 0 {
		return cvrpc.PolicyParams{}, fmt.Errorf("%w: whitelist members are added with AddToWhitelist", policy.ErrInvalidPolicy)
	}
	return cvrpc.PolicyParams{
		Kind:        s.Kind.String(),
		MaxUses:     s.MaxUses,
		PricePerUse: uint64(s.PricePerUse),
	}, nil
}

func ParamsFromRPC(p cvrpc.PolicyParams) (policy.Spec, error) {
	kind, err := policy.ParseKind(p.Kind)
	if err != nil {
		return policy.Spec{}, err
	}
	return policy.Spec{
		Kind:        kind,
		MaxUses:     p.MaxUses,
		PricePerUse: types.Amount(p.PricePerUse),
	}, nil
}

func InfoToRPC(i vault.Info) *cvrpc.ContentInfo {
	return &cvrpc.ContentInfo{
		ID:                  i.ID.String(),
		Owner:               i.Owner.String(),
		MimeType:            i.MimeType,
		Policy:              SpecToRPC(i.Policy),
		State:               string(i.State),
		ChunkCount:          int64(i.ChunkCount),
		TotalSize:           i.TotalSize,
		UsageCount:          i.UsageCount,
		ManifestHash:        i.ManifestHash.String(),
		RequireFinalizedUse: i.RequireFinalizedUse,
		Version:             i.Version,
		CreatedAtUnixNano:   i.CreatedAt.UnixNano(),
		UpdatedAtUnixNano:   i.UpdatedAt.UnixNano(),
	}
}

func InfoFromRPC(c *cvrpc.ContentInfo) vault.Info {
	if c == nil {
		return vault.Info{}
	}
	spec, _ := SpecFromRPC(c.Policy)
	if spec.Kind == "" {
		spec.Kind = policy.Kind(c.Policy.Kind)
	}
	return vault.Info{
		ID:                  types.ContentID(c.ID),
		Owner:               types.Identity(c.Owner),
		MimeType:            c.MimeType,
		Policy:              spec,
		State:               chunkstore.State(c.State),
		ChunkCount:          int(c.ChunkCount),
		TotalSize:           c.TotalSize,
		UsageCount:          c.UsageCount,
		ManifestHash:        types.Hash(c.ManifestHash),
		RequireFinalizedUse: c.RequireFinalizedUse,
		Version:             c.Version,
		CreatedAt:           time.Unix(0, c.CreatedAtUnixNano).UTC(),
		UpdatedAt:           time.Unix(0, c.UpdatedAtUnixNano).UTC(),
	}
}

func EventToRPC(e content.Event) *cvrpc.Event {
	return &cvrpc.Event{
		Kind:       string(e.Kind),
		ContentID:  e.ContentID.String(),
		ChunkCount: int64(e.ChunkCount),
		UsageCount: e.UsageCount,
		Caller:     e.Caller.String(),
		Value:      uint64(e.Value),
		Identity:   e.Identity.String(),
		AtUnixNano: e.At.UnixNano(),
	}
}

func EventFromRPC(e *cvrpc.Event) content.Event {
	return content.Event{
		Kind:       content.EventKind(e.Kind),
		ContentID:  types.ContentID(e.ContentID),
		ChunkCount: int(e.ChunkCount),
		UsageCount: e.UsageCount,
		Caller:     types.Identity(e.Caller),
		Value:      types.Amount(e.Value),
		Identity:   types.Identity(e.Identity),
		At:         time.Unix(0, e.AtUnixNano).UTC(),
	}
}
