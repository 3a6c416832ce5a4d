package vault

import (
	"encoding/json"
	"fmt"
	"time"

	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/content"
	"chunkvault/pkg/core"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/types"
)

// Info 是内容实例对外展示的只读视图
type Info struct {
	ID                  types.ContentID
	Owner               types.Identity
	MimeType            string
	Policy              policy.Spec
	State               chunkstore.State
	ChunkCount          int
	TotalSize           int64
	UsageCount          uint64
	ManifestHash        types.Hash
	RequireFinalizedUse bool
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (i Info) IsFinalized() bool { return i.State == chunkstore.Finalized }

func toInfo(m *meta.ContentModel, whitelist []string) Info {
	return Info{
		ID:       types.ContentID(m.ID),
		Owner:    types.Identity(m.Owner),
		MimeType: m.MimeType,
		Policy: policy.Spec{
			Kind:        policy.Kind(m.PolicyKind),
			MaxUses:     m.MaxUses,
			PricePerUse: types.Amount(m.PricePerUse),
			Whitelist:   toIdentities(whitelist),
		},
		State:               chunkstore.State(m.State),
		ChunkCount:          m.ChunkCount,
		TotalSize:           m.TotalSize,
		UsageCount:          m.UsageCount,
		ManifestHash:        types.Hash(m.ManifestHash),
		RequireFinalizedUse: m.RequireFinalizedUse,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toIdentities(ids []string) []types.Identity {
	if len(ids) == 0 {
		return nil
	}
	out := make([]types.Identity, len(ids))
	for i, id := range ids {
		out[i] = types.Identity(id)
	}
	return out
}

// toModel 把快照投影到 contents 表的一行。Version / 时间戳由仓库维护。
func toModel(s content.Snapshot, manifest types.Hash) *meta.ContentModel {
	return &meta.ContentModel{
		ID:                  s.ID.String(),
		Owner:               s.Owner.String(),
		MimeType:            s.MimeType,
		PolicyKind:          s.Policy.Kind.String(),
		MaxUses:             s.Policy.MaxUses,
		PricePerUse:         uint64(s.Policy.PricePerUse),
		RequireFinalizedUse: s.RequireFinalizedUse,
		State:               string(s.State),
		UsageCount:          s.UsageCount,
		ChunkCount:          s.ChunkCount,
		TotalSize:           s.TotalSize,
		ManifestHash:        manifest.String(),
	}
}

func chunkRows(id types.ContentID, offset int, chunks []*core.Chunk) []meta.ChunkModel {
	rows := make([]meta.ChunkModel, 0, len(chunks))
	for i, c := range chunks {
		rows = append(rows, meta.ChunkModel{
			ContentID: id.String(),
			Seq:       offset + i,
			Hash:      c.ID().String(),
			Size:      c.Size(),
		})
	}
	return rows
}

// whitelistDiff 返回 after 中新增的成员
func whitelistDiff(id types.ContentID, before, after []types.Identity) []meta.WhitelistModel {
	seen := make(map[types.Identity]struct{}, len(before))
	for _, b := range before {
		seen[b] = struct{}{}
	}
	var rows []meta.WhitelistModel
	for _, a := range after {
		if _, ok := seen[a]; ok {
			continue
		}
		rows = append(rows, meta.WhitelistModel{ContentID: id.String(), Identity: a.String()})
	}
	return rows
}

func eventRows(events []content.Event) ([]meta.EventModel, error) {
	rows := make([]meta.EventModel, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s event: %w", e.Kind, err)
		}
		rows = append(rows, meta.EventModel{
			ContentID: e.ContentID.String(),
			Kind:      string(e.Kind),
			Payload:   payload,
			CreatedAt: e.At,
		})
	}
	return rows, nil
}

func decodeEvent(row meta.EventModel) (content.Event, error) {
	var e content.Event
	if err := json.Unmarshal(row.Payload, &e); err != nil {
		return e, fmt.Errorf("failed to decode event %d: %w", row.ID, err)
	}
	return e, nil
}
