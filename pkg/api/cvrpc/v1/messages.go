package cvrpc

type PolicySpec struct {
	Kind        string   `cbor:"kind"`
	MaxUses     uint64   `cbor:"max_uses,omitempty"`
	PricePerUse uint64   `cbor:"price_per_use,omitempty"`
	Whitelist   []string `cbor:"whitelist,omitempty"`
}

// PolicyParams 是创建时允许指定的策略参数。白名单成员只能通过 AddToWhitelist 加入。
type PolicyParams struct {
	Kind        string `cbor:"kind"`
	MaxUses     uint64 `cbor:"max_uses,omitempty"`
	PricePerUse uint64 `cbor:"price_per_use,omitempty"`
}

type ContentInfo struct {
	ID                  string     `cbor:"id"`
	Owner               string     `cbor:"owner"`
	MimeType            string     `cbor:"mime_type"`
	Policy              PolicySpec `cbor:"policy"`
	State               string     `cbor:"state"`
	ChunkCount          int64      `cbor:"chunk_count"`
	TotalSize           int64      `cbor:"total_size"`
	UsageCount          uint64     `cbor:"usage_count"`
	ManifestHash        string     `cbor:"manifest_hash,omitempty"`
	RequireFinalizedUse bool       `cbor:"require_finalized_use,omitempty"`
	Version             int64      `cbor:"version"`
	CreatedAtUnixNano   int64      `cbor:"created_at"`
	UpdatedAtUnixNano   int64      `cbor:"updated_at"`
}

type Event struct {
	Kind       string `cbor:"kind"`
	ContentID  string `cbor:"content_id"`
	ChunkCount int64  `cbor:"chunk_count,omitempty"`
	UsageCount uint64 `cbor:"usage_count,omitempty"`
	Caller     string `cbor:"caller,omitempty"`
	Value      uint64 `cbor:"value,omitempty"`
	Identity   string `cbor:"identity,omitempty"`
	AtUnixNano int64  `cbor:"at"`
}

// Create: 所有者取自调用者身份
type CreateRequest struct {
	MimeType     string     `cbor:"mime_type"`
	Seed         []byte       `cbor:"seed"`
	Policy       PolicyParams `cbor:"policy"`
	AutoFinalize bool         `cbor:"auto_finalize,omitempty"`
}

type CreateResponse struct {
	Info *ContentInfo `cbor:"info"`
}

type ExtendRequest struct {
	ContentID string   `cbor:"content_id"`
	Chunks    [][]byte `cbor:"chunks"`
}

type ExtendResponse struct{}

type FinalizeRequest struct {
	ContentID string `cbor:"content_id"`
}

type FinalizeResponse struct{}

type UseRequest struct {
	ContentID string `cbor:"content_id"`
	Value     uint64 `cbor:"value,omitempty"`
}

type UseResponse struct {
	UsageCount uint64 `cbor:"usage_count"`
}

type AddToWhitelistRequest struct {
	ContentID string `cbor:"content_id"`
	Identity  string `cbor:"identity"`
}

type AddToWhitelistResponse struct{}

type InfoRequest struct {
	ContentID string `cbor:"content_id"`
}

type InfoResponse struct {
	Info *ContentInfo `cbor:"info"`
}

type EventsRequest struct {
	ContentID string `cbor:"content_id"`
	Limit     int32  `cbor:"limit,omitempty"`
}

type EventsResponse struct {
	Events []*Event `cbor:"events"`
}

type ListRequest struct {
	Owner string `cbor:"owner"`
	Limit int32  `cbor:"limit,omitempty"`
}

type ListResponse struct {
	Contents []*ContentInfo `cbor:"contents"`
}

type DownloadRequest struct {
	ContentID string `cbor:"content_id"`
}

type DownloadResponse struct {
	ChunkData []byte `cbor:"chunk_data"`
}
