package service

import (
	"context"
	"strings"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/app"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ContentService 把 gRPC 请求翻译成 Vault 调用
type ContentService struct {
	cvrpc.UnimplementedContentServiceServer
	app *app.App
}

func NewContentService(application *app.App) *ContentService {
	return &ContentService{app: application}
}

// callerFrom 从 metadata 读取调用者身份；缺失时为空身份，由领域层决定是否拒绝
func callerFrom(ctx context.Context) types.Identity {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(cvrpc.IdentityHeader)
	if len(vals) == 0 {
		return ""
	}
	return types.Identity(strings.TrimSpace(vals[0]))
}

func requireID(id string) (types.ContentID, error) {
	if strings.TrimSpace(id) == "" {
		return "", status.Error(codes.InvalidArgument, "content_id is required")
	}
	return types.ContentID(id), nil
}

func (s *ContentService) Create(ctx context.Context, req *cvrpc.CreateRequest) (*cvrpc.CreateResponse, error) {
	spec, err := ParamsFromRPC(req.Policy)
	if err != nil {
		return nil, ToStatus(err)
	}
	info, err := s.app.Vault.Create(ctx, vault.CreateRequest{
		Owner:        callerFrom(ctx),
		MimeType:     req.MimeType,
		Seed:         req.Seed,
		Policy:       spec,
		AutoFinalize: req.AutoFinalize,
	})
	if err != nil {
		return nil, ToStatus(err)
	}
	return &cvrpc.CreateResponse{Info: InfoToRPC(info)}, nil
}

func (s *ContentService) Extend(ctx context.Context, req *cvrpc.ExtendRequest) (*cvrpc.ExtendResponse, error) {
	id, err := requireID(req.ContentID)
	if err != nil {
		return nil, err
	}
	if err := s.app.Vault.Extend(ctx, id, callerFrom(ctx), req.Chunks...); err != nil {
		return nil, ToStatus(err)
	}
	return &cvrpc.ExtendResponse{}, nil
}

func (s *ContentService) Finalize(ctx context.Context, req *cvrpc.FinalizeRequest) (*cvrpc.FinalizeResponse, error) {
	id, err := requireID(req.ContentID)
	if err != nil {
		return nil, err
	}
	if err := s.app.Vault.Finalize(ctx, id, callerFrom(ctx)); err != nil {
		return nil, ToStatus(err)
	}
	return &cvrpc.FinalizeResponse{}, nil
}

func (s *ContentService) Use(ctx context.Context, req *cvrpc.UseRequest) (*cvrpc.UseResponse, error) {
	id, err := requireID(req.ContentID)
	if err != nil {
		return nil, err
	}
	n, err := s.app.Vault.Use(ctx, id, callerFrom(ctx), types.Amount(req.Value))
	if err != nil {
		return nil, ToStatus(err)
	}
	return &cvrpc.UseResponse{UsageCount: n}, nil
}

func (s *ContentService) AddToWhitelist(ctx context.Context, req *cvrpc.AddToWhitelistRequest) (*cvrpc.AddToWhitelistResponse, error) {
	id, err := requireID(req.ContentID)
	if err != nil {
		return nil, err
	}
	err = s.app.Vault.AddToWhitelist(ctx, id, callerFrom(ctx), types.Identity(req.Identity))
	if err != nil {
		return nil, ToStatus(err)
	}
	return &cvrpc.AddToWhitelistResponse{}, nil
}

func (s *ContentService) Info(ctx context.Context, req *cvrpc.InfoRequest) (*cvrpc.InfoResponse, error) {
	id, err := requireID(req.ContentID)
	if err != nil {
		return nil, err
	}
	info, err := s.app.Vault.Info(ctx, id)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &cvrpc.InfoResponse{Info: InfoToRPC(info)}, nil
}

func (s *ContentService) Events(ctx context.Context, req *cvrpc.EventsRequest) (*cvrpc.EventsResponse, error) {
	id, err := requireID(req.ContentID)
	if err != nil {
		return nil, err
	}
	events, err := s.app.Vault.Events(ctx, id, int(req.Limit))
	if err != nil {
		return nil, ToStatus(err)
	}
	resp := &cvrpc.EventsResponse{Events: make([]*cvrpc.Event, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventToRPC(e))
	}
	return resp, nil
}

func (s *ContentService) List(ctx context.Context, req *cvrpc.ListRequest) (*cvrpc.ListResponse, error) {
	owner := types.Identity(req.Owner)
	if owner.IsZero() {
		owner = callerFrom(ctx)
	}
	if owner.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "owner is required")
	}
	infos, err := s.app.Vault.ListByOwner(ctx, owner, int(req.Limit))
	if err != nil {
		return nil, ToStatus(err)
	}
	resp := &cvrpc.ListResponse{Contents: make([]*cvrpc.ContentInfo, 0, len(infos))}
	for _, i := range infos {
		resp.Contents = append(resp.Contents, InfoToRPC(i))
	}
	return resp, nil
}

// Download 按块顺序流式返回内容
func (s *ContentService) Download(req *cvrpc.DownloadRequest, stream grpc.ServerStreamingServer[cvrpc.DownloadResponse]) error {
	id, err := requireID(req.ContentID)
	if err != nil {
		return err
	}
	// 把 gRPC stream 伪装成 io.Writer
	if _, err := s.app.Vault.Export(stream.Context(), id, NewGrpcStreamWriter(stream)); err != nil {
		return ToStatus(err)
	}
	return nil
}
