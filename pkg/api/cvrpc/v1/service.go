package cvrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "chunkvault.v1.ContentService"

const (
	ContentService_Create_FullMethodName         = "/chunkvault.v1.ContentService/Create"
	ContentService_Extend_FullMethodName         = "/chunkvault.v1.ContentService/Extend"
	ContentService_Finalize_FullMethodName       = "/chunkvault.v1.ContentService/Finalize"
	ContentService_Use_FullMethodName            = "/chunkvault.v1.ContentService/Use"
	ContentService_AddToWhitelist_FullMethodName = "/chunkvault.v1.ContentService/AddToWhitelist"
	ContentService_Info_FullMethodName           = "/chunkvault.v1.ContentService/Info"
	ContentService_Events_FullMethodName         = "/chunkvault.v1.ContentService/Events"
	ContentService_List_FullMethodName           = "/chunkvault.v1.ContentService/List"
	ContentService_Download_FullMethodName       = "/chunkvault.v1.ContentService/Download"
)

// ContentServiceServer 是服务端需要实现的接口
type ContentServiceServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Extend(context.Context, *ExtendRequest) (*ExtendResponse, error)
	Finalize(context.Context, *FinalizeRequest) (*FinalizeResponse, error)
	Use(context.Context, *UseRequest) (*UseResponse, error)
	AddToWhitelist(context.Context, *AddToWhitelistRequest) (*AddToWhitelistResponse, error)
	Info(context.Context, *InfoRequest) (*InfoResponse, error)
	Events(context.Context, *EventsRequest) (*EventsResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Download(*DownloadRequest, grpc.ServerStreamingServer[DownloadResponse]) error
}

// UnimplementedContentServiceServer 嵌入后可以只实现部分方法
type UnimplementedContentServiceServer struct{}

func (UnimplementedContentServiceServer) Create(context.Context, *CreateRequest) (*CreateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Create not implemented")
}
func (UnimplementedContentServiceServer) Extend(context.Context, *ExtendRequest) (*ExtendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Extend not implemented")
}
func (UnimplementedContentServiceServer) Finalize(context.Context, *FinalizeRequest) (*FinalizeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Finalize not implemented")
}
func (UnimplementedContentServiceServer) Use(context.Context, *UseRequest) (*UseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Use not implemented")
}
func (UnimplementedContentServiceServer) AddToWhitelist(context.Context, *AddToWhitelistRequest) (*AddToWhitelistResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddToWhitelist not implemented")
}
func (UnimplementedContentServiceServer) Info(context.Context, *InfoRequest) (*InfoResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Info not implemented")
}
func (UnimplementedContentServiceServer) Events(context.Context, *EventsRequest) (*EventsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Events not implemented")
}
func (UnimplementedContentServiceServer) List(context.Context, *ListRequest) (*ListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method List not implemented")
}
func (UnimplementedContentServiceServer) Download(*DownloadRequest, grpc.ServerStreamingServer[DownloadResponse]) error {
	return status.Error(codes.Unimplemented, "method Download not implemented")
}

func RegisterContentServiceServer(s grpc.ServiceRegistrar, srv ContentServiceServer) {
	s.RegisterService(&ContentService_ServiceDesc, srv)
}

// unaryHandler 把强类型方法适配成 grpc.MethodHandler
func unaryHandler[Req, Res any](fullMethod string, call func(ContentServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ContentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ContentServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _ContentService_Download_Handler(srv any, stream grpc.ServerStream) error {
	m := new(DownloadRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ContentServiceServer).Download(m, &grpc.GenericServerStream[DownloadRequest, DownloadResponse]{ServerStream: stream})
}

var ContentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: unaryHandler(ContentService_Create_FullMethodName, ContentServiceServer.Create)},
		{MethodName: "Extend", Handler: unaryHandler(ContentService_Extend_FullMethodName, ContentServiceServer.Extend)},
		{MethodName: "Finalize", Handler: unaryHandler(ContentService_Finalize_FullMethodName, ContentServiceServer.Finalize)},
		{MethodName: "Use", Handler: unaryHandler(ContentService_Use_FullMethodName, ContentServiceServer.Use)},
		{MethodName: "AddToWhitelist", Handler: unaryHandler(ContentService_AddToWhitelist_FullMethodName, ContentServiceServer.AddToWhitelist)},
		{MethodName: "Info", Handler: unaryHandler(ContentService_Info_FullMethodName, ContentServiceServer.Info)},
		{MethodName: "Events", Handler: unaryHandler(ContentService_Events_FullMethodName, ContentServiceServer.Events)},
		{MethodName: "List", Handler: unaryHandler(ContentService_List_FullMethodName, ContentServiceServer.List)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Download",
			Handler:       _ContentService_Download_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chunkvault/v1/content.proto",
}

// =============================================================================
// Client
// =============================================================================

type ContentServiceClient interface {
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error)
	Extend(ctx context.Context, in *ExtendRequest, opts ...grpc.CallOption) (*ExtendResponse, error)
	Finalize(ctx context.Context, in *FinalizeRequest, opts ...grpc.CallOption) (*FinalizeResponse, error)
	Use(ctx context.Context, in *UseRequest, opts ...grpc.CallOption) (*UseResponse, error)
	AddToWhitelist(ctx context.Context, in *AddToWhitelistRequest, opts ...grpc.CallOption) (*AddToWhitelistResponse, error)
	Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error)
	Events(ctx context.Context, in *EventsRequest, opts ...grpc.CallOption) (*EventsResponse, error)
	List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error)
	Download(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DownloadResponse], error)
}

type contentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewContentServiceClient(cc grpc.ClientConnInterface) ContentServiceClient {
	return &contentServiceClient{cc}
}

// invoke 统一附加 cbor 子类型
func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *contentServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	return invoke[CreateResponse](ctx, c.cc, ContentService_Create_FullMethodName, in, opts)
}

func (c *contentServiceClient) Extend(ctx context.Context, in *ExtendRequest, opts ...grpc.CallOption) (*ExtendResponse, error) {
	return invoke[ExtendResponse](ctx, c.cc, ContentService_Extend_FullMethodName, in, opts)
}

func (c *contentServiceClient) Finalize(ctx context.Context, in *FinalizeRequest, opts ...grpc.CallOption) (*FinalizeResponse, error) {
	return invoke[FinalizeResponse](ctx, c.cc, ContentService_Finalize_FullMethodName, in, opts)
}

func (c *contentServiceClient) Use(ctx context.Context, in *UseRequest, opts ...grpc.CallOption) (*UseResponse, error) {
	return invoke[UseResponse](ctx, c.cc, ContentService_Use_FullMethodName, in, opts)
}

func (c *contentServiceClient) AddToWhitelist(ctx context.Context, in *AddToWhitelistRequest, opts ...grpc.CallOption) (*AddToWhitelistResponse, error) {
	return invoke[AddToWhitelistResponse](ctx, c.cc, ContentService_AddToWhitelist_FullMethodName, in, opts)
}

func (c *contentServiceClient) Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error) {
	return invoke[InfoResponse](ctx, c.cc, ContentService_Info_FullMethodName, in, opts)
}

func (c *contentServiceClient) Events(ctx context.Context, in *EventsRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c.cc, ContentService_Events_FullMethodName, in, opts)
}

func (c *contentServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, ContentService_List_FullMethodName, in, opts)
}

func (c *contentServiceClient) Download(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DownloadResponse], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ContentService_ServiceDesc.Streams[0], ContentService_Download_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[DownloadRequest, DownloadResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
