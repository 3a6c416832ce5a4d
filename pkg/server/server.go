package server

import (
	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/app"
	"chunkvault/pkg/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// MaxMsgSize 是单条消息的上限 (一次 Extend 携带的块之和)
const MaxMsgSize = 64 * 1024 * 1024

// New 组装 gRPC Server：拦截器链 + ContentService + Reflection
func New(application *app.App, extra ...grpc.ServerOption) *grpc.Server {
	ic := NewInterceptors(application.Logger)
	opts := []grpc.ServerOption{
		// Recovery 在最外层，保证 Logging 里的 panic 也能被接住
		grpc.ChainUnaryInterceptor(ic.UnaryRecovery, ic.UnaryLogging),
		grpc.ChainStreamInterceptor(ic.StreamRecovery, ic.StreamLogging),
		grpc.MaxRecvMsgSize(MaxMsgSize),
		grpc.MaxSendMsgSize(MaxMsgSize),
	}
	s := grpc.NewServer(append(opts, extra...)...)

	cvrpc.RegisterContentServiceServer(s, service.NewContentService(application))

	// Enable Reflection for debugging tools (grpcurl)
	reflection.Register(s)
	return s
}
