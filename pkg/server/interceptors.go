package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Interceptors 把访问日志和 panic 恢复绑定到同一个 logger
type Interceptors struct {
	log *slog.Logger
}

func NewInterceptors(log *slog.Logger) *Interceptors {
	if log == nil {
		log = slog.Default()
	}
	return &Interceptors{log: log}
}

// =============================================================================
// 1. 访问日志
// =============================================================================

func (i *Interceptors) UnaryLogging(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	i.logCall(ctx, info.FullMethod, false, start, err)
	return resp, err
}

// StreamLogging 只有 Download 会走到这里
func (i *Interceptors) StreamLogging(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	i.logCall(ss.Context(), info.FullMethod, true, start, err)
	return err
}

// levelFor 按状态码选日志级别：调用方造成的失败 (策略拒绝等) 记 Warn，
// 客户端取消或超时记 Info，服务端自身的故障记 Error。
func levelFor(code codes.Code) slog.Level {
	switch code {
	case codes.OK, codes.Canceled, codes.DeadlineExceeded:
		return slog.LevelInfo
	case codes.PermissionDenied, codes.ResourceExhausted, codes.FailedPrecondition,
		codes.InvalidArgument, codes.NotFound, codes.Unimplemented, codes.Aborted:
		return slog.LevelWarn
	}
	return slog.LevelError
}

func (i *Interceptors) logCall(ctx context.Context, method string, stream bool, start time.Time, err error) {
	st := status.Convert(err)
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.Bool("stream", stream),
		slog.String("caller", callerOf(ctx)),
		slog.String("code", st.Code().String()),
		slog.Duration("dur", time.Since(start)),
	}
	if err != nil {
		// reason 是 MAX_ACCESS_REACHED 这类稳定标识，便于按拒绝原因统计
		attrs = append(attrs,
			slog.String("reason", service.Reason(st)),
			slog.String("err", st.Message()),
		)
	}
	i.log.LogAttrs(ctx, levelFor(st.Code()), "rpc", attrs...)
}

// callerOf 仅用于日志；鉴权由服务层从同一个 header 读取
func callerOf(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(cvrpc.IdentityHeader); len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// =============================================================================
// 2. Panic 恢复
// =============================================================================

func (i *Interceptors) UnaryRecovery(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = i.recovered(ctx, info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

func (i *Interceptors) StreamRecovery(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = i.recovered(ss.Context(), info.FullMethod, r)
		}
	}()
	return handler(srv, ss)
}

// recovered 记录堆栈，客户端只看到 Internal，连接保持可用
func (i *Interceptors) recovered(ctx context.Context, method string, p any) error {
	i.log.ErrorContext(ctx, "panic recovered",
		slog.String("method", method),
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)
	return status.Errorf(codes.Internal, "internal server error in %s", method)
}
