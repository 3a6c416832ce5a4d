package service

import (
	"context"
	"errors"

	"chunkvault/pkg/chunkstore"
	"chunkvault/pkg/content"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/storage"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain 出现在 ErrorInfo.Domain 中
const ErrorDomain = "chunkvault"

// errorKinds 是领域错误与 gRPC 状态之间的双向映射。Reason 随状态一起传给客户端。
var errorKinds = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{content.ErrUnauthorized, codes.PermissionDenied, "UNAUTHORIZED"},
	{policy.ErrNotWhitelisted, codes.PermissionDenied, "NOT_WHITELISTED"},
	{chunkstore.ErrInvalidState, codes.FailedPrecondition, "INVALID_STATE"},
	{chunkstore.ErrAlreadyFinalized, codes.FailedPrecondition, "ALREADY_FINALIZED"},
	{content.ErrNotFinalized, codes.FailedPrecondition, "NOT_FINALIZED"},
	{policy.ErrPaymentRequired, codes.FailedPrecondition, "PAYMENT_REQUIRED"},
	{policy.ErrMaxAccessReached, codes.ResourceExhausted, "MAX_ACCESS_REACHED"},
	{policy.ErrUnsupportedOperation, codes.Unimplemented, "UNSUPPORTED_OPERATION"},
	{chunkstore.ErrEmptySeed, codes.InvalidArgument, "EMPTY_SEED"},
	{policy.ErrInvalidPolicy, codes.InvalidArgument, "INVALID_POLICY"},
	{content.ErrInvalidOwner, codes.InvalidArgument, "INVALID_OWNER"},
	{meta.ErrContentNotFound, codes.NotFound, "CONTENT_NOT_FOUND"},
	{storage.ErrNotFound, codes.NotFound, "OBJECT_NOT_FOUND"},
	{meta.ErrConcurrentUpdate, codes.Aborted, "CONCURRENT_UPDATE"},
}

// ToStatus 把领域错误转换成带 ErrorInfo 的 gRPC 状态。未知错误一律 Internal。
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	for _, k := range errorKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		st := status.New(k.code, err.Error())
		if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: k.reason, Domain: ErrorDomain}); derr == nil {
			st = detailed
		}
		return st.Err()
	}
	return status.Errorf(codes.Internal, "internal error: %v", err)
}

// FromStatus 是 ToStatus 的逆操作：根据 ErrorInfo.Reason 还原哨兵错误，
// 让客户端可以继续使用 errors.Is 判断
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if reason := Reason(st); reason != "" {
		for _, k := range errorKinds {
			if k.reason == reason {
				return &remoteError{kind: k.err, st: st}
			}
		}
	}
	return err
}

// Reason 取出本服务写入的 ErrorInfo.Reason，没有时返回空串
func Reason(st *status.Status) string {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}

// remoteError 同时满足 errors.Is(kind) 和 status.FromError
type remoteError struct {
	kind error
	st   *status.Status
}

func (e *remoteError) Error() string              { return e.st.Message() }
func (e *remoteError) Unwrap() error              { return e.kind }
func (e *remoteError) GRPCStatus() *status.Status { return e.st }
