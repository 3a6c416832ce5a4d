package service

import (
	"fmt"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
)

// DownloadStream 定义了 Download 接口所需的最小集合，方便测试 Mock
type DownloadStream interface {
	Send(*cvrpc.DownloadResponse) error
}

// GrpcStreamWriter 将 gRPC Download 流包装为 io.Writer，供 exporter 使用
type GrpcStreamWriter struct {
	stream DownloadStream
}

func NewGrpcStreamWriter(stream DownloadStream) *GrpcStreamWriter {
	return &GrpcStreamWriter{stream: stream}
}

// Write 每次写入发送一帧。Send 会立即序列化，p 之后可以被复用。
func (w *GrpcStreamWriter) Write(p []byte) (n int, err error) {
	if err := w.stream.Send(&cvrpc.DownloadResponse{ChunkData: p}); err != nil {
		return 0, fmt.Errorf("grpc send failed: %w", err)
	}
	return len(p), nil
}
