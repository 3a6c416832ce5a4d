// Package codec 把原始字节切成定长块。重组由 exporter 按块顺序流式完成。
// 内容实例只存储调用方给出的块序列，从不重新编码。
package codec

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize 与上传脚本使用的 24 KiB 一致
const DefaultChunkSize = 24 * 1024

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Encode 将 raw 切成 size 大小的块，最后一块可能更短。空输入返回 nil。
func Encode(raw []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([][]byte, 0, (len(raw)+size-1)/size)
	for start := 0; start < len(raw); start += size {
		end := min(start+size, len(raw))
		// 拷贝一份，调用方之后修改 raw 不会影响已切好的块
		block := make([]byte, end-start)
		copy(block, raw[start:end])
		out = append(out, block)
	}
	return out, nil
}

// EncodeReader 读取全部数据再切分
// TODO: 大文件改为边读边切，避免整份内容进内存
func EncodeReader(r io.Reader, size int) ([][]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return Encode(raw, size)
}

// Batches 把块序列分成每批最多 n 个，用于多次 extend 调用
func Batches(chunks [][]byte, n int) [][][]byte {
	if n <= 0 || len(chunks) <= n {
		if len(chunks) == 0 {
			return nil
		}
		return [][][]byte{chunks}
	}
	var out [][][]byte
	for start := 0; start < len(chunks); start += n {
		out = append(out, chunks[start:min(start+n, len(chunks))])
	}
	return out
}
