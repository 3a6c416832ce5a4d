package meta

import (
	"context"
	"fmt"
	"testing"

	"chunkvault/pkg/core"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

func mockHash(input string) string {
	return core.CalculateBlobHash([]byte(input)).String()
}

// newContent 构造一条处于累积阶段的内容记录
func newContent(id, owner string) *ContentModel {
	return &ContentModel{
		ID:         id,
		Owner:      owner,
		MimeType:   "image/png",
		PolicyKind: "capped",
		MaxUses:    2,
		State:      "accumulating",
		ChunkCount: 1,
		TotalSize:  4,
	}
}

func chunkRows(id string, from, n int) []ChunkModel {
	rows := make([]ChunkModel, n)
	for i := range rows {
		seq := from + i
		rows[i] = ChunkModel{ContentID: id, Seq: seq, Hash: mockHash(fmt.Sprintf("%s-%d", id, seq)), Size: 4}
	}
	return rows
}

// mustCreate 首次写入内容及种子块，失败则终止
func mustCreate(t *testing.T, repo *Repository, c *ContentModel, msgAndArgs ...any) {
	t.Helper()
	err := repo.Save(context.Background(), Change{
		Content:   c,
		NewChunks: chunkRows(c.ID, 0, 1),
		Events:    []EventModel{{ContentID: c.ID, Kind: "created", Payload: datatypes.JSON(`{}`)}},
	})
	require.NoError(t, err, msgAndArgs...)
}
