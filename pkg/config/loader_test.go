package config

import (
	"os"
	"path/filepath"
	"testing"

	"chunkvault/pkg/codec"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	require.NoError(t, Load(""))
	assert.Equal(t, "sqlite", viper.GetString("database.driver"))
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, codec.DefaultChunkSize, viper.GetInt("codec.chunk_size"))
	assert.False(t, viper.GetBool("content.require_finalized_use"))
	assert.Equal(t, RepoDir, filepath.Base(filepath.Dir(viper.GetString("storage.path"))))
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
storage:
  type: s3
  s3:
    bucket: contents
content:
  require_finalized_use: true
`), 0644))
	t.Setenv("CV_DATABASE_DRIVER", "postgres")

	require.NoError(t, Load(cfg))
	assert.Equal(t, "s3", viper.GetString("storage.type"))
	assert.Equal(t, "contents", viper.GetString("storage.s3.bucket"))
	assert.True(t, viper.GetBool("content.require_finalized_use"))
	assert.Equal(t, "postgres", viper.GetString("database.driver"))
}

func TestLoad_BrokenFile(t *testing.T) {
	viper.Reset()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("storage: [unterminated"), 0644))

	assert.Error(t, Load(cfg))
}
