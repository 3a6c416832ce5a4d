package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chunkvault/pkg/codec"

	"github.com/spf13/viper"
)

// RepoDir 是本地仓库目录名
const RepoDir = ".cv"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.cv -> ~/.cv
		viper.AddConfigPath(".")
		viper.AddConfigPath(RepoDir)
		viper.AddConfigPath(filepath.Join(home, RepoDir))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (CV_DATABASE_HOST 等)
	viper.SetEnvPrefix("CV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 只是没找到配置文件时继续使用默认值和环境变量；格式错误才是真的错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("no config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	wd, _ := os.Getwd()

	// 数据库默认值：本地 SQLite，服务端通过配置切到 Postgres
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", filepath.Join(wd, RepoDir, "meta.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.dbname", "chunkvault")
	viper.SetDefault("database.sslmode", "disable")

	// 存储默认值
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(wd, RepoDir, "objects"))
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.upload_concurrency", 8)

	viper.SetDefault("cache.ttl", 24*time.Hour)

	// 切块参数
	viper.SetDefault("codec.chunk_size", codec.DefaultChunkSize)
	viper.SetDefault("codec.batch_size", 16)

	viper.SetDefault("content.require_finalized_use", false)

	viper.SetDefault("server.addr", ":8080")
}
