package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"chunkvault/pkg/meta"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/storage/cache"
	"chunkvault/pkg/storage/disk"
	"chunkvault/pkg/storage/s3"
	"chunkvault/pkg/vault"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Store      storage.Store
	DB         *meta.DB
	Repository *meta.Repository
	Vault      *vault.Vault
	Logger     *slog.Logger

	RepoPath string

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 获取仓库根路径 (Single Source of Truth)
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		return nil, fmt.Errorf("storage path not set")
	}
	// storePath: .../.cv/objects
	// repoPath:  .../.cv
	repoPath := filepath.Dir(storePath)

	logger := slog.Default()

	// 2. 初始化存储层
	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a := &App{Store: store, Logger: logger, RepoPath: repoPath}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	// 3. 初始化元数据库
	db, err := initDB(ctx, repoPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init metadata db: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db)
	a.Repository = meta.NewRepository(db)

	// 4. 组装 Vault
	a.Vault = vault.New(store, a.Repository, vault.Options{
		RequireFinalizedUse: viper.GetBool("content.require_finalized_use"),
		UploadConcurrency:   viper.GetInt("storage.upload_concurrency"),
		Logger:              logger,
	})
	return a, nil
}

// initStore 根据 storage.type 选择后端，配置了 Redis 时外面再包一层缓存
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	var (
		backend storage.Store
		err     error
	)
	switch t := viper.GetString("storage.type"); t {
	case "disk", "":
		path := viper.GetString("storage.path")
		if path == "" {
			path = filepath.Join(repoPath, "objects")
		}
		backend, err = disk.NewAdapter(path)
	case "s3":
		backend, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}
	if err != nil {
		return nil, err
	}

	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return backend, nil
	}
	cached, err := cache.NewCachedStore(backend, cache.Config{
		RedisURL: redisURL,
		TTL:      viper.GetDuration("cache.ttl"),
	})
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// initDB 本地 CLI 默认用仓库内的 SQLite，服务端切到 Postgres
func initDB(ctx context.Context, repoPath string) (*meta.DB, error) {
	cfg := meta.Config{
		Driver:   viper.GetString("database.driver"),
		Path:     viper.GetString("database.path"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		Debug:    viper.GetBool("database.debug"),
	}
	if cfg.Driver == "sqlite" && cfg.Path == "" {
		cfg.Path = filepath.Join(repoPath, "meta.db")
	}
	return meta.NewDB(ctx, cfg)
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
