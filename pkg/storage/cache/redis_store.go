package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"chunkvault/pkg/core"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，为底层 storage.Store 添加 Redis 存在性缓存
type CachedStore struct {
	backend storage.Store
	client  *redis.Client
	ttl     time.Duration
}

type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

func (s *CachedStore) cacheKey(hash types.Hash) string {
	return "cv:obj:" + string(hash)
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.cacheKey(hash)

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// Redis 故障时降级为直接查后端
		slog.WarnContext(ctx, "redis exists failed, falling back to backend", slog.Any("err", err))
	} else if val > 0 {
		return true, nil
	}

	found, err := s.backend.Has(ctx, hash)
	if err != nil {
		return false, err
	}

	if found {
		// 回填不阻塞主流程；用独立 ctx，上层取消也能完成
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}
	return found, nil
}

// Put 先用缓存预检，只有后端写成功才写缓存
func (s *CachedStore) Put(ctx context.Context, obj core.Object) error {
	exists, err := s.Has(ctx, obj.ID())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.cacheKey(obj.ID()), "1", s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "redis set failed", slog.String("hash", obj.ID().Short()), slog.Any("err", err))
	}
	return nil
}

// Get 透传：块可能很大，Redis 只存存在性
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return s.backend.Get(ctx, hash)
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}
