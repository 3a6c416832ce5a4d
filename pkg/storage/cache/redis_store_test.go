package cache

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chunkvault/pkg/core"
	"chunkvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpyStore 统计底层方法的调用次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyStore struct {
	mu       sync.Mutex
	hasCount int32
	putCount int32
	objects  map[types.Hash][]byte
}

func NewSpyStore() *SpyStore {
	return &SpyStore{objects: make(map[types.Hash][]byte)}
}

func (s *SpyStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	atomic.AddInt32(&s.hasCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[hash]
	return ok, nil
}

func (s *SpyStore) Put(ctx context.Context, obj core.Object) error {
	atomic.AddInt32(&s.putCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID()] = obj.Bytes()
	return nil
}

func (s *SpyStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) { return nil, nil }

func TestNewCachedStore_InvalidURL(t *testing.T) {
	_, err := NewCachedStore(NewSpyStore(), Config{RedisURL: "not-a-url://"})
	assert.Error(t, err)
}

func TestCachedStore_Integration(t *testing.T) {
	// 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	ctx := context.Background()
	spy := NewSpyStore()
	cachedStore, err := NewCachedStore(spy, Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      1 * time.Hour,
	})
	require.NoError(t, err)
	defer cachedStore.Close()

	chunk := core.NewChunk([]byte(fmt.Sprintf("cache-test-%d", time.Now().UnixNano())))
	require.NoError(t, cachedStore.client.Del(ctx, cachedStore.cacheKey(chunk.ID())).Err())

	// Step 1: Cache Miss
	exists, err := cachedStore.Has(ctx, chunk.ID())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.hasCount), "miss 时必须查后端")

	// Step 2: Put (Has 预检 + 写后端 + 写缓存)
	require.NoError(t, cachedStore.Put(ctx, chunk))
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.putCount))
	assert.Equal(t, int32(2), atomic.LoadInt32(&spy.hasCount))

	n, err := cachedStore.client.Exists(ctx, cachedStore.cacheKey(chunk.ID())).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "Put 之后 Redis 应该有这个 Key")

	// Step 3: Cache Hit，后端 Has 次数不再增加
	exists, err = cachedStore.Has(ctx, chunk.ID())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(2), atomic.LoadInt32(&spy.hasCount), "hit 时不能穿透到后端")
}
