package embed

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RemoteCache 为共享的向量缓存层，如 internal/cache.Manager.
type RemoteCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool, error)
	SetVector(ctx context.Context, key string, vector []float32) error
}

// CacheObserver 接收缓存命中与未命中事件，如 internal/metrics.Collector.
type CacheObserver interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const cacheType = "embedding"

// CachedEmbedder 按内容哈希缓存 Embedder 的结果.
// 相同内容的并发请求只计算一次.
type CachedEmbedder struct {
	inner    Embedder
	local    *LRUCache
	remote   RemoteCache
	observer CacheObserver
	group    singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
	logger   *zap.Logger
}

// CacheOption 配置 CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithRemoteCache 在本地 LRU 之后增加共享缓存层.
func WithRemoteCache(remote RemoteCache) CacheOption {
	return func(c *CachedEmbedder) { c.remote = remote }
}

// WithCacheObserver 上报命中与未命中.
func WithCacheObserver(observer CacheObserver) CacheOption {
	return func(c *CachedEmbedder) { c.observer = observer }
}

// WithLogger 设置日志记录器.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedEmbedder) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedEmbedder 以容量为 size 的本地 LRU 包装 inner.
func NewCachedEmbedder(inner Embedder, size int, opts ...CacheOption) *CachedEmbedder {
	c := &CachedEmbedder{
		inner:  inner,
		local:  NewLRUCache(size, 0),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "embedding_cache"), zap.String("embedder", inner.Name()))
	return c
}

// Embed 返回 text 的缓存向量，未命中时计算.
// 返回的切片为副本.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := ContentKey(text)
	if vec, ok := c.local.Get(key); ok {
		c.hit()
		return cloneVector(vec), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if vec, ok := c.local.Get(key); ok {
			c.hit()
			return vec, nil
		}
		if vec, ok := c.fromRemote(ctx, key); ok {
			c.hit()
			c.local.Set(key, vec)
			return vec, nil
		}

		c.miss()
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.local.Set(key, vec)
		if c.remote != nil {
			if err := c.remote.SetVector(ctx, key, vec); err != nil {
				c.logger.Warn("failed to write embedding to remote cache", zap.Error(err))
			}
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneVector(v.([]float32)), nil
}

func (c *CachedEmbedder) fromRemote(ctx context.Context, key string) ([]float32, bool) {
	if c.remote == nil {
		return nil, false
	}
	vec, ok, err := c.remote.GetVector(ctx, key)
	if err != nil {
		c.logger.Warn("remote embedding cache unavailable", zap.Error(err))
		return nil, false
	}
	if !ok || len(vec) != c.inner.Dimension() {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) hit() {
	c.hits.Add(1)
	if c.observer != nil {
		c.observer.RecordCacheHit(cacheType)
	}
}

func (c *CachedEmbedder) miss() {
	c.misses.Add(1)
	if c.observer != nil {
		c.observer.RecordCacheMiss(cacheType)
	}
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Name() string { return c.inner.Name() }

// Hits 返回缓存命中次数.
func (c *CachedEmbedder) Hits() int64 { return c.hits.Load() }

// Misses 返回实际计算的次数.
func (c *CachedEmbedder) Misses() int64 { return c.misses.Load() }

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var (
	_ Embedder   = (*CachedEmbedder)(nil)
	_ HitCounter = (*CachedEmbedder)(nil)
)
