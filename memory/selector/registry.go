package selector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/internal/database"
	"github.com/BaSui01/aiclone/internal/metrics"
	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/embed"
	"github.com/BaSui01/aiclone/memory/keyword"
	"github.com/BaSui01/aiclone/memory/rolling"
	"github.com/BaSui01/aiclone/memory/store"
	"github.com/BaSui01/aiclone/memory/vector"
)

// ErrNoBackendAvailable 表示 New 没有打开任何后端.
var ErrNoBackendAvailable = errors.New("no memory backend available")

// Target 指定后端所在的命名空间.
type Target struct {
	Persona string
	DataDir string
}

// Factory 为 target 打开一个后端.
type Factory func(ctx context.Context, target Target) (memory.Backend, error)

// Registry 将后端类型映射到工厂. 注册顺序即基准测试顺序，
// 也用于性能持平时的裁决.
type Registry struct {
	order     []memory.Kind
	factories map[memory.Kind]Factory
}

// NewRegistry 创建空注册表.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[memory.Kind]Factory)}
}

// Register 添加或替换 kind 的工厂.
func (r *Registry) Register(kind memory.Kind, factory Factory) *Registry {
	if _, exists := r.factories[kind]; !exists {
		r.order = append(r.order, kind)
	}
	r.factories[kind] = factory
	return r
}

// Lookup 返回 kind 的工厂.
func (r *Registry) Lookup(kind memory.Kind) (Factory, bool) {
	f, ok := r.factories[kind]
	return f, ok
}

// Kinds 按注册顺序返回已注册的类型.
func (r *Registry) Kinds() []memory.Kind {
	return append([]memory.Kind(nil), r.order...)
}

// BackendConfig 配置内置工厂.
type BackendConfig struct {
	StoreType store.StoreType
	SaveEvery int

	SummaryThreshold int
	IndexSaveEvery   int
	MaxSummaries     int

	// VectorDriver 为 sqlite、postgres 或 mysql. sqlite 的 DSN 为空时
	// 每个人设在数据目录下使用独立文件.
	VectorDriver       string
	VectorDSN          string
	VectorBatchSize    int
	DisableVectorIndex bool
	VectorPool         database.PoolConfig

	// Collector 记录向量事务耗时，可选
	Collector *metrics.Collector

	// Embedder 默认为带缓存的哈希嵌入器
	Embedder embed.Embedder
}

// DefaultBackendConfig 返回基于文件的默认配置.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		StoreType:        store.StoreTypeFile,
		SaveEvery:        1,
		SummaryThreshold: 20,
		IndexSaveEvery:   5,
		MaxSummaries:     10,
		VectorDriver:     database.DriverSQLite,
		VectorBatchSize:  1,
	}
}

// DefaultRegistry 注册 rolling、keyword 与 vector 后端.
func DefaultRegistry(cfg BackendConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Embedder == nil {
		cfg.Embedder = embed.NewCachedEmbedder(embed.NewHashEmbedder(embed.DefaultDimension), 10000)
	}

	storeConfig := func(t Target) store.Config {
		return store.Config{
			Type:      cfg.StoreType,
			Persona:   t.Persona,
			BaseDir:   filepath.Join(t.DataDir, "conversations"),
			SaveEvery: cfg.SaveEvery,
		}
	}

	return NewRegistry().
		Register(memory.KindRolling, func(_ context.Context, t Target) (memory.Backend, error) {
			l, err := rolling.Open(storeConfig(t), logger)
			if err != nil {
				return nil, err
			}
			return l, nil
		}).
		Register(memory.KindKeyword, func(_ context.Context, t Target) (memory.Backend, error) {
			kcfg := keyword.DefaultConfig(t.Persona, t.DataDir)
			if cfg.SummaryThreshold > 0 {
				kcfg.SummaryThreshold = cfg.SummaryThreshold
			}
			if cfg.IndexSaveEvery > 0 {
				kcfg.SaveEvery = cfg.IndexSaveEvery
			}
			if cfg.MaxSummaries > 0 {
				kcfg.MaxSummaries = cfg.MaxSummaries
			}
			x, err := keyword.Open(storeConfig(t), kcfg, logger)
			if err != nil {
				return nil, err
			}
			return x, nil
		}).
		Register(memory.KindVector, func(ctx context.Context, t Target) (memory.Backend, error) {
			driver := cfg.VectorDriver
			if driver == "" {
				driver = database.DriverSQLite
			}
			dsn := cfg.VectorDSN
			if driver == database.DriverSQLite && dsn == "" {
				dsn = vector.DefaultPath(t.DataDir, t.Persona)
			}
			s, err := vector.Open(ctx, vector.Config{
				Persona:      t.Persona,
				Driver:       driver,
				DSN:          dsn,
				BatchSize:    cfg.VectorBatchSize,
				DisableIndex: cfg.DisableVectorIndex,
				Pool:         cfg.VectorPool,
				Collector:    cfg.Collector,
			}, cfg.Embedder, logger)
			if err != nil {
				return nil, fmt.Errorf("open vector memory: %w", err)
			}
			return s, nil
		})
}
