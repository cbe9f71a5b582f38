package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/config"
	"github.com/BaSui01/aiclone/internal/cache"
	"github.com/BaSui01/aiclone/internal/database"
	"github.com/BaSui01/aiclone/internal/metrics"
	"github.com/BaSui01/aiclone/internal/server"
	"github.com/BaSui01/aiclone/internal/telemetry"
	"github.com/BaSui01/aiclone/llm"
	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/embed"
	"github.com/BaSui01/aiclone/memory/selector"
	"github.com/BaSui01/aiclone/memory/store"
	"github.com/BaSui01/aiclone/persona"
)

const tracerName = "github.com/BaSui01/aiclone"

// app 持有一次命令运行所需的全部依赖
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	ollama    *llm.OllamaClient
	cache     *cache.Manager
	embedder  embed.Embedder
	telemetry *telemetry.Providers
	ops       *server.Manager
	persona   *persona.Persona
	memory    *selector.Manager
}

// loadConfig 按 默认值 → 文件 → 环境变量 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	return loader.Load()
}

// resolvePersona 依次尝试把参数当作答案文件与演示人设名
func resolvePersona(arg string) (*persona.Persona, error) {
	if arg == "" {
		return nil, errors.New("--persona is required")
	}
	if _, err := os.Stat(arg); err == nil {
		return persona.Load(arg)
	}
	if p := persona.Demo(arg); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("persona %q is neither a file nor a demo persona", arg)
}

// newApp 组装日志、指标、遥测、嵌入缓存与记忆管理器
func newApp(ctx context.Context, cfg *config.Config, p *persona.Persona, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		persona:   p,
		collector: metrics.NewCollector(cfg.Metrics.Namespace, logger),
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger, attribute.String("aiclone.persona", p.Name()))
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.telemetry = providers

	a.ollama = llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		Timeout:   cfg.LLM.Timeout,
		RateLimit: cfg.LLM.RateLimit,
		Burst:     cfg.LLM.Burst,
	}, a.collector, logger)

	a.embedder = a.buildEmbedder()

	backendCfg := selector.DefaultBackendConfig()
	backendCfg.StoreType = store.StoreType(cfg.Memory.StoreType)
	backendCfg.SaveEvery = cfg.Memory.SaveEvery
	backendCfg.SummaryThreshold = cfg.Memory.SummaryThreshold
	backendCfg.IndexSaveEvery = cfg.Memory.IndexSaveEvery
	backendCfg.MaxSummaries = cfg.Memory.MaxSummaries
	backendCfg.VectorDriver = cfg.Database.Driver
	backendCfg.VectorDSN = cfg.Database.DSN()
	backendCfg.VectorBatchSize = cfg.Memory.VectorBatchSize
	backendCfg.DisableVectorIndex = cfg.Memory.DisableVectorIndex
	backendCfg.VectorPool = database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	backendCfg.Collector = a.collector
	backendCfg.Embedder = a.embedder

	// 配置已校验，两个名字必为合法后端
	backend, _ := memory.ParseKind(cfg.Memory.Backend)
	fallback, _ := memory.ParseKind(cfg.Memory.Default)

	mgr, err := selector.New(ctx, p.Name(), selector.Config{
		DataDir:    cfg.Memory.DataDir,
		AutoSelect: cfg.Memory.AutoSelect,
		Backend:    backend,
		Default:    fallback,
	},
		selector.WithLogger(logger),
		selector.WithCollector(a.collector),
		selector.WithTracer(providers.Tracer(tracerName)),
		selector.WithRegistry(selector.DefaultRegistry(backendCfg, logger)),
	)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open memory for %s: %w", p.Name(), err)
	}
	a.memory = mgr

	if cfg.Metrics.Enabled {
		a.startOpsServer()
	}
	return a, nil
}

// buildEmbedder 包装本地 LRU，Redis 可用时加一层共享缓存
func (a *app) buildEmbedder() embed.Embedder {
	cfg := a.cfg
	var base embed.Embedder = embed.NewHashEmbedder(cfg.Embedding.Dimension)
	if cfg.Embedding.Provider == "ollama" {
		base = embed.NewOllamaEmbedder(a.ollama, cfg.Embedding.Model, cfg.Embedding.Dimension)
	}

	opts := []embed.CacheOption{
		embed.WithCacheObserver(a.collector),
		embed.WithLogger(a.logger),
	}
	if cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB
		cacheCfg.PoolSize = cfg.Redis.PoolSize
		cacheCfg.MinIdleConns = cfg.Redis.MinIdleConns
		cacheCfg.KeyPrefix = cfg.Redis.KeyPrefix
		cacheCfg.DefaultTTL = cfg.Redis.TTL
		cacheCfg.TLS = cfg.Redis.TLS
		cacheCfg.HealthCheckInterval = 0

		cm, err := cache.NewManager(cacheCfg, a.logger)
		if err != nil {
			a.logger.Warn("redis embedding cache unavailable, using local cache only", zap.Error(err))
		} else {
			a.cache = cm
			opts = append(opts, embed.WithRemoteCache(cm))
		}
	}
	return embed.NewCachedEmbedder(base, cfg.Embedding.CacheSize, opts...)
}

func (a *app) startOpsServer() {
	checks := map[string]server.HealthFunc{
		"ollama": a.ollama.HealthCheck,
	}
	if a.cache != nil {
		checks["redis"] = a.cache.Ping
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = a.cfg.Metrics.Addr
	ops := server.NewManager(server.Handler(prometheus.DefaultGatherer, srvCfg.HealthTimeout, checks), srvCfg, a.logger)
	if err := ops.Start(); err != nil {
		a.logger.Warn("metrics endpoint disabled", zap.Error(err))
		return
	}
	a.ops = ops
}

// Close 依次释放记忆、缓存、运维端点与遥测
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.memory != nil {
		errs = append(errs, a.memory.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.ops != nil {
		errs = append(errs, a.ops.Shutdown(ctx))
	}
	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		errs = append(errs, a.telemetry.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}
