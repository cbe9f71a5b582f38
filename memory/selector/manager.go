package selector

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/internal/metrics"
	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/keyword"
)

const tracerName = "github.com/BaSui01/aiclone/memory/selector"

// State 为 Manager 的绑定状态.
type State int

const (
	StateUninitialized State = iota
	StateAutoSelecting
	StateBound
)

func (s State) String() string {
	switch s {
	case StateAutoSelecting:
		return "auto-selecting"
	case StateBound:
		return "bound"
	default:
		return "uninitialized"
	}
}

// Config 配置 Manager.
type Config struct {
	// DataDir 为全部持久化状态的根目录
	DataDir string

	// AutoSelect 依次尝试 vector、历史最佳后端与 Default；关闭时依次尝试 Backend 与 Default
	AutoSelect bool
	Backend    memory.Kind
	Default    memory.Kind

	// BenchmarkMessages 非空时替换内置的基准测试脚本
	BenchmarkMessages []string
}

// DefaultConfig 返回自动选择、以滚动日志兜底的默认配置.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:    dataDir,
		AutoSelect: true,
		Backend:    memory.KindVector,
		Default:    memory.KindRolling,
	}
}

// Option 配置 Manager.
type Option func(*Manager)

// WithLogger 设置日志记录器.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCollector 记录记忆指标.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// WithTracer 设置记忆操作的 tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithRegistry 替换内置的后端注册表.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Manager 将一个人设绑定到一个记忆后端.
//
// 后端错误只记录并降级，只有 New 会返回失败.
type Manager struct {
	mu        sync.Mutex
	persona   string
	cfg       Config
	registry  *Registry
	tracker   *PerformanceTracker
	active    memory.Backend
	kind      memory.Kind
	state     State
	closed    bool
	logger    *zap.Logger
	collector *metrics.Collector
	tracer    trace.Tracer
}

// New 创建 Manager 并绑定第一个能打开的后端.
func New(ctx context.Context, persona string, cfg Config, opts ...Option) (*Manager, error) {
	if cfg.Default == "" {
		cfg.Default = memory.KindRolling
	}
	if cfg.Backend == "" {
		cfg.Backend = memory.KindVector
	}

	m := &Manager{
		persona: persona,
		cfg:     cfg,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "memory_selector"), zap.String("persona", persona))
	if m.registry == nil {
		m.registry = DefaultRegistry(DefaultBackendConfig(), m.logger)
	}
	m.tracker = LoadPerformanceTracker(PerformancePath(cfg.DataDir, persona), m.logger)

	var candidates []memory.Kind
	if cfg.AutoSelect {
		m.state = StateAutoSelecting
		candidates = []memory.Kind{memory.KindVector, m.SelectBestPerforming(), cfg.Default}
	} else {
		candidates = []memory.Kind{cfg.Backend, cfg.Default}
	}

	tried := make(map[memory.Kind]struct{}, len(candidates))
	for _, kind := range candidates {
		if _, done := tried[kind]; done {
			continue
		}
		tried[kind] = struct{}{}

		backend, err := m.open(ctx, kind, m.target())
		if err != nil {
			m.logger.Warn("memory backend unavailable", zap.String("backend", kind.String()), zap.Error(err))
			continue
		}
		m.bind(kind, backend)
		m.logger.Info("memory backend selected", zap.String("backend", kind.String()), zap.Bool("auto_select", cfg.AutoSelect))
		return m, nil
	}

	m.state = StateUninitialized
	return nil, ErrNoBackendAvailable
}

func (m *Manager) target() Target {
	return Target{Persona: m.persona, DataDir: m.cfg.DataDir}
}

func (m *Manager) open(ctx context.Context, kind memory.Kind, target Target) (memory.Backend, error) {
	factory, ok := m.registry.Lookup(kind)
	if !ok {
		return nil, memory.ErrUnknownBackend
	}
	return factory(ctx, target)
}

func (m *Manager) bind(kind memory.Kind, backend memory.Backend) {
	m.kind = kind
	m.active = backend
	m.state = StateBound
}

// Kind 返回当前后端类型.
func (m *Manager) Kind() memory.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Backend 返回当前后端.
func (m *Manager) Backend() memory.Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Persona 返回所服务的人设名.
func (m *Manager) Persona() string { return m.persona }

// Tracker 暴露性能历史.
func (m *Manager) Tracker() *PerformanceTracker { return m.tracker }

func (m *Manager) current() (memory.Kind, memory.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind, m.active
}

func (m *Manager) startSpan(ctx context.Context, name string, kind memory.Kind) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("memory.persona", m.persona),
		attribute.String("memory.backend", kind.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddMessage 存储消息并返回 id，后端拒绝时返回 -1.
// 持久化失败保留 id，只记录日志.
func (m *Manager) AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) int {
	kind, backend := m.current()
	ctx, span := m.startSpan(ctx, "memory.add_message", kind)
	start := time.Now()

	id, err := backend.AddMessage(ctx, speaker, content, metadata)
	m.collector.RecordMemoryOperation(kind.String(), "add_message", err, time.Since(start))
	endSpan(span, err)

	switch {
	case err == nil:
		return id
	case errors.Is(err, memory.ErrDurability):
		m.logger.Warn("message kept in memory only", zap.Int("id", id), zap.Error(err))
		return id
	default:
		m.logger.Error("failed to add message", zap.Error(err))
		return -1
	}
}

// ContextFor 返回下一次回复所需的格式化上下文.
// 后端失败时退化为最近历史，再退化为 NoConversation.
func (m *Manager) ContextFor(ctx context.Context, message string, budget int) string {
	kind, backend := m.current()
	ctx, span := m.startSpan(ctx, "memory.context", kind)
	span.SetAttributes(attribute.Int("memory.budget", budget))
	start := time.Now()

	entries, err := backend.Context(ctx, message, budget)
	m.collector.RecordMemoryOperation(kind.String(), "context", err, time.Since(start))
	endSpan(span, err)
	if err == nil {
		return memory.FormatContext(entries)
	}

	m.logger.Warn("context assembly failed, using recent history", zap.Error(err))
	recent, err := backend.Recent(ctx, budget)
	if err != nil {
		m.logger.Warn("recent history unavailable", zap.Error(err))
		return memory.NoConversation
	}
	return memory.FormatContext(memory.RecentEntries(recent))
}

// Search 调用当前后端的检索.
func (m *Manager) Search(ctx context.Context, query string, limit int) []memory.SearchResult {
	kind, backend := m.current()
	start := time.Now()
	results, err := backend.Search(ctx, query, limit)
	m.collector.RecordMemoryOperation(kind.String(), "search", err, time.Since(start))
	if err != nil {
		m.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return []memory.SearchResult{}
	}
	return results
}

// SimilarTo 在后端支持时使用相似度检索，否则或失败时退回普通检索.
func (m *Manager) SimilarTo(ctx context.Context, query string, limit int) []memory.SearchResult {
	kind, backend := m.current()
	searcher, ok := backend.(memory.SimilaritySearcher)
	if !ok || !backend.Capabilities().SimilaritySearch {
		return m.Search(ctx, query, limit)
	}

	start := time.Now()
	results, err := searcher.SimilaritySearch(ctx, query, limit)
	m.collector.RecordMemoryOperation(kind.String(), "similarity_search", err, time.Since(start))
	if err != nil {
		m.logger.Warn("similarity search failed, falling back to search", zap.String("query", query), zap.Error(err))
		return m.Search(ctx, query, limit)
	}
	return results
}

func (m *Manager) Recent(ctx context.Context, n int) []memory.Message {
	_, backend := m.current()
	msgs, err := backend.Recent(ctx, n)
	if err != nil {
		m.logger.Warn("recent history unavailable", zap.Error(err))
		return []memory.Message{}
	}
	return msgs
}

func (m *Manager) BySpeaker(ctx context.Context, speaker string, n int) []memory.Message {
	_, backend := m.current()
	msgs, err := backend.BySpeaker(ctx, speaker, n)
	if err != nil {
		m.logger.Warn("speaker history unavailable", zap.String("speaker", speaker), zap.Error(err))
		return []memory.Message{}
	}
	return msgs
}

// Stats 返回当前后端的统计.
func (m *Manager) Stats(ctx context.Context) memory.Stats {
	kind, backend := m.current()
	stats, err := backend.Stats(ctx)
	if err != nil {
		m.logger.Warn("stats unavailable", zap.Error(err))
		return memory.Stats{Backend: kind, Speakers: []string{}}
	}
	return stats
}

// ConversationSummary 在后端维护摘要时返回它.
func (m *Manager) ConversationSummary() string {
	_, backend := m.current()
	if s, ok := backend.(memory.Summarizer); ok && backend.Capabilities().Summaries {
		return s.ConversationSummary()
	}
	return keyword.NoSummary
}

// SpeakerProfile 在后端维护说话人画像时返回它.
func (m *Manager) SpeakerProfile(speaker string) memory.SpeakerProfile {
	_, backend := m.current()
	if s, ok := backend.(memory.Summarizer); ok && backend.Capabilities().Summaries {
		return s.SpeakerProfile(speaker)
	}
	return memory.SpeakerProfile{Speaker: speaker, TopKeywords: []string{}, Style: keyword.StyleUnknown}
}

// Clear 清空当前后端.
func (m *Manager) Clear(ctx context.Context) error {
	_, backend := m.current()
	if err := backend.Clear(ctx); err != nil {
		m.logger.Warn("clear incomplete", zap.Error(err))
		return err
	}
	return nil
}

// Save 持久化当前后端.
func (m *Manager) Save(ctx context.Context) error {
	_, backend := m.current()
	if err := backend.Save(ctx); err != nil {
		m.logger.Warn("save failed", zap.Error(err))
		return err
	}
	return nil
}

// SelectBestPerforming 返回平均耗时最低的后端，无历史时返回配置的默认后端.
func (m *Manager) SelectBestPerforming() memory.Kind {
	if best, ok := m.tracker.Best(m.registry.Kinds()); ok {
		return best
	}
	return m.cfg.Default
}

// Switch 重新绑定到 name. 未知名称或打开失败只记录日志，保持当前绑定.
func (m *Manager) Switch(ctx context.Context, name string) bool {
	kind, err := memory.ParseKind(name)
	if err != nil {
		m.logger.Warn("unknown memory backend", zap.String("name", name))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("switch on closed memory selector", zap.String("name", name))
		return false
	}
	if kind == m.kind {
		return true
	}

	// 先落盘，rolling 与 keyword 共享同一份对话日志
	if m.active != nil {
		if err := m.active.Save(ctx); err != nil {
			m.logger.Warn("save before switch failed", zap.Error(err))
		}
	}

	backend, err := m.open(ctx, kind, m.target())
	if err != nil {
		m.logger.Warn("memory backend unavailable, keeping current",
			zap.String("backend", kind.String()),
			zap.String("current", m.kind.String()),
			zap.Error(err),
		)
		return false
	}

	previous, prevKind := m.active, m.kind
	m.bind(kind, backend)
	if previous != nil {
		if err := previous.Close(); err != nil {
			m.logger.Warn("failed to close previous backend", zap.String("backend", prevKind.String()), zap.Error(err))
		}
	}
	m.collector.RecordBackendSwitch(prevKind.String(), kind.String())
	m.logger.Info("switched memory backend", zap.String("from", prevKind.String()), zap.String("to", kind.String()))
	return true
}

// Close 关闭当前后端.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.active == nil {
		return nil
	}
	m.closed = true
	m.state = StateUninitialized
	return m.active.Close()
}
