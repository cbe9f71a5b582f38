package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
)

// DefaultBenchmarkMessages 为内置基准测试脚本.
var DefaultBenchmarkMessages = []string{
	"Hello, how are you?",
	"What's your favorite color?",
	"Tell me about your hobbies",
	"Do you like traveling?",
	"What's your opinion on AI?",
}

const (
	benchmarkQuery  = "What's your favorite color?"
	benchmarkBudget = 8
)

// Benchmark 在临时命名空间中对每个已注册后端运行脚本，返回各类型耗时（秒）.
// 失败的后端记为 +Inf，不中断本轮. 本轮结束后保存历史.
func (m *Manager) Benchmark(ctx context.Context, messages []string) map[memory.Kind]float64 {
	if len(messages) == 0 {
		messages = m.cfg.BenchmarkMessages
	}
	if len(messages) == 0 {
		messages = DefaultBenchmarkMessages
	}

	runID := uuid.NewString()
	logger := m.logger.With(zap.String("benchmark_run", runID))

	ctx, span := m.startSpan(ctx, "memory.benchmark", m.Kind())
	span.SetAttributes(attribute.String("memory.benchmark_run", runID), attribute.Int("memory.script_length", len(messages)))

	results := make(map[memory.Kind]float64, len(m.registry.Kinds()))

	scratchDir, err := os.MkdirTemp("", "aiclone-bench-*")
	if err != nil {
		logger.Error("failed to create benchmark directory", zap.Error(err))
		for _, kind := range m.registry.Kinds() {
			results[kind] = math.Inf(1)
			m.collector.RecordBenchmark(kind.String(), math.Inf(1))
		}
		endSpan(span, err)
		return results
	}
	defer os.RemoveAll(scratchDir)

	target := Target{Persona: m.persona + ".bench", DataDir: scratchDir}
	for _, kind := range m.registry.Kinds() {
		elapsed, err := m.benchmarkOne(ctx, kind, target, messages)
		if err != nil {
			logger.Warn("benchmark failed", zap.String("backend", kind.String()), zap.Error(err))
			results[kind] = math.Inf(1)
			m.collector.RecordBenchmark(kind.String(), math.Inf(1))
			continue
		}

		seconds := elapsed.Seconds()
		results[kind] = seconds
		rec := m.tracker.Record(kind, seconds)
		m.collector.RecordBenchmark(kind.String(), seconds)
		span.SetAttributes(attribute.Float64("memory.benchmark."+kind.String(), seconds))
		logger.Debug("benchmark finished",
			zap.String("backend", kind.String()),
			zap.Duration("elapsed", elapsed),
			zap.Float64("avg_time", rec.AvgTime),
			zap.Int("tests", rec.Tests),
		)
	}

	m.tracker.CompleteBatch()
	if err := m.tracker.Save(); err != nil {
		logger.Warn("failed to save performance history", zap.Error(err))
	}
	endSpan(span, nil)
	return results
}

func (m *Manager) benchmarkOne(ctx context.Context, kind memory.Kind, target Target, messages []string) (time.Duration, error) {
	backend, err := m.open(ctx, kind, target)
	if err != nil {
		return 0, err
	}
	defer func() {
		cleanupErr := errors.Join(backend.Clear(ctx), backend.Close())
		if cleanupErr != nil {
			m.logger.Warn("benchmark cleanup failed", zap.String("backend", kind.String()), zap.Error(cleanupErr))
		}
	}()

	// 暂存命名空间可能残留上次运行的数据
	if err := backend.Clear(ctx); err != nil {
		return 0, fmt.Errorf("reset scratch backend: %w", err)
	}

	start := time.Now()
	for i, msg := range messages {
		if _, err := backend.AddMessage(ctx, "User", msg, nil); err != nil {
			return 0, err
		}
		if _, err := backend.AddMessage(ctx, "Clone", fmt.Sprintf("Response to message %d", i), nil); err != nil {
			return 0, err
		}
	}
	if _, err := backend.Context(ctx, benchmarkQuery, benchmarkBudget); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Report 渲染性能历史.
func (m *Manager) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Memory Performance Report for %s\n", m.persona)
	fmt.Fprintf(&b, "Current memory type: %s\n", m.Kind())
	fmt.Fprintf(&b, "Total tests run: %d\n\n", m.tracker.TotalTests())

	for _, name := range m.tracker.Names(m.registry.Kinds()) {
		rec := m.tracker.lookup(name)
		if rec.Tests < 1 {
			continue
		}
		fmt.Fprintf(&b, "%s: %.4fs avg (%d tests)\n", name, rec.AvgTime, rec.Tests)
	}
	return b.String()
}
