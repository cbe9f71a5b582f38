package selector

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
)

// PerformanceRecord 为单个后端累计的基准测试历史.
// AvgTime 恒为 TotalTime / Tests.
type PerformanceRecord struct {
	Tests     int     `json:"tests"`
	TotalTime float64 `json:"total_time"`
	AvgTime   float64 `json:"avg_time"`
}

type performanceDocument struct {
	TotalTests  int                          `json:"total_tests"`
	MemoryTypes map[string]PerformanceRecord `json:"memory_types"`
}

// PerformancePath 返回人设的性能文件路径.
func PerformancePath(dataDir, persona string) string {
	return filepath.Join(dataDir, "memory_performance", memory.FileSafeName(persona)+"_performance.json")
}

// PerformanceTracker 持久化单个人设的基准测试历史.
type PerformanceTracker struct {
	mu     sync.RWMutex
	path   string
	doc    performanceDocument
	logger *zap.Logger
}

// LoadPerformanceTracker 读取 path，文件缺失或损坏时返回空历史.
func LoadPerformanceTracker(path string, logger *zap.Logger) *PerformanceTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &PerformanceTracker{
		path:   path,
		doc:    performanceDocument{MemoryTypes: map[string]PerformanceRecord{}},
		logger: logger.With(zap.String("component", "performance_tracker")),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t
	}
	if err != nil {
		t.logger.Warn("failed to read performance history", zap.Error(err))
		return t
	}

	var doc performanceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.logger.Warn("corrupt performance history, starting empty", zap.String("path", path), zap.Error(err))
		return t
	}
	t.doc.TotalTests = doc.TotalTests
	for name, rec := range doc.MemoryTypes {
		t.merge(normalizeName(name), rec)
	}
	return t
}

// 历史文件中的旧名称（simple / enhanced / sqlite_vec）归一到当前枚举
func normalizeName(name string) string {
	if kind, err := memory.ParseKind(name); err == nil {
		return kind.String()
	}
	return name
}

func (t *PerformanceTracker) merge(name string, rec PerformanceRecord) {
	if rec.Tests <= 0 {
		return
	}
	cur := t.doc.MemoryTypes[name]
	cur.Tests += rec.Tests
	cur.TotalTime += rec.TotalTime
	cur.AvgTime = cur.TotalTime / float64(cur.Tests)
	t.doc.MemoryTypes[name] = cur
}

// Record 为 kind 添加一次测量.
func (t *PerformanceTracker) Record(kind memory.Kind, seconds float64) PerformanceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.merge(kind.String(), PerformanceRecord{Tests: 1, TotalTime: seconds})
	return t.doc.MemoryTypes[kind.String()]
}

// CompleteBatch 计入一轮完成的基准测试.
func (t *PerformanceTracker) CompleteBatch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doc.TotalTests++
}

// Best 在 order 中至少有一次测试的类型里返回平均耗时最低者，持平时保留靠前者.
func (t *PerformanceTracker) Best(order []memory.Kind) (memory.Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		best  memory.Kind
		found bool
		avg   float64
	)
	for _, kind := range order {
		rec, ok := t.doc.MemoryTypes[kind.String()]
		if !ok || rec.Tests < 1 {
			continue
		}
		if !found || rec.AvgTime < avg {
			best, avg, found = kind, rec.AvgTime, true
		}
	}
	return best, found
}

// Get 返回 kind 的历史.
func (t *PerformanceTracker) Get(kind memory.Kind) (PerformanceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.doc.MemoryTypes[kind.String()]
	return rec, ok
}

// Names 返回已记录的后端名，order 中的在前，其余按字典序.
func (t *PerformanceTracker) Names(order []memory.Kind) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.doc.MemoryTypes))
	seen := make(map[string]struct{}, len(order))
	for _, kind := range order {
		seen[kind.String()] = struct{}{}
		if _, ok := t.doc.MemoryTypes[kind.String()]; ok {
			names = append(names, kind.String())
		}
	}
	var rest []string
	for name := range t.doc.MemoryTypes {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func (t *PerformanceTracker) TotalTests() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc.TotalTests
}

func (t *PerformanceTracker) lookup(name string) PerformanceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc.MemoryTypes[name]
}

// Save 经临时文件写出历史.
func (t *PerformanceTracker) Save() error {
	t.mu.RLock()
	data, err := json.MarshalIndent(t.doc, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	tempPath := t.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, t.path)
}
