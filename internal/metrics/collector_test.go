package metrics

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.memoryOperationsTotal)
	assert.NotNil(t, collector.memoryOperationDuration)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmRequestDuration)
	assert.NotNil(t, collector.cacheHits)
}

func TestNewCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(nextTestNamespace(), nil)
	})
}

func TestCollector_RecordMemoryOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordMemoryOperation("vector", "add_message", nil, 2*time.Millisecond)
	collector.RecordMemoryOperation("vector", "add_message", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.memoryOperationsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.memoryOperationsTotal.WithLabelValues("vector", "add_message", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.memoryOperationDuration))
}

func TestCollector_RecordBenchmark(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordBenchmark("keyword", 0.02)
	collector.RecordBenchmark("vector", math.Inf(1))

	assert.Equal(t, 1, testutil.CollectAndCount(collector.benchmarkDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.benchmarkFailures.WithLabelValues("vector")))
}

func TestCollector_RecordBackendSwitch(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordBackendSwitch("rolling", "vector")
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.memoryBackendSwitches.WithLabelValues("rolling", "vector")))
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("ollama", "llama3.2:3b", nil, 500*time.Millisecond)

	count := testutil.CollectAndCount(collector.llmRequestsTotal)
	assert.Greater(t, count, 0)
	assert.Equal(t, 1, testutil.CollectAndCount(collector.llmRequestDuration))
}

func TestCollector_RecordCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("embedding")
	collector.RecordCacheHit("embedding")
	collector.RecordCacheMiss("embedding")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.cacheHits.WithLabelValues("embedding")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("embedding")))
}

func TestCollector_RecordDB(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBConnections("vector", 1, 0)
	collector.RecordDBQuery("vector", "flush", 3*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("vector")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.dbQueryDuration))
}

func TestCollector_NilReceiver(t *testing.T) {
	var collector *Collector
	assert.NotPanics(t, func() {
		collector.RecordMemoryOperation("rolling", "context", nil, time.Millisecond)
		collector.RecordBenchmark("rolling", 1)
		collector.RecordBackendSwitch("a", "b")
		collector.RecordLLMRequest("ollama", "m", nil, time.Second)
		collector.RecordCacheHit("embedding")
		collector.RecordCacheMiss("embedding")
		collector.RecordDBConnections("vector", 1, 1)
		collector.RecordDBQuery("vector", "flush", time.Millisecond)
	})
}
