package selector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/aiclone/memory"
)

func TestPerformanceTracker_LegacyNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"total_tests":3,"memory_types":{
		"sqlite_vec":{"tests":2,"total_time":0.4,"avg_time":99},
		"vector":{"tests":2,"total_time":0.4,"avg_time":0.2},
		"custom":{"tests":1,"total_time":1}}}`), 0o644))

	tracker := LoadPerformanceTracker(path, nil)
	assert.Equal(t, 3, tracker.TotalTests())

	rec, ok := tracker.Get(memory.KindVector)
	require.True(t, ok)
	assert.Equal(t, 4, rec.Tests)
	assert.InDelta(t, 0.8, rec.TotalTime, 1e-9)
	assert.InDelta(t, 0.2, rec.AvgTime, 1e-9)

	assert.Equal(t, []string{"vector", "custom"}, tracker.Names(memory.Kinds()))
}

func TestPerformanceTracker_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "perf.json")
	tracker := LoadPerformanceTracker(path, nil)

	tracker.Record(memory.KindRolling, 0.25)
	tracker.Record(memory.KindRolling, 0.75)
	tracker.CompleteBatch()
	require.NoError(t, tracker.Save())

	reloaded := LoadPerformanceTracker(path, nil)
	rec, ok := reloaded.Get(memory.KindRolling)
	require.True(t, ok)
	assert.Equal(t, PerformanceRecord{Tests: 2, TotalTime: 1.0, AvgTime: 0.5}, rec)
	assert.Equal(t, 1, reloaded.TotalTests())
}

func TestPerformanceTracker_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.json")
	require.NoError(t, os.WriteFile(path, []byte("]["), 0o644))

	tracker := LoadPerformanceTracker(path, nil)
	assert.Zero(t, tracker.TotalTests())
	_, ok := tracker.Best(memory.Kinds())
	assert.False(t, ok)

	tracker.Record(memory.KindKeyword, 1)
	require.NoError(t, tracker.Save())
	assert.Equal(t, 1, LoadPerformanceTracker(path, nil).lookup("keyword").Tests)
}

func TestProperty_PerformanceRecordArithmetic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("avg_time equals total_time / tests after every record", prop.ForAll(
		func(samples []float64) bool {
			tracker := LoadPerformanceTracker(filepath.Join(t.TempDir(), "perf.json"), nil)
			for _, s := range samples {
				rec := tracker.Record(memory.KindVector, s)
				if rec.AvgTime != rec.TotalTime/float64(rec.Tests) {
					return false
				}
			}
			rec, ok := tracker.Get(memory.KindVector)
			return ok == (len(samples) > 0) && rec.Tests == len(samples)
		},
		gen.SliceOf(gen.Float64Range(0, 5)),
	))

	properties.TestingRun(t)
}
