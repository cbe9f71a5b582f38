package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/BaSui01/aiclone/memory"
)

func fixedClock() func() time.Time {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newStores(t *testing.T) map[string]MessageStore {
	t.Helper()
	fileStore, err := NewFileMessageStore(Config{
		Type:    StoreTypeFile,
		Persona: "ada",
		BaseDir: t.TempDir(),
		Now:     fixedClock(),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	return map[string]MessageStore{
		"memory": NewMemoryMessageStore(Config{Now: fixedClock()}),
		"file":   fileStore,
	}
}

func TestMessageStore_Queries(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			inputs := []struct{ speaker, content string }{
				{"User", "I love hiking"},
				{"Clone", "Hiking is great"},
				{"User", "What about swimming?"},
				{"Clone", "Swimming is fun too"},
				{"User", "I prefer HIKING"},
			}
			for i, in := range inputs {
				msg, err := s.Append(ctx, in.speaker, in.content, nil)
				require.NoError(t, err)
				assert.Equal(t, i, msg.ID)
			}

			assert.Equal(t, 5, s.Len())
			assert.Empty(t, s.Recent(0))

			recent := s.Recent(2)
			require.Len(t, recent, 2)
			assert.Equal(t, 3, recent[0].ID)
			assert.Equal(t, 4, recent[1].ID)
			assert.Len(t, s.Recent(100), 5)

			users := s.BySpeaker("User", 2)
			require.Len(t, users, 2)
			assert.Equal(t, 2, users[0].ID)
			assert.Equal(t, 4, users[1].ID)
			assert.Empty(t, s.BySpeaker("Nobody", 3))

			hits := s.Search("hiking", 10)
			require.Len(t, hits, 3)
			assert.Equal(t, []int{4, 1, 0}, []int{hits[0].ID, hits[1].ID, hits[2].ID})
			assert.Len(t, s.Search("hiking", 1), 1)

			msg, ok := s.Get(1)
			require.True(t, ok)
			assert.Equal(t, "Clone", msg.Speaker)
			_, ok = s.Get(9)
			assert.False(t, ok)

			stats := s.Stats()
			assert.Equal(t, 5, stats.TotalMessages)
			assert.Equal(t, []string{"User", "Clone"}, stats.Speakers)
			require.NotNil(t, stats.DateRange)
			assert.True(t, stats.DateRange.Start.Before(stats.DateRange.End))

			require.NoError(t, s.Clear(ctx))
			assert.Equal(t, 0, s.Len())
			assert.Nil(t, s.Stats().DateRange)

			msg, err := s.Append(ctx, "User", "again", nil)
			require.NoError(t, err)
			assert.Equal(t, 0, msg.ID)
		})
	}
}

func TestFileMessageStore_Reload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{Type: StoreTypeFile, Persona: "Ada Lovelace", BaseDir: dir}

	s, err := NewFileMessageStore(cfg, nil)
	require.NoError(t, err)
	_, err = s.Append(ctx, "User", "hello", map[string]any{"mood": "happy"})
	require.NoError(t, err)
	_, err = s.Append(ctx, "Clone", "hi there", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, "Ada_Lovelace_memory.json"))

	reopened, err := NewFileMessageStore(cfg, nil)
	require.NoError(t, err)
	all := reopened.All()
	require.Len(t, all, 2)
	assert.Equal(t, "hello", all[0].Content)
	assert.Equal(t, "happy", all[0].Metadata["mood"])
	assert.Equal(t, 1, all[1].ID)

	msg, err := reopened.Append(ctx, "User", "third", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, msg.ID)
}

func TestFileMessageStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob_memory.json"), []byte("{not json"), 0o644))

	s, err := NewFileMessageStore(Config{Persona: "bob", BaseDir: dir}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFileMessageStore_SaveEvery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{Persona: "carol", BaseDir: dir, SaveEvery: 3}
	path := LogPath(dir, "carol")

	s, err := NewFileMessageStore(cfg, nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := s.Append(ctx, "User", fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}
	assert.NoFileExists(t, path)

	_, err = s.Append(ctx, "User", "m2", nil)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = s.Append(ctx, "User", "m3", nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	reopened, err := NewFileMessageStore(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Len())

	require.NoError(t, reopened.Clear(ctx))
	assert.NoFileExists(t, path)
}

func TestFileMessageStore_DurabilityError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileMessageStore(Config{Persona: "dan", BaseDir: dir}, nil)
	require.NoError(t, err)

	// a directory at the temp path makes the write fail
	require.NoError(t, os.MkdirAll(LogPath(dir, "dan")+".tmp", 0o755))

	msg, err := s.Append(context.Background(), "User", "kept anyway", nil)
	assert.ErrorIs(t, err, memory.ErrDurability)
	assert.Equal(t, 0, msg.ID)
	assert.Equal(t, 1, s.Len())
}

func TestNewMessageStore(t *testing.T) {
	s, err := NewMessageStore(Config{Type: StoreTypeMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryMessageStore{}, s)

	s, err = NewMessageStore(DefaultConfig("eve", t.TempDir()), nil)
	require.NoError(t, err)
	assert.IsType(t, &FileMessageStore{}, s)

	_, err = NewMessageStore(Config{Type: "redis"}, nil)
	assert.Error(t, err)
}

func TestMessageStore_DenseIDs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := NewMemoryMessageStore(Config{})
		n := rapid.IntRange(0, 50).Draw(rt, "n")
		for i := 0; i < n; i++ {
			speaker := rapid.SampledFrom([]string{"User", "Clone"}).Draw(rt, "speaker")
			msg, _ := s.Append(context.Background(), speaker, "x", nil)
			if msg.ID != i {
				rt.Fatalf("expected id %d, got %d", i, msg.ID)
			}
		}
		k := rapid.IntRange(-3, 60).Draw(rt, "k")
		recent := s.Recent(k)
		if len(recent) != max(0, min(k, n)) {
			rt.Fatalf("recent(%d) returned %d of %d", k, len(recent), n)
		}
		for i := 1; i < len(recent); i++ {
			if recent[i].ID != recent[i-1].ID+1 {
				rt.Fatalf("recent not chronological")
			}
		}
	})
}
