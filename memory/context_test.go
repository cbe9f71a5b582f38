package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func makeMessages(n int) []Message {
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{
			ID:        i,
			Speaker:   "User",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

func recentOf(msgs []Message) RecentFunc {
	return func(_ context.Context, n int) ([]Message, error) {
		if n > len(msgs) {
			n = len(msgs)
		}
		return msgs[len(msgs)-n:], nil
	}
}

// 按 ID 升序返回全部消息作为相关结果
func relevantOf(msgs []Message) RelevantFunc {
	return func(_ context.Context, _ string, k int) ([]SearchResult, error) {
		out := make([]SearchResult, 0, k)
		for _, msg := range msgs {
			if len(out) >= k {
				break
			}
			out = append(out, SearchResult{Message: msg, Score: 1, Source: SourceVectorSearch})
		}
		return out, nil
	}
}

func TestAssembleContext_RecentOnlyWhenBudgetSmall(t *testing.T) {
	msgs := makeMessages(10)
	entries, err := AssembleContext(context.Background(), recentOf(msgs), relevantOf(msgs), "q", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.False(t, entry.Relevant)
		assert.Equal(t, 7+i, entry.ID)
	}
}

func TestAssembleContext_RelevantFirstAndDeduplicated(t *testing.T) {
	msgs := makeMessages(10)
	// 相关结果先给出近期消息，应被去重
	relevant := func(_ context.Context, _ string, k int) ([]SearchResult, error) {
		order := []int{9, 8, 2, 1, 0}
		out := make([]SearchResult, 0, len(order))
		for _, id := range order {
			out = append(out, SearchResult{Message: msgs[id], Score: 0.9})
		}
		return out, nil
	}

	entries, err := AssembleContext(context.Background(), recentOf(msgs), relevant, "q", 8)
	require.NoError(t, err)
	require.Len(t, entries, 8)

	assert.True(t, entries[0].Relevant)
	assert.Equal(t, 2, entries[0].ID)
	assert.Equal(t, 1, entries[1].ID)
	assert.Equal(t, 0, entries[2].ID)
	for i := 3; i < 8; i++ {
		assert.False(t, entries[i].Relevant)
		assert.Equal(t, i+2, entries[i].ID)
	}
}

func TestAssembleContext_SmallLogSkipsRelevance(t *testing.T) {
	msgs := makeMessages(3)
	called := false
	relevant := func(_ context.Context, _ string, _ int) ([]SearchResult, error) {
		called = true
		return nil, nil
	}

	entries, err := AssembleContext(context.Background(), recentOf(msgs), relevant, "q", 8)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.False(t, called)
}

func TestAssembleContext_ZeroBudget(t *testing.T) {
	msgs := makeMessages(4)
	entries, err := AssembleContext(context.Background(), recentOf(msgs), nil, "q", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembleContext_Errors(t *testing.T) {
	boom := errors.New("boom")
	failing := func(context.Context, int) ([]Message, error) { return nil, boom }
	_, err := AssembleContext(context.Background(), failing, nil, "q", 5)
	assert.ErrorIs(t, err, boom)

	msgs := makeMessages(10)
	failingRelevant := func(context.Context, string, int) ([]SearchResult, error) { return nil, boom }
	_, err = AssembleContext(context.Background(), recentOf(msgs), failingRelevant, "q", 8)
	assert.ErrorIs(t, err, boom)
}

func TestAssembleContext_BudgetProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(0, 40).Draw(rt, "total")
		budget := rapid.IntRange(-2, 20).Draw(rt, "budget")
		msgs := makeMessages(total)

		entries, err := AssembleContext(context.Background(), recentOf(msgs), relevantOf(msgs), "q", budget)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(entries) > max(budget, 0) {
			rt.Fatalf("%d entries exceed budget %d", len(entries), budget)
		}

		seen := make(map[int]bool)
		recentSeen := false
		for _, entry := range entries {
			if seen[entry.ID] {
				rt.Fatalf("message %d appears twice", entry.ID)
			}
			seen[entry.ID] = true
			if !entry.Relevant {
				recentSeen = true
			} else if recentSeen {
				rt.Fatalf("relevant entry after recent block")
			}
		}
	})
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, NoConversation, FormatContext(nil))

	ts := time.Date(2024, 5, 1, 14, 7, 0, 0, time.Local)
	entries := []ContextEntry{
		{Message: Message{Speaker: "User", Content: "I like blue", Timestamp: ts}, Relevant: true},
		{Message: Message{Speaker: "Clone", Content: "Nice!", Timestamp: ts.Add(time.Minute)}},
	}
	assert.Equal(t, "[14:07] (relevant) User: I like blue\n[14:08] Clone: Nice!", FormatContext(entries))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"vector", KindVector},
		{"sqlite_vec", KindVector},
		{"Enhanced", KindKeyword},
		{"keyword", KindKeyword},
		{" simple ", KindRolling},
		{"rolling", KindRolling},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseKind("graph")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestFileSafeName(t *testing.T) {
	assert.Equal(t, "default", FileSafeName("  "))
	assert.Equal(t, "Ada_Lovelace", FileSafeName("Ada Lovelace"))
	assert.Equal(t, "bob.bench", FileSafeName("bob.bench"))
	assert.Equal(t, "a_b", FileSafeName("a/b"))
}
