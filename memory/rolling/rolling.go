// Package rolling 实现无索引的滚动日志记忆后端.
package rolling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/store"
)

// Log 是没有索引的记忆后端：上下文取最近消息，检索为不区分大小写的子串扫描.
type Log struct {
	store  store.MessageStore
	logger *zap.Logger
}

// New 包装一个消息存储.
func New(s store.MessageStore, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: s, logger: logger.With(zap.String("component", "rolling_memory"))}
}

// Open 按 cfg 创建消息存储并返回滚动日志.
func Open(cfg store.Config, logger *zap.Logger) (*Log, error) {
	s, err := store.NewMessageStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open rolling log: %w", err)
	}
	return New(s, logger), nil
}

func (l *Log) Kind() memory.Kind { return memory.KindRolling }

func (l *Log) Capabilities() memory.Capabilities { return memory.Capabilities{} }

func (l *Log) AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) (int, error) {
	msg, err := l.store.Append(ctx, speaker, content, metadata)
	return msg.ID, err
}

func (l *Log) Recent(_ context.Context, n int) ([]memory.Message, error) {
	return l.store.Recent(n), nil
}

func (l *Log) BySpeaker(_ context.Context, speaker string, n int) ([]memory.Message, error) {
	return l.store.BySpeaker(speaker, n), nil
}

// Search 返回子串匹配，最新的在前.
func (l *Log) Search(_ context.Context, query string, limit int) ([]memory.SearchResult, error) {
	msgs := l.store.Search(query, limit)
	results := make([]memory.SearchResult, len(msgs))
	for i, msg := range msgs {
		results[i] = memory.SearchResult{Message: msg, Score: memory.TextSearchScore, Source: memory.SourceTextSearch}
	}
	return results, nil
}

// Context 返回最后 budget 条消息，日志没有相关性信号.
func (l *Log) Context(_ context.Context, _ string, budget int) ([]memory.ContextEntry, error) {
	return memory.RecentEntries(l.store.Recent(budget)), nil
}

func (l *Log) Stats(context.Context) (memory.Stats, error) {
	stats := l.store.Stats()
	stats.Backend = memory.KindRolling
	return stats, nil
}

func (l *Log) Clear(ctx context.Context) error { return l.store.Clear(ctx) }

func (l *Log) Save(ctx context.Context) error { return l.store.Save(ctx) }

func (l *Log) Close() error { return l.store.Close() }

var _ memory.Backend = (*Log)(nil)
