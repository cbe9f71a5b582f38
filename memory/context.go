package memory

import (
	"context"
	"fmt"
	"strings"
)

// RecentWindow 是上下文中近期消息块的最大条数.
const RecentWindow = 5

// NoConversation 是空上下文的渲染结果.
const NoConversation = "No previous conversation."

// RecentFunc 返回最近 n 条消息，按时间正序.
type RecentFunc func(ctx context.Context, n int) ([]Message, error)

// RelevantFunc 返回与 query 相关的至多 k 条消息，按相关度降序.
type RelevantFunc func(ctx context.Context, query string, k int) ([]SearchResult, error)

// AssembleContext 拼装上下文：相关消息块在前，近期消息块在后.
//
// 近期块取 min(RecentWindow, maxTotal) 条；剩余名额由 relevant 填充，
// 已出现在近期块中的消息按 ID 去重. relevant 可为 nil.
func AssembleContext(ctx context.Context, recent RecentFunc, relevant RelevantFunc, query string, maxTotal int) ([]ContextEntry, error) {
	if maxTotal <= 0 {
		return []ContextEntry{}, nil
	}

	recentCount := min(RecentWindow, maxTotal)
	recentMsgs, err := recent(ctx, recentCount)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}

	remaining := maxTotal - len(recentMsgs)
	entries := make([]ContextEntry, 0, maxTotal)

	// 近期块不足 recentCount 说明日志已被完整覆盖，无需再查相关消息
	if remaining > 0 && relevant != nil && len(recentMsgs) == recentCount {
		seen := make(map[int]struct{}, len(recentMsgs))
		for _, msg := range recentMsgs {
			seen[msg.ID] = struct{}{}
		}

		hits, err := relevant(ctx, query, remaining+len(recentMsgs))
		if err != nil {
			return nil, fmt.Errorf("load relevant messages: %w", err)
		}
		for _, hit := range hits {
			if len(entries) >= remaining {
				break
			}
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			entries = append(entries, ContextEntry{Message: hit.Message, Relevant: true, Score: hit.Score})
		}
	}

	for _, msg := range recentMsgs {
		entries = append(entries, ContextEntry{Message: msg})
	}
	return entries, nil
}

// RecentEntries 把消息包装为非相关上下文条目.
func RecentEntries(msgs []Message) []ContextEntry {
	entries := make([]ContextEntry, len(msgs))
	for i, msg := range msgs {
		entries[i] = ContextEntry{Message: msg}
	}
	return entries
}

// FormatContext 将上下文条目渲染为多行文本.
func FormatContext(entries []ContextEntry) string {
	if len(entries) == 0 {
		return NoConversation
	}

	lines := make([]string, len(entries))
	for i, entry := range entries {
		stamp := entry.Timestamp.Format("15:04")
		if entry.Relevant {
			lines[i] = fmt.Sprintf("[%s] (relevant) %s: %s", stamp, entry.Speaker, entry.Content)
		} else {
			lines[i] = fmt.Sprintf("[%s] %s: %s", stamp, entry.Speaker, entry.Content)
		}
	}
	return strings.Join(lines, "\n")
}
