package store

import (
	"strings"
	"time"

	"github.com/BaSui01/aiclone/memory"
)

// messageLog 保存各存储实现共享的内存状态，由调用方负责同步.
type messageLog struct {
	messages []memory.Message
	now      func() time.Time
}

func (l *messageLog) append(speaker, content string, metadata map[string]any) memory.Message {
	msg := memory.Message{
		ID:        len(l.messages),
		Speaker:   speaker,
		Content:   content,
		Timestamp: l.now(),
		Metadata:  cloneMetadata(metadata),
	}
	l.messages = append(l.messages, msg)
	return msg
}

func (l *messageLog) recent(n int) []memory.Message {
	if n <= 0 || len(l.messages) == 0 {
		return []memory.Message{}
	}
	n = min(n, len(l.messages))
	out := make([]memory.Message, n)
	copy(out, l.messages[len(l.messages)-n:])
	return out
}

func (l *messageLog) bySpeaker(speaker string, n int) []memory.Message {
	if n <= 0 {
		return []memory.Message{}
	}
	// 倒序遍历后恢复时间顺序
	out := make([]memory.Message, 0, n)
	for i := len(l.messages) - 1; i >= 0 && len(out) < n; i-- {
		if l.messages[i].Speaker == speaker {
			out = append(out, l.messages[i])
		}
	}
	reverse(out)
	return out
}

func (l *messageLog) search(query string, max int) []memory.Message {
	if max <= 0 {
		return []memory.Message{}
	}
	needle := strings.ToLower(query)
	out := make([]memory.Message, 0, max)
	for i := len(l.messages) - 1; i >= 0 && len(out) < max; i-- {
		if strings.Contains(strings.ToLower(l.messages[i].Content), needle) {
			out = append(out, l.messages[i])
		}
	}
	return out
}

func (l *messageLog) get(id int) (memory.Message, bool) {
	if id < 0 || id >= len(l.messages) {
		return memory.Message{}, false
	}
	return l.messages[id], true
}

func (l *messageLog) all() []memory.Message {
	out := make([]memory.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *messageLog) stats() memory.Stats {
	stats := memory.Stats{
		TotalMessages: len(l.messages),
		Speakers:      []string{},
	}
	seen := make(map[string]struct{})
	for _, msg := range l.messages {
		if _, ok := seen[msg.Speaker]; !ok {
			seen[msg.Speaker] = struct{}{}
			stats.Speakers = append(stats.Speakers, msg.Speaker)
		}
	}
	if len(l.messages) > 0 {
		stats.DateRange = &memory.TimeRange{
			Start: l.messages[0].Timestamp,
			End:   l.messages[len(l.messages)-1].Timestamp,
		}
	}
	return stats
}

// reset 替换日志并重新编号，保持 id 连续.
func (l *messageLog) reset(messages []memory.Message) {
	l.messages = messages
	for i := range l.messages {
		l.messages[i].ID = i
	}
}

func cloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func reverse(msgs []memory.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
