package keyword

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
)

// 沟通风格标签.
const (
	StyleConcise  = "concise"
	StyleModerate = "moderate"
	StyleDetailed = "detailed"
	StyleUnknown  = "unknown"
)

const (
	// NoSummary 在第一条摘要生成前返回.
	NoSummary = "No conversation summary available."

	topKeywordCount   = 10
	summaryTopics     = 3
	summaryKeywords   = 5
	summaryKeywordCap = 10
	highlightCount    = 3
)

// summarizeLocked 基于最近 SummaryThreshold 条消息生成摘要并写入环形队列.
func (x *Index) summarizeLocked() {
	recent := x.store.Recent(x.cfg.SummaryThreshold)
	if len(recent) == 0 {
		return
	}

	var speakers, topics, keywords []string
	seenSpeaker := map[string]struct{}{}
	seenTopic := map[string]struct{}{}
	seenKeyword := map[string]struct{}{}
	for _, msg := range recent {
		speakers = appendUnique(speakers, seenSpeaker, msg.Speaker)
		for _, topic := range x.msgTopics[msg.ID] {
			topics = appendUnique(topics, seenTopic, topic)
		}
		for _, kw := range x.msgKeywords[msg.ID] {
			keywords = appendUnique(keywords, seenKeyword, kw)
		}
	}

	summary := memory.ConversationSummary{
		ID:           uuid.NewString(),
		Timestamp:    x.cfg.Now(),
		MessageRange: [2]time.Time{recent[0].Timestamp, recent[len(recent)-1].Timestamp},
		Speakers:     speakers,
		Topics:       nonNil(topics),
		Keywords:     nonNil(keywords[:min(len(keywords), summaryKeywordCap)]),
		Summary:      summaryText(speakers, topics, keywords),
	}

	x.summaries = append(x.summaries, summary)
	if over := len(x.summaries) - x.cfg.MaxSummaries; over > 0 {
		x.summaries = append([]memory.ConversationSummary(nil), x.summaries[over:]...)
	}
	x.logger.Debug("conversation summary recorded", zap.String("summary", summary.Summary))
}

func summaryText(speakers, topics, keywords []string) string {
	var b strings.Builder
	b.WriteString("Conversation between ")
	b.WriteString(strings.Join(speakers, ", "))
	switch {
	case len(topics) > 0:
		b.WriteString(" discussing ")
		b.WriteString(strings.Join(topics[:min(len(topics), summaryTopics)], ", "))
	case len(keywords) > 0:
		b.WriteString(" about ")
		b.WriteString(strings.Join(keywords[:min(len(keywords), summaryKeywords)], ", "))
	}
	return b.String()
}

func renderSummaries(summaries []memory.ConversationSummary) string {
	switch len(summaries) {
	case 0:
		return NoSummary
	case 1:
		return summaries[0].Summary
	}

	var b strings.Builder
	b.WriteString("Recent conversation highlights:\n")
	for _, s := range summaries[max(0, len(summaries)-highlightCount):] {
		b.WriteString("• ")
		b.WriteString(s.Summary)
		b.WriteString("\n")
	}
	return b.String()
}

func buildProfile(speaker string, counts map[string]int, messages []memory.Message) memory.SpeakerProfile {
	keywords := make([]string, 0, len(counts))
	for kw := range counts {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > topKeywordCount {
		keywords = keywords[:topKeywordCount]
	}

	var avg float64
	if len(messages) > 0 {
		total := 0
		for _, msg := range messages {
			total += utf8.RuneCountInString(msg.Content)
		}
		avg = float64(total) / float64(len(messages))
	}

	return memory.SpeakerProfile{
		Speaker:          speaker,
		MessageCount:     len(messages),
		TopKeywords:      keywords,
		Style:            styleFor(avg),
		AvgMessageLength: avg,
	}
}

func styleFor(avgLength float64) string {
	switch {
	case avgLength < 50:
		return StyleConcise
	case avgLength > 150:
		return StyleDetailed
	default:
		return StyleModerate
	}
}

func appendUnique(items []string, seen map[string]struct{}, item string) []string {
	if _, ok := seen[item]; ok {
		return items
	}
	seen[item] = struct{}{}
	return append(items, item)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
