package memory

import (
	"fmt"
	"strings"
	"time"
)

// ===== 📦 后端枚举 =====

// Kind 标识一种记忆后端.
type Kind string

const (
	KindRolling Kind = "rolling"
	KindKeyword Kind = "keyword"
	KindVector  Kind = "vector"
)

// Kinds 返回全部内置后端，顺序同时用于基准测试和性能并列时的裁决.
func Kinds() []Kind {
	return []Kind{KindRolling, KindKeyword, KindVector}
}

func (k Kind) String() string { return string(k) }

// ParseKind 解析后端名称，兼容历史别名.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rolling", "simple", "log":
		return KindRolling, nil
	case "keyword", "enhanced":
		return KindKeyword, nil
	case "vector", "sqlite_vec", "vec":
		return KindVector, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// Capabilities 声明后端支持的可选能力.
type Capabilities struct {
	SimilaritySearch bool `json:"similarity_search"`
	KeywordIndex     bool `json:"keyword_index"`
	Summaries        bool `json:"summaries"`
}

// ===== 📦 消息与结果 =====

// Message 是一条不可变的对话消息.
type Message struct {
	ID        int            `json:"id"`
	Speaker   string         `json:"speaker"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Source 标识检索结果的来源.
type Source string

const (
	SourceKeywordIndex Source = "keyword_index"
	SourceVectorSearch Source = "vector_search"
	SourceTextSearch   Source = "text_search"
)

// TextSearchScore 是文本降级检索统一给出的相似度.
const TextSearchScore = 0.5

// SearchResult 是一条检索命中.
type SearchResult struct {
	Message
	Score  float64 `json:"score"`
	Source Source  `json:"source"`
}

// ContextEntry 是上下文中的一行，Relevant 标记来自相关性检索的条目.
type ContextEntry struct {
	Message
	Relevant bool    `json:"relevant"`
	Score    float64 `json:"score,omitempty"`
}

// TimeRange 是消息时间范围.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Stats 是后端统计信息，Details 存放后端特有字段.
type Stats struct {
	Backend       Kind           `json:"backend"`
	TotalMessages int            `json:"total_messages"`
	Speakers      []string       `json:"speakers"`
	DateRange     *TimeRange     `json:"date_range,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// SpeakerProfile 汇总单个说话者的用词与风格.
type SpeakerProfile struct {
	Speaker          string   `json:"speaker"`
	MessageCount     int      `json:"message_count"`
	TopKeywords      []string `json:"top_keywords"`
	Style            string   `json:"communication_style"`
	AvgMessageLength float64  `json:"avg_message_length"`
}

// ConversationSummary 是一段对话的摘要.
type ConversationSummary struct {
	ID           string       `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	MessageRange [2]time.Time `json:"message_range"`
	Speakers     []string     `json:"speakers"`
	Topics       []string     `json:"topics"`
	Keywords     []string     `json:"keywords"`
	Summary      string       `json:"summary"`
}
