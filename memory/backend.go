package memory

import "context"

// Backend 是所有记忆后端的统一接口.
//
// AddMessage 在持久化失败时仍返回有效 ID，错误包装 ErrDurability.
type Backend interface {
	Kind() Kind
	Capabilities() Capabilities

	AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) (int, error)
	Recent(ctx context.Context, n int) ([]Message, error)
	BySpeaker(ctx context.Context, speaker string, n int) ([]Message, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Context(ctx context.Context, query string, budget int) ([]ContextEntry, error)
	Stats(ctx context.Context) (Stats, error)

	Clear(ctx context.Context) error
	Save(ctx context.Context) error
	Close() error
}

// SimilaritySearcher 由声明 Capabilities.SimilaritySearch 的后端实现.
type SimilaritySearcher interface {
	SimilaritySearch(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Summarizer 由声明 Capabilities.Summaries 的后端实现.
type Summarizer interface {
	ConversationSummary() string
	SpeakerProfile(speaker string) SpeakerProfile
}
