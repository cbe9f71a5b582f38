package embed

import (
	"context"
	"fmt"
)

// EmbeddingClient 为嵌入器所需的 llm.OllamaClient 子集.
type EmbeddingClient interface {
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// OllamaEmbedder 使用 Ollama 嵌入模型生成向量.
type OllamaEmbedder struct {
	client    EmbeddingClient
	model     string
	dimension int
}

// NewOllamaEmbedder 创建嵌入器，dimension 必须与模型输出一致.
func NewOllamaEmbedder(client EmbeddingClient, model string, dimension int) *OllamaEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &OllamaEmbedder{client: client, model: model, dimension: dimension}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(raw) != e.dimension {
		return nil, fmt.Errorf("ollama embed: model %s returned %d dimensions, want %d", e.model, len(raw), e.dimension)
	}
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }

var _ Embedder = (*OllamaEmbedder)(nil)
