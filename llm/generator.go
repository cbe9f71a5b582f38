package llm

import "context"

// Generator 根据提示词生成文本.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions 是生成采样参数.
type GenerateOptions struct {
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	TopP          float64 `json:"top_p" yaml:"top_p"`
	MaxTokens     int     `json:"num_predict" yaml:"max_tokens"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeat_penalty"`
	TopK          int     `json:"top_k" yaml:"top_k"`
}

// DefaultGenerateOptions 返回分身对话使用的默认采样参数.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature:   0.7,
		TopP:          0.9,
		MaxTokens:     300,
		RepeatPenalty: 1.1,
		TopK:          40,
	}
}
