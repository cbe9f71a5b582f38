package embed

import (
	"context"
	"crypto/sha256"
)

// HashEmbedder 是确定性的占位嵌入器.
// 它把 SHA-256 摘要铺满向量，相同文本得到相同向量，相似文本并不得到相似向量.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder 创建哈希嵌入器，dimension <= 0 时使用 DefaultDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, e.dimension)
	for i := range vec {
		b := sum[i%len(sum)]
		vec[i] = float32(b)/255*2 - 1
	}
	return vec, nil
}

func (e *HashEmbedder) Dimension() int { return e.dimension }

func (e *HashEmbedder) Name() string { return "hash" }

var _ Embedder = (*HashEmbedder)(nil)
