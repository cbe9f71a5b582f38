// Package embed 将消息内容转为向量，供向量后端使用.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// DefaultDimension 为哈希嵌入器的向量维度.
const DefaultDimension = 384

// Embedder 将文本映射为定长向量.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

// HitCounter 由带缓存的嵌入器实现.
type HitCounter interface {
	Hits() int64
	Misses() int64
}

// ContentKey 为 text 的内容寻址缓存键.
func ContentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
