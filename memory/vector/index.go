package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Neighbor 为一条命中：消息 id 及其与查询的余弦距离.
type Neighbor struct {
	ID       int
	Distance float64
}

// Index 是消息嵌入上的最近邻索引.
type Index interface {
	Add(id int, vector []float32) error
	Search(query []float32, k int) ([]Neighbor, error)
	Reset()
	Len() int
}

// FlatIndex 是常驻内存的暴力余弦索引.
type FlatIndex struct {
	mu        sync.RWMutex
	dimension int
	ids       []int
	vectors   [][]float32
}

// NewFlatIndex 创建给定维度的空索引.
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dimension: dimension}
}

func (x *FlatIndex) Add(id int, vector []float32) error {
	if len(vector) != x.dimension {
		return fmt.Errorf("vector dimension mismatch: got %d want %d", len(vector), x.dimension)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = append(x.ids, id)
	x.vectors = append(x.vectors, append([]float32(nil), vector...))
	return nil
}

// Search 按距离升序返回至多 k 个近邻，距离相同时保持插入顺序.
func (x *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d want %d", len(query), x.dimension)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	x.mu.RLock()
	neighbors := make([]Neighbor, len(x.ids))
	for i, vec := range x.vectors {
		neighbors[i] = Neighbor{ID: x.ids[i], Distance: 1 - cosineSimilarity(query, vec)}
	}
	x.mu.RUnlock()

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (x *FlatIndex) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = nil
	x.vectors = nil
}

func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Index = (*FlatIndex)(nil)
