package knowledge

import (
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

// ErrIndexFrozen is returned by Add once the index has been frozen.
var ErrIndexFrozen = errors.New("index is frozen")

// IndexedChunk 带向量的分块
type IndexedChunk struct {
	Chunk
	Embedding []float32
}

// SearchMatch 检索结果
type SearchMatch struct {
	Chunk
	Score float64
}

// VectorStore 向量存储抽象
type VectorStore interface {
	Add(chunk IndexedChunk) error
	Query(embedding []float32, k int) ([]SearchMatch, error)
	Len() int
}

type entry struct {
	chunk IndexedChunk
	norm  float64
}

// MemoryIndex 内存向量索引
//
// Entries keep insertion order. Writes are allowed until Freeze; after that
// the index is read-only and queries skip the lock.
type MemoryIndex struct {
	dims    int
	mu      sync.RWMutex
	frozen  atomic.Bool
	entries []entry
}

// NewMemoryIndex 创建固定维度的内存索引
func NewMemoryIndex(dims int) *MemoryIndex {
	return &MemoryIndex{dims: dims}
}

// Add 添加一个分块; the embedding must have the index dimensionality.
func (m *MemoryIndex) Add(chunk IndexedChunk) error {
	if len(chunk.Embedding) != m.dims {
		return apperrors.NewDimensionError(m.dims, len(chunk.Embedding))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen.Load() {
		return ErrIndexFrozen
	}
	m.entries = append(m.entries, entry{chunk: chunk, norm: vectorNorm(chunk.Embedding)})
	return nil
}

// Freeze 冻结索引，之后只读
func (m *MemoryIndex) Freeze() {
	m.mu.Lock()
	m.frozen.Store(true)
	m.mu.Unlock()
}

// snapshot returns the entries visible to a reader. Add only appends, so the
// returned prefix is never written again.
func (m *MemoryIndex) snapshot() []entry {
	if m.frozen.Load() {
		return m.entries
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries
}

// Query returns at most k entries ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (m *MemoryIndex) Query(embedding []float32, k int) ([]SearchMatch, error) {
	if len(embedding) != m.dims {
		return nil, apperrors.NewDimensionError(m.dims, len(embedding))
	}
	if k <= 0 {
		return nil, nil
	}

	entries := m.snapshot()
	if len(entries) == 0 {
		return nil, nil
	}

	normQ := vectorNorm(embedding)
	matches := make([]SearchMatch, len(entries))
	for i, e := range entries {
		matches[i] = SearchMatch{
			Chunk: e.chunk.Chunk,
			Score: cosineSimilarity(embedding, e.chunk.Embedding, normQ, e.norm),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len 索引中的分块数量
func (m *MemoryIndex) Len() int {
	return len(m.snapshot())
}

// Dimensions 索引维度
func (m *MemoryIndex) Dimensions() int {
	return m.dims
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
