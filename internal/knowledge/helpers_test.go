package knowledge

import (
	"context"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
)

// hashEmbedder 确定性嵌入器: the same text always yields the same vector.
type hashEmbedder struct {
	dims int

	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func newHashEmbedder(dims int) *hashEmbedder {
	return &hashEmbedder{dims: dims, fail: map[string]bool{}}
}

func (h *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.calls++
	failing := h.fail[text]
	h.mu.Unlock()
	if failing {
		return nil, io.ErrUnexpectedEOF
	}

	vec := make([]float32, h.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(word))
		vec[f.Sum32()%uint32(h.dims)]++
	}
	return vec, nil
}

func (h *hashEmbedder) Dimensions() int { return h.dims }

func (h *hashEmbedder) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// MockEmbedder 模拟嵌入器
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

func (m *MockEmbedder) Dimensions() int {
	return m.Called().Int(0)
}

// MockFileParser 模拟文件解析器
type MockFileParser struct {
	mock.Mock
}

func (m *MockFileParser) Parse(reader io.Reader, filename string) (string, error) {
	args := m.Called(filename)
	return args.String(0), args.Error(1)
}

func (m *MockFileParser) Supports(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
