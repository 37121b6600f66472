package knowledge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleDocs() map[string]Document {
	return map[string]Document{
		"b_research.pdf": {Name: "b_research.pdf", Text: "Research on retrieval systems.\n\nPublished three papers on embeddings."},
		"a_cv.pdf":       {Name: "a_cv.pdf", Text: "Software engineer with ten years experience.\n\nWorked at Acme on search."},
	}
}

func TestIndexPipeline_BuildsInChunkOrder(t *testing.T) {
	embedder := newHashEmbedder(16)
	store := NewMemoryIndex(16)
	p := NewIndexPipeline(NewChunker(50, 0), embedder, store, 3, nil, nil)

	out, err := p.Build(context.Background(), sampleDocs())
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, 4, store.Len())

	assert.Equal(t, "a_cv.pdf", out[0].Document)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, "a_cv.pdf", out[1].Document)
	assert.Equal(t, 1, out[1].Index)
	assert.Equal(t, "b_research.pdf", out[2].Document)
	assert.Equal(t, "b_research.pdf", out[3].Document)
	for _, item := range out {
		assert.Len(t, item.Embedding, 16)
	}
}

func TestIndexPipeline_SkipsChunksThatFailToEmbed(t *testing.T) {
	embedder := newHashEmbedder(8)
	embedder.fail["Worked at Acme on search."] = true
	store := NewMemoryIndex(8)
	p := NewIndexPipeline(NewChunker(50, 0), embedder, store, 2, nil, nil)

	out, err := p.Build(context.Background(), sampleDocs())
	require.NoError(t, err)
	assert.Len(t, out, 3)
	for _, item := range out {
		assert.NotEqual(t, "Worked at Acme on search.", item.Text)
	}
}

func TestIndexPipeline_SkipsWrongDimension(t *testing.T) {
	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, "short one").Return([]float32{1, 0, 0}, nil)
	embedder.On("Embed", mock.Anything, "short two").Return([]float32{1, 0}, nil)

	store := NewMemoryIndex(3)
	docs := map[string]Document{"x.pdf": {Name: "x.pdf", Text: "short one\n\nshort two"}}
	p := NewIndexPipeline(NewChunker(10, 0), embedder, store, 1, nil, nil)

	out, err := p.Build(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "short one", out[0].Text)
	embedder.AssertExpectations(t)
}

func TestIndexPipeline_Idempotent(t *testing.T) {
	build := func() []IndexedChunk {
		p := NewIndexPipeline(NewChunker(50, 0), newHashEmbedder(16), NewMemoryIndex(16), 4, nil, nil)
		out, err := p.Build(context.Background(), sampleDocs())
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, build(), build())
}

func TestIndexPipeline_EmptyCorpus(t *testing.T) {
	store := NewMemoryIndex(4)
	p := NewIndexPipeline(NewChunker(50, 0), newHashEmbedder(4), store, 2, nil, nil)

	out, err := p.Build(context.Background(), map[string]Document{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, store.Len())
}

func TestIndexPipeline_CancelledContext(t *testing.T) {
	embedder := NewRetryingEmbedder(&slowEmbedder{delay: time.Second}, 1, time.Millisecond, nil)
	p := NewIndexPipeline(NewChunker(50, 0), embedder, NewMemoryIndex(4), 2, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Build(ctx, sampleDocs())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type slowEmbedder struct {
	delay time.Duration
}

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return []float32{float32(len(strings.Fields(text))), 0, 0, 1}, nil
	}
}

func (s *slowEmbedder) Dimensions() int { return 4 }
