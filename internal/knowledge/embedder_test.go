package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIClient(srv *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		assert.Equal(t, []string{"hello world"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(newTestOpenAIClient(srv), "")
	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-3-small", gotModel)
	assert.Equal(t, 1536, e.Dimensions())
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(newTestOpenAIClient(srv), "text-embedding-3-large")
	assert.Equal(t, 3072, e.Dimensions())

	_, err := e.Embed(context.Background(), "hello")
	assert.Error(t, err)

	_, err = e.Embed(context.Background(), "   ")
	assert.EqualError(t, err, "text is empty")
}

func TestDimensionsForModel(t *testing.T) {
	assert.Equal(t, 1536, DimensionsForModel("text-embedding-ada-002"))
	assert.Equal(t, 1536, DimensionsForModel("custom-model"))
}

func TestRetryingEmbedder_RecoversAfterTransientFailures(t *testing.T) {
	next := new(MockEmbedder)
	next.On("Embed", mock.Anything, "text").Return(nil, errors.New("429")).Twice()
	next.On("Embed", mock.Anything, "text").Return([]float32{1, 2}, nil).Once()

	r := NewRetryingEmbedder(next, 3, time.Millisecond, nil)
	vec, err := r.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	next.AssertNumberOfCalls(t, "Embed", 3)
}

func TestRetryingEmbedder_GivesUp(t *testing.T) {
	next := new(MockEmbedder)
	next.On("Embed", mock.Anything, "text").Return(nil, errors.New("503"))

	r := NewRetryingEmbedder(next, 3, time.Millisecond, nil)
	_, err := r.Embed(context.Background(), "text")
	assert.EqualError(t, err, "503")
	next.AssertNumberOfCalls(t, "Embed", 3)
}

func TestRetryingEmbedder_StopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	next := embedFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return nil, errors.New("fail")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRetryingEmbedder(next, 5, time.Hour, nil)
	_, err := r.Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryDelay(t *testing.T) {
	base := 200 * time.Millisecond
	assert.Equal(t, 200*time.Millisecond, retryDelay(base, 0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(base, 1))
	assert.Equal(t, 1600*time.Millisecond, retryDelay(base, 3))
	assert.Equal(t, maxRetryDelay, retryDelay(base, 10))
	assert.Equal(t, maxRetryDelay, retryDelay(base, 62))
}

type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }
func (f embedFunc) Dimensions() int                                           { return 2 }
