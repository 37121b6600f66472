package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedEmbedder Redis向量缓存
//
// Restarting the assistant re-embeds every chunk; with the cache enabled the
// unchanged chunks come back from Redis instead. Cache errors never fail an
// embedding, they only cost a provider call.
type CachedEmbedder struct {
	client redis.Cmdable
	next   Embedder
	model  string
	ttl    time.Duration
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedder 创建带缓存的嵌入器
func NewCachedEmbedder(client redis.Cmdable, next Embedder, model string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{client: client, next: next, model: model, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, decodeErr := decodeVector(raw); decodeErr == nil && len(vec) == c.next.Dimensions() {
			c.hits.Add(1)
			return vec, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Debug("Embedding cache read failed", zap.Error(err))
	}
	c.misses.Add(1)

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Debug("Embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

// HitRate 缓存命中率
func (c *CachedEmbedder) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("assistant:embedding:%s:%s", c.model, hex.EncodeToString(sum[:]))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
