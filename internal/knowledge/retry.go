package knowledge

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const maxRetryDelay = 5 * time.Second

// RetryingEmbedder retries a failing Embed with exponential backoff. It is
// used for indexing only; query embeddings go straight to the provider.
type RetryingEmbedder struct {
	next     Embedder
	attempts int
	base     time.Duration
	logger   *zap.Logger
}

// NewRetryingEmbedder wraps next; attempts counts the first call.
func NewRetryingEmbedder(next Embedder, attempts int, base time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingEmbedder{next: next, attempts: attempts, base: base, logger: logger}
}

func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		vec, err := r.next.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt == r.attempts-1 {
			break
		}

		delay := retryDelay(r.base, attempt)
		r.logger.Debug("Embedding failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (r *RetryingEmbedder) Dimensions() int {
	return r.next.Dimensions()
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt > 20 {
		return maxRetryDelay
	}
	d := base << attempt
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
