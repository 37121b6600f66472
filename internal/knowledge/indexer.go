package knowledge

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

// IndexPipeline 分块、向量化并写入索引
type IndexPipeline struct {
	chunker     *Chunker
	embedder    Embedder
	store       VectorStore
	maxParallel int
	logger      *zap.Logger
	errLog      *apperrors.ErrorLogger
}

// NewIndexPipeline 创建索引流水线; embedder should already carry retries.
func NewIndexPipeline(chunker *Chunker, embedder Embedder, store VectorStore, maxParallel int, logger *zap.Logger, errLog *apperrors.ErrorLogger) *IndexPipeline {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexPipeline{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		maxParallel: maxParallel,
		logger:      logger,
		errLog:      errLog,
	}
}

// Build chunks docs in name order, embeds the chunks with bounded
// parallelism and adds them to the store in chunk order. A chunk whose
// embedding fails is skipped. Only context cancellation aborts the build.
func (p *IndexPipeline) Build(ctx context.Context, docs map[string]Document) ([]IndexedChunk, error) {
	start := time.Now()

	var chunks []Chunk
	for _, doc := range SortedDocuments(docs) {
		chunks = append(chunks, p.chunker.SplitDocument(doc)...)
	}

	embeddings := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)
	for i := range chunks {
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.errLog.LogError("index", apperrors.NewEmbeddingError("embed chunk", err),
					zap.String("document", chunks[i].Document),
					zap.Int("chunk", chunks[i].Index))
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	indexed := make([]IndexedChunk, 0, len(chunks))
	for i, vec := range embeddings {
		if vec == nil {
			continue
		}
		item := IndexedChunk{Chunk: chunks[i], Embedding: vec}
		if err := p.store.Add(item); err != nil {
			p.errLog.LogError("index", err,
				zap.String("document", chunks[i].Document),
				zap.Int("chunk", chunks[i].Index))
			continue
		}
		indexed = append(indexed, item)
	}

	p.logger.Info("Knowledge index built",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("indexed", len(indexed)),
		zap.Duration("elapsed", time.Since(start)))
	return indexed, nil
}
