package services

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
	"github.com/aihub/persona-assistant/internal/knowledge"
)

const contextSeparator = "\n\n"

// AssembledContext 检索得到的上下文
type AssembledContext struct {
	Text    string
	Matches []knowledge.SearchMatch
	Tokens  int
	// Degraded is set when retrieval failed and the turn runs without context.
	Degraded bool
}

// ContextAssembler 检索并拼接上下文
type ContextAssembler struct {
	embedder  knowledge.Embedder
	store     knowledge.VectorStore
	counter   *TokenCounter
	topK      int
	maxTokens int
	logger    *zap.Logger
	errLog    *apperrors.ErrorLogger
}

// NewContextAssembler 创建上下文组装器
func NewContextAssembler(embedder knowledge.Embedder, store knowledge.VectorStore, counter *TokenCounter, topK, maxTokens int, logger *zap.Logger, errLog *apperrors.ErrorLogger) *ContextAssembler {
	if counter == nil {
		counter = NewTokenCounter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextAssembler{
		embedder:  embedder,
		store:     store,
		counter:   counter,
		topK:      topK,
		maxTokens: maxTokens,
		logger:    logger,
		errLog:    errLog,
	}
}

// Assemble embeds message, fetches the top-k chunks and joins them within
// the token budget. Retrieval failures yield an empty, degraded context; the
// turn continues without it.
func (ca *ContextAssembler) Assemble(ctx context.Context, message string) AssembledContext {
	if ca.store == nil || ca.store.Len() == 0 {
		return AssembledContext{}
	}

	vec, err := ca.embedder.Embed(ctx, message)
	if err != nil {
		ca.errLog.LogError("retrieve", apperrors.NewEmbeddingError("embed query", err))
		return AssembledContext{Degraded: true}
	}

	matches, err := ca.store.Query(vec, ca.topK)
	if err != nil {
		ca.errLog.LogError("retrieve", err)
		return AssembledContext{Degraded: true}
	}

	text, tokens := ca.join(matches)
	ca.logger.Debug("Context assembled",
		zap.Int("matches", len(matches)),
		zap.Int("tokens", tokens))
	return AssembledContext{Text: text, Matches: matches, Tokens: tokens}
}

func (ca *ContextAssembler) join(matches []knowledge.SearchMatch) (string, int) {
	parts := make([]string, 0, len(matches))
	used := 0
	for _, m := range matches {
		content := strings.TrimSpace(m.Text)
		if content == "" {
			continue
		}
		remaining := ca.maxTokens - used
		if remaining <= 0 {
			break
		}

		tokens := ca.counter.CountTokens(content)
		if tokens > remaining {
			content = ca.smartTruncate(content, remaining)
			if content == "" {
				break
			}
			parts = append(parts, content)
			used += ca.counter.CountTokens(content)
			break
		}
		parts = append(parts, content)
		used += tokens
	}
	return strings.Join(parts, contextSeparator), used
}

// smartTruncate 截断到token预算内，优先在句子边界
func (ca *ContextAssembler) smartTruncate(content string, maxTokens int) string {
	if ca.counter.CountTokens(content) <= maxTokens {
		return content
	}

	ends := sentenceEnds(content)
	best := -1
	for _, end := range ends {
		if ca.counter.CountTokens(content[:end]) > maxTokens {
			break
		}
		best = end
	}
	if best > 0 {
		return strings.TrimSpace(content[:best])
	}

	// 如果无法在句子边界截断，则在词边界截断
	words := strings.Fields(content)
	var b strings.Builder
	for _, w := range words {
		next := w
		if b.Len() > 0 {
			next = " " + w
		}
		if ca.counter.CountTokens(b.String()+next) > maxTokens {
			break
		}
		b.WriteString(next)
	}
	return b.String()
}

// sentenceEnds returns byte offsets just past each sentence terminator that
// is followed by whitespace or the end of the text.
func sentenceEnds(s string) []int {
	var ends []int
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '.', '!', '?', '。', '！', '？':
			if i == len(s) {
				ends = append(ends, i)
				continue
			}
			if next, _ := utf8.DecodeRuneInString(s[i:]); unicode.IsSpace(next) {
				ends = append(ends, i)
			}
		}
	}
	return ends
}
