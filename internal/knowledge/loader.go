package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

// Document 一个源文件的全文
type Document struct {
	Name string
	Text string
}

// DocumentLoader 从固定目录加载文档
type DocumentLoader struct {
	parser FileParser
	logger *zap.Logger
	errLog *apperrors.ErrorLogger
}

// NewDocumentLoader 创建文档加载器
func NewDocumentLoader(parser FileParser, logger *zap.Logger, errLog *apperrors.ErrorLogger) *DocumentLoader {
	if parser == nil {
		parser = NewFileParserManager()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentLoader{parser: parser, logger: logger, errLog: errLog}
}

// Load reads every supported file directly inside dir. Files that fail to
// parse are logged and skipped; only a missing or unreadable directory is an
// error. The result is keyed by file name.
func (l *DocumentLoader) Load(ctx context.Context, dir string) (map[string]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("read documents directory %s", dir)).WithCause(err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !l.parser.Supports(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make(map[string]Document, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := l.parseFile(filepath.Join(dir, name), name)
		if err != nil {
			l.errLog.LogError("load", apperrors.NewExtractionError(name, err), zap.String("file", name))
			continue
		}
		if strings.TrimSpace(text) == "" {
			l.logger.Warn("Document has no extractable text", zap.String("file", name))
			continue
		}
		docs[name] = Document{Name: name, Text: text}
	}

	l.logger.Info("Documents loaded",
		zap.String("dir", dir),
		zap.Int("candidates", len(names)),
		zap.Int("loaded", len(docs)))
	return docs, nil
}

func (l *DocumentLoader) parseFile(path, name string) (text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// unipdf panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return l.parser.Parse(f, name)
}

// SortedDocuments returns docs ordered by name.
func SortedDocuments(docs map[string]Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
