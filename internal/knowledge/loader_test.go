package knowledge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o600))
	}
}

func TestDocumentLoader_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "cv.pdf", "papers.PDF", "broken.pdf", "scan.pdf", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o700))

	parser := new(MockFileParser)
	parser.On("Parse", "cv.pdf").Return("Career history", nil)
	parser.On("Parse", "papers.PDF").Return("Publications", nil)
	parser.On("Parse", "broken.pdf").Return("", errors.New("invalid xref table"))
	parser.On("Parse", "scan.pdf").Return("  \n ", nil)

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	errLog := apperrors.NewErrorLogger(log, apperrors.NewErrorMonitor(prometheus.NewRegistry()))

	docs, err := NewDocumentLoader(parser, log, errLog).Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, docs, 2)
	assert.Equal(t, "Career history", docs["cv.pdf"].Text)
	assert.Equal(t, "Publications", docs["papers.PDF"].Text)
	assert.NotContains(t, docs, "broken.pdf")
	assert.NotContains(t, docs, "notes.txt")

	failures := logs.FilterField(zap.String("error_code", string(apperrors.ErrCodeExtraction)))
	require.Equal(t, 1, failures.Len())
	assert.Equal(t, "broken.pdf", failures.All()[0].ContextMap()["file"])
	assert.Equal(t, 1, logs.FilterMessage("Document has no extractable text").Len())
	parser.AssertNumberOfCalls(t, "Parse", 4)
}

func TestDocumentLoader_RecoversFromParserPanic(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.pdf", "b.pdf")

	parser := new(MockFileParser)
	parser.On("Parse", "a.pdf").Return("ok", nil)
	parser.On("Parse", "b.pdf").Panic("nil xref")

	docs, err := NewDocumentLoader(parser, nil, nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Contains(t, docs, "a.pdf")
}

func TestDocumentLoader_EmptyFolder(t *testing.T) {
	docs, err := NewDocumentLoader(new(MockFileParser), nil, nil).Load(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentLoader_MissingFolder(t *testing.T) {
	_, err := NewDocumentLoader(nil, nil, nil).Load(context.Background(), filepath.Join(t.TempDir(), "me"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestPDFParser_RejectsCorruptInput(t *testing.T) {
	p := &PDFParser{}
	assert.True(t, p.Supports("CV.Pdf"))
	assert.False(t, p.Supports("cv.docx"))

	_, err := p.Parse(bytes.NewReader([]byte("not a pdf at all")), "bad.pdf")
	assert.Error(t, err)
}

func TestFileParserManager_UnsupportedFormat(t *testing.T) {
	m := NewFileParserManager()
	assert.False(t, m.Supports("notes.md"))

	_, err := m.Parse(bytes.NewReader(nil), "notes.md")
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestSortedDocuments(t *testing.T) {
	docs := map[string]Document{
		"b.pdf": {Name: "b.pdf"},
		"a.pdf": {Name: "a.pdf"},
		"c.pdf": {Name: "c.pdf"},
	}
	sorted := SortedDocuments(docs)
	require.Len(t, sorted, 3)
	assert.Equal(t, "a.pdf", sorted[0].Name)
	assert.Equal(t, "c.pdf", sorted[2].Name)
}
