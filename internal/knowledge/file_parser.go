package knowledge

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// FileParser 文件解析器接口
type FileParser interface {
	Parse(reader io.Reader, filename string) (string, error)
	Supports(filename string) bool
}

// PDFParser PDF文件解析器
type PDFParser struct{}

func (p *PDFParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

// Parse extracts the text of every page, pages separated by a newline.
// A page that cannot be read is skipped. When no page yields text and a page
// failed, the first page error is returned so the cause (for example a
// missing unipdf licence) is not mistaken for an empty document.
func (p *PDFParser) Parse(reader io.Reader, filename string) (string, error) {
	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filename, err)
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("inspect pdf %s: %w", filename, err)
	}
	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil || !ok {
			return "", fmt.Errorf("pdf %s is password protected", filename)
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("count pages of %s: %w", filename, err)
	}

	pages := make([]string, 0, numPages)
	var pageErr error
	hasText := false
	for i := 1; i <= numPages; i++ {
		text, err := extractPage(pdfReader, i)
		if err != nil {
			if pageErr == nil {
				pageErr = fmt.Errorf("page %d of %s: %w", i, filename, err)
			}
			continue
		}
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		pages = append(pages, text)
	}
	if !hasText && pageErr != nil {
		return "", pageErr
	}

	return strings.Join(pages, "\n"), nil
}

func extractPage(pdfReader *model.PdfReader, num int) (string, error) {
	page, err := pdfReader.GetPage(num)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	return ex.ExtractText()
}

// FileParserManager 文件解析器管理器
type FileParserManager struct {
	parsers []FileParser
}

// NewFileParserManager 创建文件解析器管理器; only PDF is recognized.
func NewFileParserManager(parsers ...FileParser) *FileParserManager {
	if len(parsers) == 0 {
		parsers = []FileParser{&PDFParser{}}
	}
	return &FileParserManager{parsers: parsers}
}

// Supports reports whether any registered parser handles the file.
func (m *FileParserManager) Supports(filename string) bool {
	return m.parserFor(filename) != nil
}

// Parse 按扩展名选择解析器
func (m *FileParserManager) Parse(reader io.Reader, filename string) (string, error) {
	parser := m.parserFor(filename)
	if parser == nil {
		return "", fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
	return parser.Parse(reader, filename)
}

func (m *FileParserManager) parserFor(filename string) FileParser {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return parser
		}
	}
	return nil
}
