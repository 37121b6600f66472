package knowledge

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk 表示分块后的文本结构
type Chunk struct {
	Document string
	Index    int
	Text     string
}

// Chunker 文本分块器
//
// Paragraphs are packed greedily into chunks of at most chunkSize runes. A
// paragraph longer than that is cut into fixed windows that overlap by
// chunkOverlap runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

var paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

const paragraphJoin = "\n\n"

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// Split 将文本切分为多个chunk
func (c *Chunker) Split(text string) []Chunk {
	var (
		chunks  []Chunk
		current strings.Builder
		curLen  int
	)
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: s})
		}
	}
	flush := func() {
		emit(current.String())
		current.Reset()
		curLen = 0
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = normalizeWhitespace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)

		switch {
		case n > c.chunkSize:
			flush()
			for _, w := range c.windows(para) {
				emit(w)
			}
		case curLen == 0:
			current.WriteString(para)
			curLen = n
		case curLen+len(paragraphJoin)+n <= c.chunkSize:
			current.WriteString(paragraphJoin)
			current.WriteString(para)
			curLen += len(paragraphJoin) + n
		default:
			flush()
			current.WriteString(para)
			curLen = n
		}
	}
	flush()

	return chunks
}

// SplitDocument splits doc and tags every chunk with its name.
func (c *Chunker) SplitDocument(doc Document) []Chunk {
	chunks := c.Split(doc.Text)
	for i := range chunks {
		chunks[i].Document = doc.Name
	}
	return chunks
}

func (c *Chunker) windows(text string) []string {
	runes := []rune(text)
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = c.chunkSize
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func normalizeWhitespace(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	var prevSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}
