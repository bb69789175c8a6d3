package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index      int
	Text       string
	DocumentID string
	PageNumber int
}

// 从粗到细的切分边界：段落、行、句子、单词、字符
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker 递归文本分块器
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
		separators:   defaultSeparators,
	}
}

// SplitPages 按页切分，块序号在整篇文档内连续
func (c *Chunker) SplitPages(documentID string, pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, text := range c.Split(page.Text) {
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Text:       text,
				DocumentID: documentID,
				PageNumber: page.Number,
			})
		}
	}
	return chunks
}

// Split 将文本切分为不超过chunkSize个字符的块，相邻块保留重叠
func (c *Chunker) Split(text string) []string {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil
	}
	return c.splitText(clean, c.separators)
}

func (c *Chunker) splitText(text string, separators []string) []string {
	separator := ""
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.Split(text, separator)
	}

	var result []string
	var pending []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) < c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			result = append(result, c.merge(pending, separator)...)
			pending = nil
		}
		if len(finer) == 0 {
			result = append(result, c.splitText(piece, []string{""})...)
		} else {
			result = append(result, c.splitText(piece, finer)...)
		}
	}
	if len(pending) > 0 {
		result = append(result, c.merge(pending, separator)...)
	}

	return result
}

// merge 把小片段合并成块，每次换块时从头部弹出片段直到剩余部分不超过重叠长度
func (c *Chunker) merge(pieces []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)
	joinCost := func(window []string) int {
		if len(window) > 0 {
			return sepLen
		}
		return 0
	}

	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		length := utf8.RuneCountInString(piece)
		if total+length+joinCost(window) > c.chunkSize && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > c.chunkOverlap || (total > 0 && total+length+joinCost(window) > c.chunkSize) {
				drop := utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					drop += sepLen
				}
				total -= drop
				window = window[1:]
			}
		}

		window = append(window, piece)
		total += length
		if len(window) > 1 {
			total += sepLen
		}
	}

	if chunk := strings.TrimSpace(strings.Join(window, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func splitRunes(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// normalizeWhitespace 行内空白压缩为一个空格，最多保留一个空行作为段落边界
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var builder strings.Builder
	builder.Grow(len(s))

	newlines := 0
	pendingSpace := false
	for _, r := range s {
		if r == '\n' {
			newlines++
			pendingSpace = false
			continue
		}
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if builder.Len() > 0 {
			switch {
			case newlines >= 2:
				builder.WriteString("\n\n")
			case newlines == 1:
				builder.WriteByte('\n')
			case pendingSpace:
				builder.WriteByte(' ')
			}
		}
		newlines = 0
		pendingSpace = false
		builder.WriteRune(r)
	}

	return builder.String()
}
