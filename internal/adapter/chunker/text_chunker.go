package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"pdfrag/internal/domain"
)

// TextChunker splits extracted document text into fixed-size character
// windows. Size and overlap count runes, not bytes, so accented and other
// multi-byte text chunks cleanly. Consecutive chunks within one document
// overlap by exactly Overlap characters; the final chunk may be shorter.
type TextChunker struct {
	size    int
	overlap int
}

func NewTextChunker(size, overlap int) (*TextChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &TextChunker{size: size, overlap: overlap}, nil
}

// Chunk splits the document's pages into overlapping chunks. Pages are
// joined with a newline so offsets are relative to the whole document
// text; each chunk records the page its start offset falls on. Windows
// are measured in runes, never splitting a multi-byte character.
func (c *TextChunker) Chunk(doc domain.Document, pages []domain.Page) ([]domain.Chunk, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	var text []rune
	pageStarts := make([]int, len(pages))
	for i, p := range pages {
		if i > 0 {
			text = append(text, '\n')
		}
		pageStarts[i] = len(text)
		text = append(text, []rune(p.Text)...)
	}
	if len(strings.TrimSpace(string(text))) == 0 {
		return nil, nil
	}

	step := c.size - c.overlap
	var chunks []domain.Chunk

	for start := 0; start < len(text); start += step {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, domain.Chunk{
			ID:          chunkID(doc.ID, start, end),
			DocID:       doc.ID,
			SourcePath:  doc.Path,
			Text:        string(text[start:end]),
			StartOffset: start,
			EndOffset:   end,
			Index:       len(chunks),
			Page:        pageFor(pages, pageStarts, start),
		})

		if end == len(text) {
			break
		}
	}

	return chunks, nil
}

// pageFor returns the number of the page containing the offset.
func pageFor(pages []domain.Page, pageStarts []int, offset int) int {
	page := pages[0].Number
	for i, start := range pageStarts {
		if offset >= start {
			page = pages[i].Number
		}
	}
	return page
}

func chunkID(docID string, start, end int) string {
	data := fmt.Sprintf("%s:%d-%d", docID, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
