package chunker

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func TestNewTextChunkerRejectsBadParams(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTextChunker(tc.size, tc.overlap)
			assert.Error(t, err)
		})
	}
}

func TestChunkSizeAndOverlapInvariants(t *testing.T) {
	const size, overlap = 50, 10
	c, err := NewTextChunker(size, overlap)
	require.NoError(t, err)

	doc := domain.Document{ID: "doc1", Path: "/test/a.pdf"}
	text := strings.Repeat("abcdefghij", 37) // 370 chars, not a multiple of the step
	chunks, err := c.Chunk(doc, []domain.Page{{Number: 1, Text: text}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), size)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, ch.Text, text[ch.StartOffset:ch.EndOffset])

		if i > 0 {
			prev := chunks[i-1]
			// Exact overlap between consecutive chunks.
			assert.Equal(t, overlap, prev.EndOffset-ch.StartOffset)
		}
	}

	// Full coverage with no gaps.
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}

func TestChunkZeroOverlap(t *testing.T) {
	c, err := NewTextChunker(10, 0)
	require.NoError(t, err)

	text := strings.Repeat("x", 25)
	chunks, err := c.Chunk(domain.Document{ID: "d"}, []domain.Page{{Number: 1, Text: text}})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, 10, len(chunks[0].Text))
	assert.Equal(t, 10, len(chunks[1].Text))
	assert.Equal(t, 5, len(chunks[2].Text))
	assert.Equal(t, chunks[0].EndOffset, chunks[1].StartOffset)
}

func TestChunkAssignsPages(t *testing.T) {
	c, err := NewTextChunker(20, 0)
	require.NoError(t, err)

	pages := []domain.Page{
		{Number: 1, Text: strings.Repeat("a", 30)},
		{Number: 2, Text: strings.Repeat("b", 30)},
	}
	chunks, err := c.Chunk(domain.Document{ID: "d"}, pages)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}

func TestChunkShortDocumentIsSingleChunk(t *testing.T) {
	c, err := NewTextChunker(1000, 200)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Document{ID: "d"}, []domain.Page{{Number: 1, Text: "short text"}})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
}

func TestChunkEmptyPagesYieldNothing(t *testing.T) {
	c, err := NewTextChunker(100, 10)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Document{ID: "d"}, []domain.Page{{Number: 1, Text: "  "}, {Number: 2, Text: ""}})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk(domain.Document{ID: "d"}, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkMultiByteTextStaysValidUTF8(t *testing.T) {
	const size, overlap = 5, 1
	c, err := NewTextChunker(size, overlap)
	require.NoError(t, err)

	text := strings.Repeat("é", 10)
	chunks, err := c.Chunk(domain.Document{ID: "d"}, []domain.Page{{Number: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	runes := []rune(text)
	for i, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text), "chunk %d is not valid UTF-8: %q", i, ch.Text)
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), size)
		assert.Equal(t, string(runes[ch.StartOffset:ch.EndOffset]), ch.Text)

		if i > 0 {
			assert.Equal(t, overlap, chunks[i-1].EndOffset-ch.StartOffset)
		}

		// Persisting the chunk must not rewrite any of its bytes.
		data, err := json.Marshal(ch)
		require.NoError(t, err)
		var decoded domain.Chunk
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, ch.Text, decoded.Text)
	}

	assert.Equal(t, len(runes), chunks[len(chunks)-1].EndOffset)
}

func TestChunkIDsAreDeterministic(t *testing.T) {
	c, err := NewTextChunker(10, 2)
	require.NoError(t, err)

	pages := []domain.Page{{Number: 1, Text: strings.Repeat("y", 40)}}
	first, err := c.Chunk(domain.Document{ID: "d"}, pages)
	require.NoError(t, err)
	second, err := c.Chunk(domain.Document{ID: "d"}, pages)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}
