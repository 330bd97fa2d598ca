package domain

import "time"

// Document is a single source PDF file.
type Document struct {
	ID      string
	Path    string
	Pages   int
	ModTime time.Time
}

// Page is the extracted text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// Chunk is an immutable span of extracted document text, the retrieval unit.
// Offsets are rune counts relative to the concatenated text of the whole
// document.
type Chunk struct {
	ID          string `json:"id"`
	DocID       string `json:"doc_id"`
	SourcePath  string `json:"source_path"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Index       int    `json:"index"`
	Page        int    `json:"page"`
}

// Query is one user question plus the retrieval parameters that affect
// its answer.
type Query struct {
	Text       string
	TopK       int
	MultiQuery bool
	UseCache   bool
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is a generated response grounded in the cited chunks.
type Answer struct {
	Text    string  `json:"text"`
	Sources []Chunk `json:"sources"`
}

// CachedAnswer is the value stored per cache key. It carries the scored
// chunks alongside the answer so a cache hit reproduces the full response,
// relevance scores included.
type CachedAnswer struct {
	Answer    Answer        `json:"answer"`
	Chunks    []ScoredChunk `json:"chunks"`
	CreatedAt time.Time     `json:"created_at"`
}

type CacheStats struct {
	Entries int
	Hits    int
	Misses  int
}
