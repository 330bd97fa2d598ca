package port

import "pdfrag/internal/domain"

// VectorStore persists chunks alongside their embedding vectors and
// serves nearest-neighbour queries over them.
type VectorStore interface {
	// AddChunks stores the chunks with their vectors, one vector per chunk.
	AddChunks(chunks []domain.Chunk, vectors [][]float32) error

	// DeleteDoc removes every chunk belonging to the given document.
	DeleteDoc(docID string) error

	// Search returns the k chunks nearest to the query vector by cosine
	// similarity, ordered by descending score. Ties are broken by
	// insertion order, earliest first.
	Search(vector []float32, k int) ([]domain.ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count() (int, error)

	Close() error
}
