package port

import (
	"context"

	"pdfrag/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Search searches for chunks matching the query and returns top-k
	// results in descending score order.
	Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}
