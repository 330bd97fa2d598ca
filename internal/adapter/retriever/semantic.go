package retriever

import (
	"context"
	"fmt"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

// SemanticRetriever embeds the query text and searches the vector store.
type SemanticRetriever struct {
	embedder port.Embedder
	store    port.VectorStore
}

func NewSemanticRetriever(embedder port.Embedder, store port.VectorStore) *SemanticRetriever {
	return &SemanticRetriever{
		embedder: embedder,
		store:    store,
	}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.store.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return results, nil
}
