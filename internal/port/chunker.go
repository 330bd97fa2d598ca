package port

import "pdfrag/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document, pages []domain.Page) ([]domain.Chunk, error)
}
