package port

import "pdfrag/internal/domain"

// DocumentFinder locates source documents under a root directory.
type DocumentFinder interface {
	Find(root string) ([]string, error)
}

// DocumentReader extracts per-page text from a single document.
type DocumentReader interface {
	Read(path string) ([]domain.Page, error)
}
