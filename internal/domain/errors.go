package domain

import "errors"

var (
	// ErrLoad indicates the PDF directory is missing or yielded no
	// readable documents.
	ErrLoad = errors.New("document load failed")

	// ErrIndex indicates a vector index opened for search has no
	// persisted state.
	ErrIndex = errors.New("vector index unavailable")

	// ErrGeneration indicates the language model call failed.
	ErrGeneration = errors.New("answer generation failed")

	// ErrExpansion indicates query expansion produced no usable
	// variants. Callers fall back to single-query retrieval.
	ErrExpansion = errors.New("query expansion failed")

	// ErrCacheMiss is returned by the answer cache when no entry
	// exists for a key.
	ErrCacheMiss = errors.New("cache miss")
)
