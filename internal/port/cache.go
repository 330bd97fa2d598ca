package port

import "pdfrag/internal/domain"

// AnswerCache is a durable store of previously generated answers keyed by
// the query fields that affect the result.
type AnswerCache interface {
	// Get returns the cached answer for the query, or domain.ErrCacheMiss.
	// Every lookup counts towards the hit/miss statistics.
	Get(q domain.Query) (domain.CachedAnswer, error)

	// Put stores the answer under the query's key.
	Put(q domain.Query, ans domain.CachedAnswer) error

	// Stats reports entry, hit and miss counts.
	Stats() (domain.CacheStats, error)

	// Clear removes every entry and resets the counters.
	Clear() error

	Close() error
}
