package retriever

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

// MultiQueryRetriever expands one question into several variants, runs
// the base retriever for each and fuses the results.
type MultiQueryRetriever struct {
	base     port.Retriever
	expander *QueryExpander
	log      *zap.Logger
}

func NewMultiQueryRetriever(base port.Retriever, expander *QueryExpander, log *zap.Logger) *MultiQueryRetriever {
	return &MultiQueryRetriever{
		base:     base,
		expander: expander,
		log:      log,
	}
}

func (r *MultiQueryRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	queries, err := r.expander.Expand(ctx, query)
	if err != nil || len(queries) == 0 {
		queries = []string{query}
	}

	var perVariant [][]domain.ScoredChunk
	for _, q := range queries {
		results, err := r.base.Search(ctx, q, k)
		if err != nil {
			// A failing variant must not sink the request; the original
			// question is always queries[0], so at worst we degrade to
			// single-query behavior.
			if q == query {
				return nil, err
			}
			r.log.Warn("variant retrieval failed", zap.String("variant", q), zap.Error(err))
			continue
		}
		perVariant = append(perVariant, results)
	}

	fused := Fuse(perVariant)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// Fuse merges per-variant result lists: chunks are deduplicated by ID,
// keeping the maximum score seen across variants, and returned in
// descending score order. Ties keep the order in which a chunk first
// appeared.
func Fuse(resultsPerVariant [][]domain.ScoredChunk) []domain.ScoredChunk {
	best := make(map[string]domain.ScoredChunk)
	firstSeen := make(map[string]int)
	order := 0

	for _, results := range resultsPerVariant {
		for _, sc := range results {
			id := sc.Chunk.ID
			if existing, ok := best[id]; !ok {
				best[id] = sc
				firstSeen[id] = order
				order++
			} else if sc.Score > existing.Score {
				best[id] = sc
			}
		}
	}

	fused := make([]domain.ScoredChunk, 0, len(best))
	for _, sc := range best {
		fused = append(fused, sc)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return firstSeen[fused[i].Chunk.ID] < firstSeen[fused[j].Chunk.ID]
	})

	return fused
}
