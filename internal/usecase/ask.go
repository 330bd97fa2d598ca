package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

// AnswerGenerator produces an answer from retrieved context.
type AnswerGenerator interface {
	Answer(ctx context.Context, question string, results []domain.ScoredChunk) (domain.Answer, error)
}

// Asker answers questions against the indexed corpus. It retrieves
// relevant chunks (optionally via multi-query expansion), generates an
// answer and serves repeated questions from the cache.
type Asker struct {
	retriever      port.Retriever
	multiRetriever port.Retriever
	generator      AnswerGenerator
	cache          port.AnswerCache
	log            *zap.Logger
}

func NewAsker(
	retriever port.Retriever,
	multiRetriever port.Retriever,
	generator AnswerGenerator,
	cache port.AnswerCache,
	log *zap.Logger,
) *Asker {
	return &Asker{
		retriever:      retriever,
		multiRetriever: multiRetriever,
		generator:      generator,
		cache:          cache,
		log:            log,
	}
}

// Response is the outcome of a single question.
type Response struct {
	Answer    domain.Answer
	Chunks    []domain.ScoredChunk
	FromCache bool
}

// Ask answers the query. Cache lookups and stores only happen when the
// query opts in; a cache failure is never fatal to the question.
func (a *Asker) Ask(ctx context.Context, q domain.Query) (*Response, error) {
	if q.UseCache && a.cache != nil {
		cached, err := a.cache.Get(q)
		if err == nil {
			a.log.Debug("answer served from cache", zap.String("question", q.Text))
			return &Response{Answer: cached.Answer, Chunks: cached.Chunks, FromCache: true}, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			a.log.Warn("cache lookup failed", zap.Error(err))
		}
	}

	retriever := a.retriever
	if q.MultiQuery && a.multiRetriever != nil {
		retriever = a.multiRetriever
	}

	results, err := retriever.Search(ctx, q.Text, q.TopK)
	if err != nil {
		return nil, err
	}

	answer, err := a.generator.Answer(ctx, q.Text, results)
	if err != nil {
		return nil, err
	}

	if q.UseCache && a.cache != nil {
		if err := a.cache.Put(q, domain.CachedAnswer{Answer: answer, Chunks: results}); err != nil {
			a.log.Warn("failed to cache answer", zap.Error(err))
		}
	}

	return &Response{Answer: answer, Chunks: results}, nil
}
