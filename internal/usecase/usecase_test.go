package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pdfrag/internal/adapter/chunker"
	"pdfrag/internal/adapter/embedding"
	"pdfrag/internal/adapter/vectorstore"
	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

type stubFinder struct {
	files []string
	err   error
}

func (f *stubFinder) Find(string) ([]string, error) {
	return f.files, f.err
}

type stubReader struct {
	pages map[string][]domain.Page
}

func (r *stubReader) Read(path string) ([]domain.Page, error) {
	pages, ok := r.pages[path]
	if !ok {
		return nil, fmt.Errorf("cannot parse %s", path)
	}
	return pages, nil
}

func newTestStore(t *testing.T) port.VectorStore {
	t.Helper()
	store, err := vectorstore.NewBoltStore(filepath.Join(t.TempDir(), "index.db"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func touchFiles(t *testing.T, paths []string) []string {
	t.Helper()
	dir := t.TempDir()
	out := make([]string, len(paths))
	for i, p := range paths {
		full := filepath.Join(dir, p)
		require.NoError(t, os.WriteFile(full, []byte("%PDF-1.4"), 0644))
		out[i] = full
	}
	return out
}

func TestIndexerIndexesAllDocuments(t *testing.T) {
	files := touchFiles(t, []string{"a.pdf", "b.pdf"})
	reader := &stubReader{pages: map[string][]domain.Page{
		files[0]: {{Number: 1, Text: "alpha beta gamma delta"}},
		files[1]: {{Number: 1, Text: "epsilon zeta eta theta"}},
	}}

	ck, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)
	store := newTestStore(t)

	ix := NewIndexer(&stubFinder{files: files}, reader, ck, embedding.NewMockEmbedder(8), store, zap.NewNop())
	result, err := ix.Index(context.Background(), "docs", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DocumentsIndexed)
	assert.Equal(t, 0, result.DocumentsSkipped)
	assert.Equal(t, 2, result.ChunksCreated)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndexerSkipsUnreadableDocuments(t *testing.T) {
	files := touchFiles(t, []string{"good.pdf", "corrupt.pdf"})
	reader := &stubReader{pages: map[string][]domain.Page{
		files[0]: {{Number: 1, Text: "readable content"}},
	}}

	ck, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)

	ix := NewIndexer(&stubFinder{files: files}, reader, ck, embedding.NewMockEmbedder(8), newTestStore(t), zap.NewNop())
	result, err := ix.Index(context.Background(), "docs", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsIndexed)
	assert.Equal(t, 1, result.DocumentsSkipped)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "corrupt.pdf")
}

func TestIndexerFailsWhenNoDocumentsFound(t *testing.T) {
	ck, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)

	ix := NewIndexer(&stubFinder{}, &stubReader{}, ck, embedding.NewMockEmbedder(8), newTestStore(t), zap.NewNop())
	_, err = ix.Index(context.Background(), "docs", nil)
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestIndexerFailsWhenNothingReadable(t *testing.T) {
	files := touchFiles(t, []string{"bad.pdf"})
	ck, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)

	ix := NewIndexer(&stubFinder{files: files}, &stubReader{}, ck, embedding.NewMockEmbedder(8), newTestStore(t), zap.NewNop())
	_, err = ix.Index(context.Background(), "docs", nil)
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestIndexerReplacesReindexedDocument(t *testing.T) {
	files := touchFiles(t, []string{"doc.pdf"})
	reader := &stubReader{pages: map[string][]domain.Page{
		files[0]: {{Number: 1, Text: "first version of the text"}},
	}}

	ck, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)
	store := newTestStore(t)

	ix := NewIndexer(&stubFinder{files: files}, reader, ck, embedding.NewMockEmbedder(8), store, zap.NewNop())

	_, err = ix.Index(context.Background(), "docs", nil)
	require.NoError(t, err)
	_, err = ix.Index(context.Background(), "docs", nil)
	require.NoError(t, err)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexerReportsProgress(t *testing.T) {
	files := touchFiles(t, []string{"a.pdf"})
	reader := &stubReader{pages: map[string][]domain.Page{
		files[0]: {{Number: 1, Text: "some text"}},
	}}

	ck, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)

	var calls int
	ix := NewIndexer(&stubFinder{files: files}, reader, ck, embedding.NewMockEmbedder(8), newTestStore(t), zap.NewNop())
	_, err = ix.Index(context.Background(), "docs", func(processed, total int, _ string) {
		calls++
		assert.Equal(t, 1, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type stubSearchRetriever struct {
	results []domain.ScoredChunk
	err     error
	calls   int
}

func (r *stubSearchRetriever) Search(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.results) > k {
		return r.results[:k], nil
	}
	return r.results, nil
}

type stubGenerator struct {
	answer domain.Answer
	err    error
	calls  int
}

func (g *stubGenerator) Answer(_ context.Context, _ string, _ []domain.ScoredChunk) (domain.Answer, error) {
	g.calls++
	return g.answer, g.err
}

type memoryCache struct {
	entries map[string]domain.CachedAnswer
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]domain.CachedAnswer{}}
}

func (c *memoryCache) Get(q domain.Query) (domain.CachedAnswer, error) {
	if c.getErr != nil {
		return domain.CachedAnswer{}, c.getErr
	}
	ans, ok := c.entries[q.Text]
	if !ok {
		return domain.CachedAnswer{}, domain.ErrCacheMiss
	}
	return ans, nil
}

func (c *memoryCache) Put(q domain.Query, ans domain.CachedAnswer) error {
	c.entries[q.Text] = ans
	return nil
}

func (c *memoryCache) Stats() (domain.CacheStats, error) { return domain.CacheStats{}, nil }
func (c *memoryCache) Clear() error                      { return nil }
func (c *memoryCache) Close() error                      { return nil }

func TestAskerCacheHitSkipsRetrievalAndGeneration(t *testing.T) {
	retriever := &stubSearchRetriever{}
	gen := &stubGenerator{}
	cache := newMemoryCache()
	cache.entries["what is go?"] = domain.CachedAnswer{
		Answer: domain.Answer{Text: "a language"},
		Chunks: []domain.ScoredChunk{
			{Chunk: domain.Chunk{ID: "c1", SourcePath: "a.pdf"}, Score: 0.77},
		},
	}

	asker := NewAsker(retriever, nil, gen, cache, zap.NewNop())
	resp, err := asker.Ask(context.Background(), domain.Query{Text: "what is go?", TopK: 4, UseCache: true})
	require.NoError(t, err)

	assert.True(t, resp.FromCache)
	assert.Equal(t, "a language", resp.Answer.Text)
	require.Len(t, resp.Chunks, 1)
	assert.Equal(t, 0.77, resp.Chunks[0].Score)
	assert.Equal(t, 0, retriever.calls)
	assert.Equal(t, 0, gen.calls)
}

func TestAskerCacheMissGeneratesAndStores(t *testing.T) {
	retriever := &stubSearchRetriever{results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{ID: "c1", Text: "context"}, Score: 0.9},
	}}
	gen := &stubGenerator{answer: domain.Answer{Text: "generated"}}
	cache := newMemoryCache()

	asker := NewAsker(retriever, nil, gen, cache, zap.NewNop())
	q := domain.Query{Text: "question", TopK: 4, UseCache: true}
	resp, err := asker.Ask(context.Background(), q)
	require.NoError(t, err)

	assert.False(t, resp.FromCache)
	assert.Equal(t, "generated", resp.Answer.Text)
	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, 1, gen.calls)

	stored, ok := cache.entries["question"]
	require.True(t, ok)
	assert.Equal(t, "generated", stored.Answer.Text)
}

func TestAskerCacheDisabledBypassesCache(t *testing.T) {
	retriever := &stubSearchRetriever{}
	gen := &stubGenerator{answer: domain.Answer{Text: "fresh"}}
	cache := newMemoryCache()
	cache.entries["q"] = domain.CachedAnswer{Answer: domain.Answer{Text: "stale"}}

	asker := NewAsker(retriever, nil, gen, cache, zap.NewNop())
	resp, err := asker.Ask(context.Background(), domain.Query{Text: "q", TopK: 4})
	require.NoError(t, err)

	assert.False(t, resp.FromCache)
	assert.Equal(t, "fresh", resp.Answer.Text)
	assert.Equal(t, 1, gen.calls)
}

func TestAskerMultiQueryUsesExpandedRetriever(t *testing.T) {
	base := &stubSearchRetriever{}
	multi := &stubSearchRetriever{results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{ID: "c1"}, Score: 1},
	}}
	gen := &stubGenerator{answer: domain.Answer{Text: "ok"}}

	asker := NewAsker(base, multi, gen, nil, zap.NewNop())
	_, err := asker.Ask(context.Background(), domain.Query{Text: "q", TopK: 4, MultiQuery: true})
	require.NoError(t, err)

	assert.Equal(t, 0, base.calls)
	assert.Equal(t, 1, multi.calls)
}

func TestAskerRetrievalErrorIsFatal(t *testing.T) {
	retriever := &stubSearchRetriever{err: errors.New("store gone")}
	asker := NewAsker(retriever, nil, &stubGenerator{}, nil, zap.NewNop())

	_, err := asker.Ask(context.Background(), domain.Query{Text: "q", TopK: 4})
	assert.Error(t, err)
}

func TestAskerCacheLookupErrorIsNotFatal(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("db locked")
	retriever := &stubSearchRetriever{}
	gen := &stubGenerator{answer: domain.Answer{Text: "ok"}}

	asker := NewAsker(retriever, nil, gen, cache, zap.NewNop())
	resp, err := asker.Ask(context.Background(), domain.Query{Text: "q", TopK: 4, UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Answer.Text)
}
