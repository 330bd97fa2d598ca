package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func newCache(t *testing.T) *AnswerCache {
	t.Helper()
	c, err := NewAnswerCache(filepath.Join(t.TempDir(), "answers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyIsDeterministic(t *testing.T) {
	q := domain.Query{Text: "What is X?", TopK: 4, MultiQuery: true}
	assert.Equal(t, Key(q), Key(q))
}

func TestKeyNormalizesQuestionText(t *testing.T) {
	a := domain.Query{Text: "What is X?", TopK: 4}
	b := domain.Query{Text: "  what   IS x?\n", TopK: 4}
	assert.Equal(t, Key(a), Key(b))
}

func TestKeyVariesWithParameters(t *testing.T) {
	base := domain.Query{Text: "What is X?", TopK: 4}

	differentK := base
	differentK.TopK = 8
	assert.NotEqual(t, Key(base), Key(differentK))

	differentMulti := base
	differentMulti.MultiQuery = true
	assert.NotEqual(t, Key(base), Key(differentMulti))

	differentText := base
	differentText.Text = "What is Y?"
	assert.NotEqual(t, Key(base), Key(differentText))
}

func TestKeyIgnoresUseCacheFlag(t *testing.T) {
	a := domain.Query{Text: "q", TopK: 4, UseCache: true}
	b := domain.Query{Text: "q", TopK: 4, UseCache: false}
	assert.Equal(t, Key(a), Key(b))
}

func TestPutThenGetRoundTrip(t *testing.T) {
	c := newCache(t)
	q := domain.Query{Text: "What is X?", TopK: 4}

	chunk := domain.Chunk{ID: "c1", DocID: "d1", SourcePath: "/docs/a.pdf", Text: "about X", Page: 2}
	stored := domain.CachedAnswer{
		Answer: domain.Answer{
			Text:    "X is a thing.",
			Sources: []domain.Chunk{chunk},
		},
		Chunks:    []domain.ScoredChunk{{Chunk: chunk, Score: 0.91}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.Put(q, stored))

	got, err := c.Get(q)
	require.NoError(t, err)
	assert.Equal(t, stored.Answer, got.Answer)
	assert.Equal(t, stored.Chunks, got.Chunks)
	assert.Equal(t, 0.91, got.Chunks[0].Score)
	assert.True(t, stored.CreatedAt.Equal(got.CreatedAt))
}

func TestGetMiss(t *testing.T) {
	c := newCache(t)
	_, err := c.Get(domain.Query{Text: "never asked", TopK: 4})
	assert.True(t, errors.Is(err, domain.ErrCacheMiss))
}

func TestStatsCountsMissThenHit(t *testing.T) {
	c := newCache(t)
	q := domain.Query{Text: "What is X?", TopK: 4}

	_, err := c.Get(q)
	require.True(t, errors.Is(err, domain.ErrCacheMiss))

	require.NoError(t, c.Put(q, domain.CachedAnswer{Answer: domain.Answer{Text: "X."}}))

	_, err = c.Get(q)
	require.NoError(t, err)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}

func TestClearEmptiesCache(t *testing.T) {
	c := newCache(t)
	q := domain.Query{Text: "What is X?", TopK: 4}

	require.NoError(t, c.Put(q, domain.CachedAnswer{Answer: domain.Answer{Text: "X."}}))
	require.NoError(t, c.Clear())

	_, err := c.Get(q)
	assert.True(t, errors.Is(err, domain.ErrCacheMiss))

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, 0, stats.Hits)
	// The post-clear miss above is counted against the fresh counters.
	assert.Equal(t, 1, stats.Misses)
}

func TestCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.db")
	q := domain.Query{Text: "persistent?", TopK: 2}

	c, err := NewAnswerCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(q, domain.CachedAnswer{Answer: domain.Answer{Text: "yes"}}))
	require.NoError(t, c.Close())

	reopened, err := NewAnswerCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(q)
	require.NoError(t, err)
	assert.Equal(t, "yes", got.Answer.Text)
}
