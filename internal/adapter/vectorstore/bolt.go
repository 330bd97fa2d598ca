package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"pdfrag/internal/domain"
)

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
	keySeq       = []byte("seq")
)

// BoltStore is a file-backed flat vector index. Vectors and chunk
// payloads live in a single bbolt bucket and are mirrored in memory for
// brute-force cosine search.
type BoltStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	entries   map[string]boltEntry
}

type boltEntry struct {
	chunk  domain.Chunk
	vector []float32
	seq    uint64
}

type storedChunk struct {
	Chunk  domain.Chunk `json:"chunk"`
	Vector []float32    `json:"vector"`
	Seq    uint64       `json:"seq"`
}

// NewBoltStore opens (or creates) the index file for writing.
func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open index db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{
		db:        db,
		dimension: dimension,
		entries:   make(map[string]boltEntry),
	}
	if err := s.loadEntries(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	return s, nil
}

// OpenBoltStoreForSearch opens an existing index read-mostly. A missing
// file or an index with no stored chunks is an index error.
func OpenBoltStoreForSearch(path string, dimension int) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndex, path, err)
	}

	s, err := NewBoltStore(path, dimension)
	if err != nil {
		return nil, err
	}

	if len(s.entries) == 0 {
		s.Close()
		return nil, fmt.Errorf("%w: %s holds no chunks", domain.ErrIndex, path)
	}

	return s, nil
}

func (s *BoltStore) loadEntries() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		return b.ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			s.entries[string(k)] = boltEntry{
				chunk:  stored.Chunk,
				vector: stored.Vector,
				seq:    stored.Seq,
			}
			return nil
		})
	})
}

func (s *BoltStore) AddChunks(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		meta := tx.Bucket(bucketMeta)

		seq := uint64(0)
		if data := meta.Get(keySeq); data != nil {
			seq = binary.BigEndian.Uint64(data)
		}

		for i, chunk := range chunks {
			if len(vectors[i]) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vectors[i]))
			}

			seq++
			stored := storedChunk{
				Chunk:  chunk,
				Vector: vectors[i],
				Seq:    seq,
			}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(chunk.ID), data); err != nil {
				return err
			}

			s.entries[chunk.ID] = boltEntry{
				chunk:  chunk,
				vector: vectors[i],
				seq:    seq,
			}
		}

		var seqData [8]byte
		binary.BigEndian.PutUint64(seqData[:], seq)
		return meta.Put(keySeq, seqData[:])
	})
}

func (s *BoltStore) DeleteDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, entry := range s.entries {
		if entry.chunk.DocID == docID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
			delete(s.entries, id)
		}
		return nil
	})
}

// Search scores every stored vector against the query (brute force) and
// returns the top k, ties broken by insertion order.
func (s *BoltStore) Search(vector []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	if len(s.entries) == 0 || k <= 0 {
		return nil, nil
	}

	type scored struct {
		entry boltEntry
		score float64
	}

	scores := make([]scored, 0, len(s.entries))
	for _, entry := range s.entries {
		scores = append(scores, scored{
			entry: entry,
			score: cosineSimilarity(vector, entry.vector),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].entry.seq < scores[j].entry.seq
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		results[i] = domain.ScoredChunk{
			Chunk: scores[i].entry.chunk,
			Score: scores[i].score,
		}
	}

	return results, nil
}

func (s *BoltStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
