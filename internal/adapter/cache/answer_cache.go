package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"pdfrag/internal/domain"
)

var (
	bucketAnswers  = []byte("answers")
	bucketCounters = []byte("counters")
	keyHits        = []byte("hits")
	keyMisses      = []byte("misses")
)

// AnswerCache is a durable query-to-answer cache backed by bbolt. Hit and
// miss counters are persisted alongside the entries so statistics survive
// process restarts.
type AnswerCache struct {
	db *bbolt.DB
}

func NewAnswerCache(path string) (*AnswerCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAnswers, bucketCounters} {
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

	return &AnswerCache{db: db}, nil
}

// Key derives the cache key from the query fields that affect the answer:
// the case-folded, whitespace-normalized question text, the result count
// and the multi-query flag. Identical queries always produce the same key.
func Key(q domain.Query) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")

	data := []byte(normalized)
	var kBytes [2]byte
	binary.BigEndian.PutUint16(kBytes[:], uint16(q.TopK))
	data = append(data, kBytes[:]...)
	if q.MultiQuery {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns the cached answer for the query or domain.ErrCacheMiss. The
// lookup is counted against the persisted hit/miss statistics.
func (c *AnswerCache) Get(q domain.Query) (domain.CachedAnswer, error) {
	var ans domain.CachedAnswer
	key := Key(q)

	err := c.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAnswers).Get([]byte(key))
		if data == nil {
			if err := incrementCounter(tx, keyMisses); err != nil {
				return err
			}
			return domain.ErrCacheMiss
		}

		if err := json.Unmarshal(data, &ans); err != nil {
			return fmt.Errorf("failed to decode cache entry: %w", err)
		}
		return incrementCounter(tx, keyHits)
	})
	if err != nil {
		return domain.CachedAnswer{}, err
	}

	return ans, nil
}

func (c *AnswerCache) Put(q domain.Query, ans domain.CachedAnswer) error {
	if ans.CreatedAt.IsZero() {
		ans.CreatedAt = time.Now()
	}
	data, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAnswers).Put([]byte(Key(q)), data)
	})
}

func (c *AnswerCache) Stats() (domain.CacheStats, error) {
	var stats domain.CacheStats
	err := c.db.View(func(tx *bbolt.Tx) error {
		stats.Entries = tx.Bucket(bucketAnswers).Stats().KeyN
		stats.Hits = readCounter(tx, keyHits)
		stats.Misses = readCounter(tx, keyMisses)
		return nil
	})
	return stats, err
}

// Clear removes every entry and resets the counters. Unconditional.
func (c *AnswerCache) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAnswers, bucketCounters} {
			if err := tx.DeleteBucket(b); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *AnswerCache) Close() error {
	return c.db.Close()
}

func incrementCounter(tx *bbolt.Tx, key []byte) error {
	b := tx.Bucket(bucketCounters)
	count := uint64(0)
	if data := b.Get(key); data != nil {
		count = binary.BigEndian.Uint64(data)
	}
	count++

	var data [8]byte
	binary.BigEndian.PutUint64(data[:], count)
	return b.Put(key, data[:])
}

func readCounter(tx *bbolt.Tx, key []byte) int {
	data := tx.Bucket(bucketCounters).Get(key)
	if data == nil {
		return 0
	}
	return int(binary.BigEndian.Uint64(data))
}
