package vectorstore

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"pdfrag/internal/domain"
)

// SQLiteStore is a vector index backed by an embedded SQLite database.
// Embeddings are stored as little-endian float32 blobs; search is a
// brute-force cosine scan over the chunks table.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteStore opens (or creates) the database and runs the schema
// migration.
func NewSQLiteStore(path string, dimension int) (*SQLiteStore, error) {
	// WAL mode improves read performance and is safe for single-host use.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index %s: %w", path, err)
	}
	// Single writer connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dimension: dimension}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStoreForSearch opens an existing database for querying. A
// missing file or an empty chunks table is an index error.
func OpenSQLiteStoreForSearch(path string, dimension int) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndex, path, err)
	}

	s, err := NewSQLiteStore(path, dimension)
	if err != nil {
		return nil, err
	}

	count, err := s.Count()
	if err != nil {
		s.Close()
		return nil, err
	}
	if count == 0 {
		s.Close()
		return nil, fmt.Errorf("%w: %s holds no chunks", domain.ErrIndex, path)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT    NOT NULL UNIQUE,
    doc_id       TEXT    NOT NULL,
    source_path  TEXT    NOT NULL,
    page         INTEGER NOT NULL,
    idx          INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    content      TEXT    NOT NULL,
    embedding    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks (doc_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to migrate sqlite index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddChunks(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
INSERT INTO chunks (id, doc_id, source_path, page, idx, start_offset, end_offset, content, embedding)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    doc_id       = excluded.doc_id,
    source_path  = excluded.source_path,
    page         = excluded.page,
    idx          = excluded.idx,
    start_offset = excluded.start_offset,
    end_offset   = excluded.end_offset,
    content      = excluded.content,
    embedding    = excluded.embedding`

	stmt, err := tx.Prepare(q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vectors[i]))
		}

		blob := float32SliceToBytes(vectors[i])
		if _, err := stmt.Exec(chunk.ID, chunk.DocID, chunk.SourcePath, chunk.Page,
			chunk.Index, chunk.StartOffset, chunk.EndOffset, chunk.Text, blob); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteDoc(docID string) error {
	if _, err := s.db.Exec(`DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", docID, err)
	}
	return nil
}

func (s *SQLiteStore) Search(vector []float32, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`
SELECT seq, id, doc_id, source_path, page, idx, start_offset, end_offset, content, embedding
FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	defer rows.Close()

	type scored struct {
		chunk domain.Chunk
		score float64
		seq   int64
	}

	var scores []scored
	for rows.Next() {
		var (
			chunk domain.Chunk
			blob  []byte
			seq   int64
		)
		if err := rows.Scan(&seq, &chunk.ID, &chunk.DocID, &chunk.SourcePath, &chunk.Page,
			&chunk.Index, &chunk.StartOffset, &chunk.EndOffset, &chunk.Text, &blob); err != nil {
			return nil, err
		}

		scores = append(scores, scored{
			chunk: chunk,
			score: cosineSimilarity(vector, bytesToFloat32Slice(blob)),
			seq:   seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].seq < scores[j].seq
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		results[i] = domain.ScoredChunk{Chunk: scores[i].chunk, Score: scores[i].score}
	}
	return results, nil
}

func (s *SQLiteStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
