package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

// Indexer loads PDF documents, chunks them and stores embedded chunks in
// the vector store.
type Indexer struct {
	finder   port.DocumentFinder
	reader   port.DocumentReader
	chunker  port.Chunker
	embedder port.Embedder
	store    port.VectorStore
	log      *zap.Logger
}

func NewIndexer(
	finder port.DocumentFinder,
	reader port.DocumentReader,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
	log *zap.Logger,
) *Indexer {
	return &Indexer{
		finder:   finder,
		reader:   reader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		log:      log,
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	DocumentsIndexed int
	DocumentsSkipped int
	ChunksCreated    int
	Warnings         []string
}

// ProgressFunc reports indexing progress to the caller.
type ProgressFunc func(processed, total int, currentFile string)

// Index walks the directory for PDFs and indexes each one. A document
// already present (same path-derived ID) is replaced wholesale. A single
// unreadable file is skipped with a warning; a run that indexes nothing
// fails with domain.ErrLoad.
func (ix *Indexer) Index(ctx context.Context, pdfDir string, progress ProgressFunc) (*IndexResult, error) {
	files, err := ix.finder.Find(pdfDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no PDF documents found in %s", domain.ErrLoad, pdfDir)
	}

	result := &IndexResult{}

	for i, path := range files {
		if progress != nil {
			progress(i, len(files), path)
		}

		if err := ix.indexFile(ctx, path, result); err != nil {
			ix.log.Warn("skipping document", zap.String("path", path), zap.Error(err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", path, err))
			result.DocumentsSkipped++
			continue
		}
		result.DocumentsIndexed++
	}

	if progress != nil {
		progress(len(files), len(files), "")
	}

	if result.DocumentsIndexed == 0 {
		return nil, fmt.Errorf("%w: no readable PDF documents in %s", domain.ErrLoad, pdfDir)
	}

	return result, nil
}

// IndexFile indexes a single PDF, replacing any previously stored version.
// It returns the number of chunks created.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	result := &IndexResult{}
	if err := ix.indexFile(ctx, path, result); err != nil {
		return 0, err
	}
	return result.ChunksCreated, nil
}

func (ix *Indexer) indexFile(ctx context.Context, path string, result *IndexResult) error {
	pages, err := ix.reader.Read(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	doc := domain.Document{
		ID:      docID(path),
		Path:    path,
		Pages:   len(pages),
		ModTime: info.ModTime(),
	}

	chunks, err := ix.chunker.Chunk(doc, pages)
	if err != nil {
		return fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	ix.log.Debug("embedded document",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))

	// Replace-on-reindex: drop whatever was stored for this path before.
	if err := ix.store.DeleteDoc(doc.ID); err != nil {
		return fmt.Errorf("failed to remove stale chunks: %w", err)
	}
	if err := ix.store.AddChunks(chunks, vectors); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	result.ChunksCreated += len(chunks)
	return nil
}

func docID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
