package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pdfrag/internal/adapter/chunker"
	"pdfrag/internal/adapter/pdf"
	"pdfrag/internal/usecase"
)

var (
	indexStore      string
	indexPersistDir string
	indexChunkSize  int
	indexOverlap    int
)

var indexCmd = &cobra.Command{
	Use:   "index [pdf-dir]",
	Short: "Index PDF documents for retrieval",
	Long: `Index every PDF found under the given directory. Documents that were
indexed before are replaced, so re-running after edits keeps the index fresh.

Examples:
  pdfrag index ./docs
  pdfrag index ./docs --store sqlite --chunk-size 800`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexStore, "store", "", "vector store backend: bolt or sqlite (default from config)")
	indexCmd.Flags().StringVar(&indexPersistDir, "persist-dir", "", "directory for index state (default from config)")
	indexCmd.Flags().IntVar(&indexChunkSize, "chunk-size", 0, "chunk size in characters (default from config)")
	indexCmd.Flags().IntVar(&indexOverlap, "chunk-overlap", -1, "overlap between chunks (default from config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	pdfDir := "."
	if len(args) > 0 {
		pdfDir = args[0]
	}
	pdfDir, err := filepath.Abs(pdfDir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(pdfDir)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", pdfDir)
	}

	backend := cfg.Retrieval.Store
	if indexStore != "" {
		backend = indexStore
	}
	persistDir := cfg.Retrieval.PersistDir
	if indexPersistDir != "" {
		persistDir = indexPersistDir
	}
	chunkSize := cfg.Chunking.Size
	if indexChunkSize > 0 {
		chunkSize = indexChunkSize
	}
	overlap := cfg.Chunking.Overlap
	if indexOverlap >= 0 {
		overlap = indexOverlap
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(persistDir, 0755); err != nil {
		return fmt.Errorf("failed to create persist directory: %w", err)
	}
	store, err := openStoreForIndex(backend, persistDir, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	chk, err := chunker.NewTextChunker(chunkSize, overlap)
	if err != nil {
		return err
	}

	indexer := usecase.NewIndexer(pdf.NewWalker(), pdf.NewExtractor(), chk, embedder, store, logger)

	fmt.Printf("Scanning %s for PDF documents...\n", pdfDir)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	progressCallback := func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(processed)
		if currentFile != "" {
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] %s", filepath.Base(currentFile)))
		}
	}

	start := time.Now()
	result, err := indexer.Index(cmd.Context(), pdfDir, progressCallback)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexed %d documents (%d chunks) in %s\n",
		result.DocumentsIndexed, result.ChunksCreated, time.Since(start).Round(time.Millisecond))
	if result.DocumentsSkipped > 0 {
		fmt.Printf("Skipped %d unreadable documents:\n", result.DocumentsSkipped)
		for _, w := range result.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}
	fmt.Printf("Index stored in %s (backend: %s)\n", persistDir, backend)

	return nil
}
