package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pdfrag/internal/adapter/chunker"
	"pdfrag/internal/adapter/pdf"
	"pdfrag/internal/server"
	"pdfrag/internal/usecase"
)

var (
	serveAddr       string
	serveStore      string
	servePersistDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering pipeline over HTTP",
	Long: `Start an HTTP server exposing query, document upload, cache management
and Prometheus metrics endpoints.

Examples:
  pdfrag serve
  pdfrag serve --addr :9090 --store sqlite`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "vector store backend: bolt or sqlite (default from config)")
	serveCmd.Flags().StringVar(&servePersistDir, "persist-dir", "", "directory with index state (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	backend := cfg.Retrieval.Store
	if serveStore != "" {
		backend = serveStore
	}
	persistDir := cfg.Retrieval.PersistDir
	if servePersistDir != "" {
		persistDir = servePersistDir
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	pipeline, err := buildAskPipeline(cfg, backend, persistDir, true, true)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	chk, err := chunker.NewTextChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	indexer := usecase.NewIndexer(pdf.NewWalker(), pdf.NewExtractor(), chk, pipeline.embedder, pipeline.store, logger)

	srv, err := server.New(server.Config{
		Addr:        addr,
		UploadDir:   cfg.Server.UploadDir,
		DefaultTopK: cfg.Retrieval.TopK,
	}, pipeline.asker, indexer, pipeline.cache, prometheus.NewRegistry(), logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
