// Package server exposes the question-answering pipeline over HTTP: a
// query endpoint, PDF upload with immediate indexing, cache management
// and Prometheus metrics. The server is started by the `pdfrag serve`
// CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
	"pdfrag/internal/usecase"
)

// maxUploadBytes bounds the multipart body of /api/documents.
const maxUploadBytes = 64 << 20

// QueryService answers questions against the indexed corpus.
type QueryService interface {
	Ask(ctx context.Context, q domain.Query) (*usecase.Response, error)
}

// FileIndexer indexes a single PDF on disk.
type FileIndexer interface {
	IndexFile(ctx context.Context, path string) (int, error)
}

// Config carries the server's runtime settings.
type Config struct {
	Addr            string
	UploadDir       string
	DefaultTopK     int
	ShutdownTimeout time.Duration
}

// Server handles HTTP requests for querying and document management.
// Query and index operations are serialized through mu so the vector
// store never sees concurrent writers.
type Server struct {
	cfg     Config
	asker   QueryService
	indexer FileIndexer
	cache   port.AnswerCache
	metrics *serverMetrics
	log     *zap.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

func New(cfg Config, asker QueryService, indexer FileIndexer, cache port.AnswerCache, reg *prometheus.Registry, log *zap.Logger) (*Server, error) {
	if asker == nil {
		return nil, fmt.Errorf("server: query service must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.DefaultTopK == 0 {
		cfg.DefaultTopK = 4
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:     cfg,
		asker:   asker,
		indexer: indexer,
		cache:   cache,
		metrics: newServerMetrics(reg),
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.instrument("query", s.handleQuery))
	mux.HandleFunc("POST /api/documents", s.instrument("upload", s.handleUpload))
	mux.HandleFunc("GET /api/cache/stats", s.instrument("cache_stats", s.handleCacheStats))
	mux.HandleFunc("POST /api/cache/clear", s.instrument("cache_clear", s.handleCacheClear))
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealth))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	return s, nil
}

// Handler returns the server's HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// instrument wraps a handler with request counting and latency metrics.
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rw, r)
		elapsed := time.Since(start)

		s.metrics.requestsTotal.WithLabelValues(name, strconv.Itoa(rw.status)).Inc()
		s.metrics.requestDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
		s.log.Debug("request",
			zap.String("handler", name),
			zap.String("method", r.Method),
			zap.Int("status", rw.status),
			zap.Duration("duration", elapsed))
	}
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type queryRequest struct {
	Question   string `json:"question"`
	TopK       int    `json:"top_k"`
	MultiQuery bool   `json:"multi_query"`
	UseCache   *bool  `json:"use_cache"` // defaults to true when omitted
}

type queryResponse struct {
	Answer    string        `json:"answer"`
	Sources   []sourceChunk `json:"sources"`
	FromCache bool          `json:"from_cache"`
}

type sourceChunk struct {
	Path  string  `json:"path"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.DefaultTopK
	}

	q := domain.Query{
		Text:       req.Question,
		TopK:       req.TopK,
		MultiQuery: req.MultiQuery,
		UseCache:   req.UseCache == nil || *req.UseCache,
	}

	s.mu.Lock()
	result, err := s.asker.Ask(r.Context(), q)
	s.mu.Unlock()
	if err != nil {
		s.metrics.queriesTotal.WithLabelValues("error").Inc()
		s.log.Error("query failed", zap.String("question", req.Question), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	outcome := "ok"
	if result.FromCache {
		outcome = "cached"
	}
	s.metrics.queriesTotal.WithLabelValues(outcome).Inc()

	resp := queryResponse{
		Answer:    result.Answer.Text,
		FromCache: result.FromCache,
		Sources:   make([]sourceChunk, 0, len(result.Chunks)),
	}
	for _, sc := range result.Chunks {
		resp.Sources = append(resp.Sources, sourceChunk{
			Path:  sc.Chunk.SourcePath,
			Page:  sc.Chunk.Page,
			Score: sc.Score,
			Text:  sc.Chunk.Text,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type uploadResponse struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		writeError(w, http.StatusServiceUnavailable, "indexing not available")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF documents are accepted")
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0755); err != nil {
		s.log.Error("failed to create upload dir", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	id := uuid.NewString()
	dest := filepath.Join(s.cfg.UploadDir, id+".pdf")
	out, err := os.Create(dest)
	if err != nil {
		s.log.Error("failed to create upload file", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dest)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	out.Close()

	s.mu.Lock()
	chunks, err := s.indexer.IndexFile(r.Context(), dest)
	s.mu.Unlock()
	if err != nil {
		os.Remove(dest)
		s.log.Error("failed to index upload", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "failed to index document")
		return
	}

	s.metrics.documentsIndexedTotal.Inc()
	s.log.Info("document uploaded",
		zap.String("id", id),
		zap.String("filename", header.Filename),
		zap.Int("chunks", chunks))

	writeJSON(w, http.StatusCreated, uploadResponse{ID: id, Path: dest, Chunks: chunks})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not available")
		return
	}
	stats, err := s.cache.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not available")
		return
	}
	if err := s.cache.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
