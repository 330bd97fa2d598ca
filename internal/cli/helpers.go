package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pdfrag/config"
	"pdfrag/internal/adapter/cache"
	"pdfrag/internal/adapter/embedding"
	"pdfrag/internal/adapter/generator"
	"pdfrag/internal/adapter/llm"
	"pdfrag/internal/adapter/retriever"
	"pdfrag/internal/adapter/vectorstore"
	"pdfrag/internal/port"
	"pdfrag/internal/usecase"
)

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "openai-compatible":
		return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func newLLM(cfg *config.Config) (port.LLM, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return llm.NewOpenAIClient(cfg.LLM.APIKeyEnv, cfg.LLM.Model, cfg.LLM.Temperature)
	case "ollama":
		return llm.NewOllamaClient(cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Temperature)
	case "openai-compatible":
		return llm.NewOpenAICompatibleClient(cfg.LLM.APIKeyEnv, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Temperature)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

// openStoreForIndex creates or opens a writable vector store.
func openStoreForIndex(backend, persistDir string, dimension int) (port.VectorStore, error) {
	switch backend {
	case "bolt":
		return vectorstore.NewBoltStore(config.BoltIndexPath(persistDir), dimension)
	case "sqlite":
		return vectorstore.NewSQLiteStore(config.SQLiteIndexPath(persistDir), dimension)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s", backend)
	}
}

// openStoreForSearch opens an existing index. A missing or empty index is
// an error so the user is told to run `pdfrag index` first.
func openStoreForSearch(backend, persistDir string, dimension int) (port.VectorStore, error) {
	switch backend {
	case "bolt":
		return vectorstore.OpenBoltStoreForSearch(config.BoltIndexPath(persistDir), dimension)
	case "sqlite":
		return vectorstore.OpenSQLiteStoreForSearch(config.SQLiteIndexPath(persistDir), dimension)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s", backend)
	}
}

// askPipeline bundles a fully wired question-answering stack together with
// the resources that must be released when the command exits.
type askPipeline struct {
	asker    *usecase.Asker
	llm      port.LLM
	embedder port.Embedder
	cache    port.AnswerCache
	store    port.VectorStore
}

func (p *askPipeline) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
	if p.store != nil {
		p.store.Close()
	}
}

// buildAskPipeline assembles retriever, generator and cache from config.
// Pass withCache=false to skip opening the answer cache entirely. With
// writable=true a missing index is created instead of rejected, which the
// server needs so uploads can build the index from nothing.
func buildAskPipeline(cfg *config.Config, backend, persistDir string, withCache, writable bool) (*askPipeline, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	open := openStoreForSearch
	if writable {
		if err := os.MkdirAll(persistDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		open = openStoreForIndex
	}
	store, err := open(backend, persistDir, embedder.Dimension())
	if err != nil {
		return nil, err
	}

	model, err := newLLM(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	base := retriever.NewSemanticRetriever(embedder, store)
	expander := retriever.NewQueryExpander(model, cfg.Retrieval.Variants, logger)
	multi := retriever.NewMultiQueryRetriever(base, expander, logger)
	gen := generator.NewGenerator(model, cfg.LLM.ContextBudget, logger)

	var answerCache port.AnswerCache
	if withCache {
		answerCache, err = cache.NewAnswerCache(cfg.Cache.Path)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open answer cache: %w", err)
		}
	}

	asker := usecase.NewAsker(base, multi, gen, answerCache, logger)
	return &askPipeline{asker: asker, llm: model, embedder: embedder, cache: answerCache, store: store}, nil
}
