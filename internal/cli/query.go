package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/adapter/evaluator"
	"pdfrag/internal/domain"
)

var (
	queryText       string
	queryTopK       int
	queryStore      string
	queryPersistDir string
	queryUseCache   bool
	queryMulti      bool
	queryShowDocs   bool
	queryEvaluate   bool
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a question about the indexed documents",
	Long: `Retrieve the most relevant chunks for a question and generate an answer
grounded in them. Repeated questions are served from the answer cache.

Examples:
  pdfrag query -q "What is the cancellation policy?"
  pdfrag query -q "Who signed the contract?" -k 8 --multi-query --show-docs`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "question", "q", "", "question to answer (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().StringVar(&queryStore, "store", "", "vector store backend: bolt or sqlite (default from config)")
	queryCmd.Flags().StringVar(&queryPersistDir, "persist-dir", "", "directory with index state (default from config)")
	queryCmd.Flags().BoolVar(&queryUseCache, "use-cache", true, "serve repeated questions from the answer cache")
	queryCmd.Flags().BoolVar(&queryMulti, "multi-query", false, "expand the question into paraphrases before retrieval")
	queryCmd.Flags().BoolVar(&queryShowDocs, "show-docs", false, "print the retrieved chunks")
	queryCmd.Flags().BoolVar(&queryEvaluate, "evaluate", false, "score the answer for relevance and faithfulness")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("question")
}

type queryOutput struct {
	Answer    string            `json:"answer"`
	FromCache bool              `json:"from_cache"`
	Sources   []sourceOutput    `json:"sources"`
	Scores    *evaluator.Scores `json:"scores,omitempty"`
}

type sourceOutput struct {
	Path  string  `json:"path"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
	Text  string  `json:"text,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	backend := cfg.Retrieval.Store
	if queryStore != "" {
		backend = queryStore
	}
	persistDir := cfg.Retrieval.PersistDir
	if queryPersistDir != "" {
		persistDir = queryPersistDir
	}
	topK := cfg.Retrieval.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	pipeline, err := buildAskPipeline(cfg, backend, persistDir, queryUseCache, false)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	q := domain.Query{
		Text:       queryText,
		TopK:       topK,
		MultiQuery: queryMulti,
		UseCache:   queryUseCache,
	}

	resp, err := pipeline.asker.Ask(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	out := queryOutput{
		Answer:    resp.Answer.Text,
		FromCache: resp.FromCache,
	}
	for _, sc := range resp.Chunks {
		src := sourceOutput{Path: sc.Chunk.SourcePath, Page: sc.Chunk.Page, Score: sc.Score}
		if queryShowDocs {
			src.Text = sc.Chunk.Text
		}
		out.Sources = append(out.Sources, src)
	}

	if queryEvaluate {
		chunks := make([]domain.Chunk, len(resp.Chunks))
		for i, sc := range resp.Chunks {
			chunks[i] = sc.Chunk
		}
		ev := evaluator.NewEvaluator(pipeline.llm, logger)
		scores, err := ev.Evaluate(cmd.Context(), queryText, resp.Answer.Text, chunks)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		out.Scores = &scores
	}

	if queryJSON {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printAnswer(out, queryShowDocs)
	return nil
}

func printAnswer(out queryOutput, showDocs bool) {
	fmt.Println(out.Answer)
	if out.FromCache {
		fmt.Println("\n(served from cache)")
	}

	if len(out.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range out.Sources {
			fmt.Printf("  [%d] %s (page %d, score %.3f)\n", i+1, s.Path, s.Page, s.Score)
			if showDocs {
				text := s.Text
				if len(text) > 500 {
					text = text[:500] + "..."
				}
				fmt.Printf("      %s\n", text)
			}
		}
	}

	if out.Scores != nil {
		fmt.Printf("\nRelevance: %.1f/5  Faithfulness: %.1f/5\n", out.Scores.Relevance, out.Scores.Faithfulness)
		if out.Scores.Commentary != "" {
			fmt.Printf("Commentary: %s\n", out.Scores.Commentary)
		}
	}
}
