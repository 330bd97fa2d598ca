package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pdfrag/internal/adapter/evaluator"
	"pdfrag/internal/domain"
)

var (
	interactiveStore      string
	interactivePersistDir string
	interactiveTopK       int
	interactiveMulti      bool
	interactiveUseCache   bool
	interactiveShowDocs   bool
	interactiveEvaluate   bool
	interactiveTranscript string
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Ask questions in an interactive session",
	Long: `Start a read-eval loop for asking questions against the index. Type
'help' for session commands. With --transcript the session's questions
and answers are written to a JSON file on exit.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
	interactiveCmd.Flags().StringVar(&interactiveStore, "store", "", "vector store backend: bolt or sqlite (default from config)")
	interactiveCmd.Flags().StringVar(&interactivePersistDir, "persist-dir", "", "directory with index state (default from config)")
	interactiveCmd.Flags().IntVarP(&interactiveTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	interactiveCmd.Flags().BoolVar(&interactiveMulti, "multi-query", false, "expand questions into paraphrases before retrieval")
	interactiveCmd.Flags().BoolVar(&interactiveUseCache, "use-cache", true, "serve repeated questions from the answer cache")
	interactiveCmd.Flags().BoolVar(&interactiveShowDocs, "show-docs", false, "print the retrieved chunk text with each answer")
	interactiveCmd.Flags().BoolVar(&interactiveEvaluate, "evaluate", false, "score each answer for relevance and faithfulness")
	interactiveCmd.Flags().StringVar(&interactiveTranscript, "transcript", "", "write the session transcript to this JSON file")
}

// transcriptTurn is one question/answer exchange of the session.
type transcriptTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	FromCache bool      `json:"from_cache"`
	AskedAt   time.Time `json:"asked_at"`
}

func runInteractive(cmd *cobra.Command, args []string) error {
	backend := cfg.Retrieval.Store
	if interactiveStore != "" {
		backend = interactiveStore
	}
	persistDir := cfg.Retrieval.PersistDir
	if interactivePersistDir != "" {
		persistDir = interactivePersistDir
	}
	topK := cfg.Retrieval.TopK
	if interactiveTopK > 0 {
		topK = interactiveTopK
	}

	pipeline, err := buildAskPipeline(cfg, backend, persistDir, true, false)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	fmt.Println("Interactive session started. Type 'help' for commands, 'exit' to quit.")

	var transcript []transcriptTurn
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

loop:
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			break loop
		case "help":
			fmt.Println("Commands:")
			fmt.Println("  help         show this help")
			fmt.Println("  cache stats  show answer cache statistics")
			fmt.Println("  cache clear  clear the answer cache")
			fmt.Println("  exit, quit   end the session")
			fmt.Println("Anything else is treated as a question.")
			continue
		case "cache stats":
			stats, err := pipeline.cache.Stats()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("Entries: %d  Hits: %d  Misses: %d\n", stats.Entries, stats.Hits, stats.Misses)
			continue
		case "cache clear":
			if err := pipeline.cache.Clear(); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println("Cache cleared.")
			continue
		}

		q := domain.Query{
			Text:       line,
			TopK:       topK,
			MultiQuery: interactiveMulti,
			UseCache:   interactiveUseCache,
		}

		resp, err := pipeline.asker.Ask(cmd.Context(), q)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", resp.Answer.Text)
		if resp.FromCache {
			fmt.Println("(served from cache)")
		}
		for i, sc := range resp.Chunks {
			fmt.Printf("  [%d] %s (page %d, score %.3f)\n", i+1, sc.Chunk.SourcePath, sc.Chunk.Page, sc.Score)
			if interactiveShowDocs {
				text := sc.Chunk.Text
				if len(text) > 500 {
					text = text[:500] + "..."
				}
				fmt.Printf("      %s\n", text)
			}
		}

		if interactiveEvaluate {
			chunks := make([]domain.Chunk, len(resp.Chunks))
			for i, sc := range resp.Chunks {
				chunks[i] = sc.Chunk
			}
			scores, err := evaluator.NewEvaluator(pipeline.llm, logger).Evaluate(cmd.Context(), line, resp.Answer.Text, chunks)
			if err != nil {
				fmt.Printf("Evaluation error: %v\n", err)
			} else {
				fmt.Printf("Relevance: %.1f/5  Faithfulness: %.1f/5\n", scores.Relevance, scores.Faithfulness)
			}
		}

		transcript = append(transcript, transcriptTurn{
			Question:  line,
			Answer:    resp.Answer.Text,
			FromCache: resp.FromCache,
			AskedAt:   time.Now(),
		})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if interactiveTranscript != "" && len(transcript) > 0 {
		data, err := json.MarshalIndent(transcript, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode transcript: %w", err)
		}
		if err := os.WriteFile(interactiveTranscript, data, 0644); err != nil {
			return fmt.Errorf("failed to write transcript: %w", err)
		}
		fmt.Printf("Transcript written to %s (%d turns)\n", interactiveTranscript, len(transcript))
	}

	fmt.Println("Goodbye.")
	return nil
}
