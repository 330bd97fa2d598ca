package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/adapter/cache"
)

var (
	cacheStats bool
	cacheClear bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the answer cache",
	Long: `Manage the durable answer cache.

Examples:
  pdfrag cache --stats
  pdfrag cache --clear`,
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.Flags().BoolVar(&cacheStats, "stats", false, "print entry, hit and miss counts")
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "remove every cached answer")
}

func runCache(cmd *cobra.Command, args []string) error {
	if !cacheStats && !cacheClear {
		return fmt.Errorf("specify --stats or --clear")
	}

	c, err := cache.NewAnswerCache(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open answer cache: %w", err)
	}
	defer c.Close()

	if cacheClear {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
	}

	if cacheStats {
		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}
		fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
	}

	return nil
}
