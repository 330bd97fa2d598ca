package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdfrag/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write the default configuration to ./pdfrag.yaml so the settings can
be edited instead of passed as flags. Refuses to overwrite an existing
file unless --force is given.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing pdfrag.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	const path = "pdfrag.yaml"

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
