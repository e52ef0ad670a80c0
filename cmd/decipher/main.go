package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/decipher/internal/config"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "decipher",
	Short: "Decipher - step-by-step execution traces for short programs",
	Long: `Decipher runs short Python-style programs in an isolated worker and records
the program state before every statement: variables, output so far, and
how the run ended.

Use "decipher run" to trace a file from the terminal and "decipher serve"
to expose the tracer over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./decipher.yaml or ~/.decipher/decipher.yaml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
