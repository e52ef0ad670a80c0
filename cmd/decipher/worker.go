package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/decipher/internal/sandbox"
)

// workerCmd is what the supervisor launches for each run. It reads one
// request on stdin and writes the worker protocol on stdout.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one traced execution (internal)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sandbox.ServeWorker(context.Background(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
