package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/decipher/internal/storage"
)

var (
	limitFlag    int
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Manage saved code history",
}

var historyListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's saved submissions",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show a submission and how its run ended",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete a submission",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <user-id>",
	Short: "Delete all of a user's submissions",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryClear,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <entry-id>",
	Short: "Export a submission and its trace as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd, historyClearCmd, historyExportCmd)

	historyListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max entries to show")

	historyExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	historyDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
	historyClearCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListEntries(context.Background(), args[0], storage.ListOptions{Limit: limitFlag})
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No history found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-15s %-6s %-45s %s\n", "ID", "OUTCOME", "STEPS", "CODE", "SAVED")
	fmt.Println(strings.Repeat("─", 95))

	for _, e := range entries {
		outcome := e.Outcome
		if outcome == "" {
			outcome = "(not run)"
		}
		fmt.Printf("%-10s %-15s %-6d %-45s %s\n",
			shortID(e.ID), outcome, e.StepCount, truncate(firstLine(e.Code), 43), timeAgo(e.CreatedAt))
	}

	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	e, err := store.GetEntry(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Entry:    %s\n", e.ID)
	fmt.Printf("User:     %s\n", e.UserID)
	fmt.Printf("Language: %s\n", e.Language)
	fmt.Printf("Created:  %s\n", e.CreatedAt.Format(time.RFC3339))
	if e.Outcome != "" {
		fmt.Printf("Outcome:  %s (%d steps)\n", e.Outcome, e.StepCount)
	}
	if len(e.Inputs) > 0 {
		fmt.Printf("Inputs:   %s\n", strings.Join(e.Inputs, ", "))
	}
	fmt.Println(strings.Repeat("─", 60))
	for i, line := range strings.Split(strings.TrimRight(e.Code, "\n"), "\n") {
		fmt.Printf("\033[90m%3d│\033[0m %s\n", i+1, line)
	}

	tr, err := store.LoadTrace(ctx, e.ID)
	if err != nil {
		return err
	}
	if tr == nil {
		return nil
	}
	fmt.Println(strings.Repeat("─", 60))
	if tr.FinalOutput != "" {
		fmt.Print(tr.FinalOutput)
		if !strings.HasSuffix(tr.FinalOutput, "\n") {
			fmt.Println()
		}
	}
	if tr.Error != nil {
		fmt.Printf("\033[31m%s\033[0m\n", *tr.Error)
	}
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	e, err := store.GetEntry(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag && !confirm(fmt.Sprintf("Delete entry %s - %q?", shortID(e.ID), truncate(firstLine(e.Code), 40))) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := store.DeleteEntry(ctx, e.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted entry %s\n", shortID(e.ID))
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if !forceFlag && !confirm(fmt.Sprintf("Delete all history for %s?", args[0])) {
		fmt.Println("Cancelled.")
		return nil
	}

	n, err := store.ClearUser(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d entries\n", n)
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	e, err := store.GetEntry(ctx, args[0])
	if err != nil {
		return err
	}

	tr, err := store.LoadTrace(ctx, e.ID)
	if err != nil {
		return err
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(e, tr)
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	default:
		output = storage.ExportMarkdown(e, tr)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Print(output)
	return nil
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	var answer string
	fmt.Scanln(&answer)
	return strings.ToLower(answer) == "y"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
