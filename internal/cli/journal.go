package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/comalice/safetyx/internal/production"
)

var (
	journalPath    string
	journalMachine string
	journalLimit   int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().StringVar(&journalPath, "journal", "", "SQLite journal written by run (required)")
	journalCmd.Flags().StringVarP(&journalMachine, "machine", "m", "robot", "Machine name")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "Number of records to show")
	journalCmd.MarkFlagRequired("journal")
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the most recent journaled safety records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJournal(cmd.Context(), cmd.OutOrStdout(), journalPath, journalMachine, journalLimit)
	},
}

func runJournal(ctx context.Context, out io.Writer, path, machine string, limit int) error {
	j, err := production.OpenJournal(path, machine)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(ctx, limit)
	if err != nil {
		return err
	}
	// Oldest first reads like a log.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		line := fmt.Sprintf("%s cycle=%-6d %-20s %s", e.CreatedAt.Format("15:04:05.000"), e.Cycle, e.Kind, e.Level)
		if e.Target != "" {
			line += " -> " + e.Target
		}
		if e.Event != "" {
			line += fmt.Sprintf(" on %s (%s)", e.Event, e.Origin)
		}
		if e.Detail != "" {
			line += ": " + e.Detail
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
