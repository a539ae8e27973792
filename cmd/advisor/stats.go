package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long: `Display counts of the records kept in the local database.

Example:
  advisor stats
  advisor stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	if outputJSON {
		return outputAsJSON(cmd, stats)
	}

	cat := client.Catalog()
	out := cmd.OutOrStdout()
	printField(out, "Program:       ", "%s", stats.Program)
	printField(out, "Curriculum:    ", "%s (%d courses, %d years)", cat.Program(), cat.Len(), len(cat.Years()))
	printField(out, "Students:      ", "%d", stats.Students)
	printField(out, "History rows:  ", "%d", stats.HistoryRows)
	printField(out, "Enrollments:   ", "%d", stats.Enrollments)
	printField(out, "Inferences:    ", "%d", stats.Inferences)
	printField(out, "Schema version:", "%s", stats.SchemaVersion)
	return nil
}
