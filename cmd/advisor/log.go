package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <student-id>",
	Short: "Show a student's logged recommendations",
	Long: `List the inferences run for a student, newest first.

Every recommend and consult is logged with the rules that fired and the
full result.

Example:
  advisor log s1
  advisor log s1 --limit 1 --full`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

var (
	logLimit int
	logFull  bool
)

func init() {
	logCmd.Flags().IntVar(&logLimit, "limit", 10, "Maximum entries to show (0 for all)")
	logCmd.Flags().BoolVar(&logFull, "full", false, "Include the stored explanation of each entry")
}

// logEntry is the JSON form of one inference log entry.
type logEntry struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	FiredRules  []string        `json:"fired_rules"`
	CreatedAt   string          `json:"created_at"`
	Explanation json.RawMessage `json:"explanation,omitempty"`
}

func runLog(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	logs, err := client.InferenceLogs(cmd.Context(), args[0], logLimit)
	if err != nil {
		return err
	}

	if outputJSON {
		entries := make([]logEntry, 0, len(logs))
		for _, l := range logs {
			e := logEntry{
				ID:         l.ID,
				Status:     string(l.Status),
				Message:    l.Message,
				FiredRules: l.FiredRules,
				CreatedAt:  l.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
			if logFull && json.Valid(l.Explanation) {
				e.Explanation = l.Explanation
			}
			entries = append(entries, e)
		}
		return outputAsJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(logs) == 0 {
		printMuted(out, "No recommendations logged for %s.", args[0])
		return nil
	}

	printInfo(out, "Recommendations for %s (%d):", args[0], len(logs))
	for _, l := range logs {
		status := string(l.Status)
		if isTTY() {
			status = statusStyle(status).Render(status)
		}
		fmt.Fprintf(out, "\n%s  %s  %s\n", l.CreatedAt.Format("2006-01-02 15:04:05"), l.ID, status)
		fmt.Fprintf(out, "  %s\n", l.Message)
		fmt.Fprintf(out, "  Rules: %s\n", strings.Join(l.FiredRules, ", "))
		if logFull {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, l.Explanation, "  ", "  "); err == nil {
				fmt.Fprintf(out, "  %s\n", pretty.String())
			}
		}
	}
	return nil
}
