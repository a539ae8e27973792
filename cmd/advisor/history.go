package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <student-id>",
	Short: "Show or change a student's course history",
	Long: `Show every recorded course attempt of a student.

Subcommands record single attempts or clear the history.

Example:
  advisor history s1
  advisor history record s1 ALG1 approved --grade 8.5
  advisor history clear s1 --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var historyRecordCmd = &cobra.Command{
	Use:   "record <student-id> <course-id> <approved|failed|in_progress>",
	Short: "Record one course attempt",
	Args:  cobra.ExactArgs(3),
	RunE:  runHistoryRecord,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <student-id>",
	Short: "Delete a student's course history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryClear,
}

var (
	historyGrade        float64
	historyYearTaken    int
	historyClearConfirm bool
)

func init() {
	historyRecordCmd.Flags().Float64Var(&historyGrade, "grade", -1, "Grade between 0 and 10 (omit for none)")
	historyRecordCmd.Flags().IntVar(&historyYearTaken, "year", 0, "Year the course was taken (default: the student's current year)")
	historyClearCmd.Flags().BoolVar(&historyClearConfirm, "confirm", false, "Confirm deletion (required)")

	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	h, err := client.History(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, h)
	}
	printHistory(cmd, client.Catalog(), h)
	return nil
}

// printHistory prints attempts as a table, oldest first.
func printHistory(cmd *cobra.Command, cat *advisor.Catalog, h *advisor.History) {
	out := cmd.OutOrStdout()
	if len(h.Entries) == 0 {
		printMuted(out, "No course history recorded.")
		return
	}
	printInfo(out, "History (%d):", len(h.Entries))
	rows := make([][]string, 0, len(h.Entries))
	for _, e := range h.Entries {
		rows = append(rows, []string{
			e.CourseID,
			cat.Name(e.CourseID),
			string(e.Status),
			formatGrade(e.Grade),
			strconv.Itoa(e.YearTaken),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"COURSE", "NAME", "STATUS", "GRADE", "YEAR"}, rows))
}

func runHistoryRecord(cmd *cobra.Command, args []string) error {
	status := advisor.HistoryStatus(strings.ToLower(args[2]))
	if !status.IsValid() {
		return fmt.Errorf("%w: %q (want approved, failed or in_progress)", advisor.ErrInvalidStatus, args[2])
	}

	entry := advisor.HistoryEntry{
		StudentID: args[0],
		CourseID:  args[1],
		Status:    status,
		YearTaken: historyYearTaken,
	}
	switch {
	case historyGrade == -1:
		// no grade
	case historyGrade < 0 || historyGrade > 10:
		return fmt.Errorf("grade %.1f out of range 0-10", historyGrade)
	default:
		g := historyGrade
		entry.Grade = &g
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.RecordHistory(cmd.Context(), entry); err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, entry)
	}
	printSuccess(cmd.OutOrStdout(), "Recorded %s %s for %s", entry.CourseID, entry.Status, entry.StudentID)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if !historyClearConfirm {
		return fmt.Errorf("refusing to clear history of %s without --confirm", args[0])
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.ClearHistory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, map[string]any{"student_id": args[0], "deleted": n})
	}
	printSuccess(cmd.OutOrStdout(), "Cleared %d history entries for %s", n, args[0])
	return nil
}
