package main

import (
	"errors"
	"fmt"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <student-id>",
	Short: "Recommend the next enrollment for a student",
	Long: `Run the rule engine over a stored student's course history.

The result is one of auto_enroll, manual_selection, year_repeat, pending or
course_complete. Suggestions are numbered S1, S2, ... for this run.

Example:
  advisor recommend s1
  advisor recommend s1 --explain
  advisor recommend s1 --enroll`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

var (
	recommendExplain bool
	recommendEnroll  bool
)

func init() {
	recommendCmd.Flags().BoolVar(&recommendExplain, "explain", false, "Show which rules fired and why")
	recommendCmd.Flags().BoolVar(&recommendEnroll, "enroll", false, "Apply an auto_enroll result")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	rec, err := client.Recommend(cmd.Context(), args[0])
	if errors.Is(err, advisor.ErrNotFound) {
		return fmt.Errorf("%w\n\nRecord the student first with: advisor consult %s --year N", err, args[0])
	}
	if err != nil {
		return err
	}

	if err := outputRecommendation(cmd, rec, client.Catalog(), recommendExplain); err != nil {
		return err
	}
	if recommendEnroll {
		return applyAutoEnroll(cmd, client, rec)
	}
	return nil
}

// applyAutoEnroll enrolls the student in the courses of an auto_enroll result.
// Other statuses need a manual choice and are left alone.
func applyAutoEnroll(cmd *cobra.Command, client *advisor.Client, rec *advisor.Recommendation) error {
	if rec.Result.Status != advisor.StatusAutoEnroll {
		if !outputJSON {
			printMuted(cmd.OutOrStdout(), "Nothing enrolled: status %s needs a manual choice (advisor enroll).", rec.Result.Status)
		}
		return nil
	}
	created, err := client.Enroll(cmd.Context(), rec.Student.ID, rec.Result.Enrolled, rec.Result.TargetYear)
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	if outputJSON {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return outputEnrollments(cmd, rec.Student.ID, created, client.Catalog())
}
