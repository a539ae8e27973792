package main

import (
	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var consultCmd = &cobra.Command{
	Use:   "consult <student-id>",
	Short: "Record a student's courses and recommend their enrollment",
	Long: `Save a student's complete course record and run a recommendation.

The given lists replace any history already stored for the student. Courses
may carry a grade as ID=grade; approved courses default to 7.0 and failed
courses to 4.0.

Example:
  advisor consult s1 --new --name "Ana Lima"
  advisor consult s2 --year 2 --approved ALG1=8.5,INF1 --failed FIS1
  advisor consult s2 --year 2 --approved ALG1,INF1 --in-progress MAT2 --explain`,
	Args: cobra.ExactArgs(1),
	RunE: runConsult,
}

var (
	consultName       string
	consultYear       int
	consultNew        bool
	consultApproved   []string
	consultFailed     []string
	consultInProgress []string
	consultExplain    bool
)

func init() {
	consultCmd.Flags().StringVar(&consultName, "name", "", "Student name (default: the id)")
	consultCmd.Flags().IntVar(&consultYear, "year", 0, "Current academic year (required unless --new)")
	consultCmd.Flags().BoolVar(&consultNew, "new", false, "Student is in their first enrollment")
	consultCmd.Flags().StringSliceVar(&consultApproved, "approved", nil, "Approved courses as ID or ID=grade")
	consultCmd.Flags().StringSliceVar(&consultFailed, "failed", nil, "Failed courses as ID or ID=grade")
	consultCmd.Flags().StringSliceVar(&consultInProgress, "in-progress", nil, "Courses currently being taken")
	consultCmd.Flags().BoolVar(&consultExplain, "explain", false, "Show which rules fired and why")
}

func runConsult(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	studentType := advisor.StudentReturning
	if consultNew {
		studentType = advisor.StudentNew
	}

	rec, err := client.Consult(cmd.Context(), advisor.ConsultParams{
		StudentID:  args[0],
		Name:       consultName,
		Year:       consultYear,
		Type:       studentType,
		Approved:   consultApproved,
		Failed:     consultFailed,
		InProgress: consultInProgress,
	})
	if err != nil {
		return err
	}
	return outputRecommendation(cmd, rec, client.Catalog(), consultExplain)
}
