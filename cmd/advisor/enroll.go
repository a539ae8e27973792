package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <student-id> <course-id>...",
	Short: "Enroll a student in courses",
	Long: `Register a student in one or more courses.

Without courses, lists the student's active enrollments.

Example:
  advisor enroll s1 PRG2 BDD2
  advisor enroll s1 PRG2 --academic-year 2
  advisor enroll s1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

var enrollAcademicYear int

func init() {
	enrollCmd.Flags().IntVar(&enrollAcademicYear, "academic-year", 0, "Academic year of the enrollment (default: the student's current year)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	studentID := args[0]
	if len(args) == 1 {
		enrollments, err := client.Enrollments(cmd.Context(), studentID)
		if err != nil {
			return err
		}
		if outputJSON {
			return outputAsJSON(cmd, enrollments)
		}
		out := cmd.OutOrStdout()
		if len(enrollments) == 0 {
			printMuted(out, "No active enrollments for %s.", studentID)
			return nil
		}
		rows := make([][]string, 0, len(enrollments))
		for _, e := range enrollments {
			rows = append(rows, []string{e.CourseID, client.Catalog().Name(e.CourseID), strconv.Itoa(e.AcademicYear), e.EnrolledAt.Format("2006-01-02")})
		}
		fmt.Fprintln(out, renderTable([]string{"COURSE", "NAME", "YEAR", "ENROLLED"}, rows))
		return nil
	}

	created, err := client.Enroll(cmd.Context(), studentID, args[1:], enrollAcademicYear)
	if err != nil {
		return err
	}
	return outputEnrollments(cmd, studentID, created, client.Catalog())
}
