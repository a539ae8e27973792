package main

import (
	"fmt"
	"strconv"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage stored students",
	Long: `Manage the students kept in the local database.

Subcommands:
  add     Create or update a student
  list    List stored students
  show    Show a student with their history and enrollments
  delete  Delete a student and all their records

Example:
  advisor student add s1 --name "Ana Lima" --year 2
  advisor student show s1`,
}

var studentAddCmd = &cobra.Command{
	Use:   "add <student-id>",
	Short: "Create or update a student",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentAdd,
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored students",
	Args:  cobra.NoArgs,
	RunE:  runStudentList,
}

var studentShowCmd = &cobra.Command{
	Use:   "show <student-id>",
	Short: "Show a student with their history and enrollments",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentShow,
}

var studentDeleteCmd = &cobra.Command{
	Use:   "delete <student-id>",
	Short: "Delete a student and all their records",
	Long: `Delete a student with their history, enrollments and inference log.

Requires --confirm.

Example:
  advisor student delete s1 --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentDelete,
}

var (
	studentName          string
	studentYear          int
	studentNew           bool
	studentDeleteConfirm bool
)

func init() {
	studentAddCmd.Flags().StringVar(&studentName, "name", "", "Student name (default: the id)")
	studentAddCmd.Flags().IntVar(&studentYear, "year", 1, "Current academic year")
	studentAddCmd.Flags().BoolVar(&studentNew, "new", false, "Student is in their first enrollment")
	studentDeleteCmd.Flags().BoolVar(&studentDeleteConfirm, "confirm", false, "Confirm deletion (required)")

	studentCmd.AddCommand(studentAddCmd)
	studentCmd.AddCommand(studentListCmd)
	studentCmd.AddCommand(studentShowCmd)
	studentCmd.AddCommand(studentDeleteCmd)
}

func runStudentAdd(cmd *cobra.Command, args []string) error {
	st := advisor.Student{
		ID:          args[0],
		Name:        studentName,
		CurrentYear: studentYear,
		Type:        advisor.StudentReturning,
	}
	if studentNew {
		st.Type = advisor.StudentNew
		st.CurrentYear = 1
	}
	if err := st.Validate(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	saved, err := client.SaveStudent(cmd.Context(), st)
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, saved)
	}
	printSuccess(cmd.OutOrStdout(), "Saved student %s (%s, year %d, %s)", saved.ID, saved.Name, saved.CurrentYear, saved.Type)
	return nil
}

func runStudentList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	students, err := client.Students(cmd.Context())
	if err != nil {
		return err
	}
	if outputJSON {
		if students == nil {
			students = []advisor.Student{}
		}
		return outputAsJSON(cmd, students)
	}

	out := cmd.OutOrStdout()
	if len(students) == 0 {
		printWarning(out, "No students found.")
		printMuted(out, "Add one with: advisor consult <student-id> --year N")
		return nil
	}

	printInfo(out, "Students (%d):", len(students))
	rows := make([][]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, []string{
			st.ID,
			st.Name,
			strconv.Itoa(st.CurrentYear),
			string(st.Type),
			st.UpdatedAt.Format("2006-01-02"),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "NAME", "YEAR", "TYPE", "UPDATED"}, rows))
	return nil
}

// studentDetail is the JSON form of student show.
type studentDetail struct {
	Student     *advisor.Student       `json:"student"`
	History     []advisor.HistoryEntry `json:"history"`
	Enrollments []advisor.Enrollment   `json:"enrollments"`
}

func runStudentShow(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	st, err := client.Student(ctx, args[0])
	if err != nil {
		return fmt.Errorf("student %s: %w", args[0], err)
	}
	h, err := client.History(ctx, st.ID)
	if err != nil {
		return err
	}
	enrollments, err := client.Enrollments(ctx, st.ID)
	if err != nil {
		return err
	}

	if outputJSON {
		detail := studentDetail{Student: st, History: h.Entries, Enrollments: enrollments}
		if detail.History == nil {
			detail.History = []advisor.HistoryEntry{}
		}
		if detail.Enrollments == nil {
			detail.Enrollments = []advisor.Enrollment{}
		}
		return outputAsJSON(cmd, detail)
	}

	out := cmd.OutOrStdout()
	content := fmt.Sprintf("Name:    %s\nYear:    %d\nType:    %s\nCreated: %s",
		st.Name, st.CurrentYear, st.Type, st.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(out, renderPanel("Student "+st.ID, content))

	fmt.Fprintln(out)
	printHistory(cmd, client.Catalog(), h)

	fmt.Fprintln(out)
	if len(enrollments) == 0 {
		printMuted(out, "No active enrollments.")
		return nil
	}
	printInfo(out, "Enrollments (%d):", len(enrollments))
	rows := make([][]string, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, []string{e.CourseID, client.Catalog().Name(e.CourseID), strconv.Itoa(e.AcademicYear), e.Status})
	}
	fmt.Fprintln(out, renderTable([]string{"COURSE", "NAME", "YEAR", "STATUS"}, rows))
	return nil
}

func runStudentDelete(cmd *cobra.Command, args []string) error {
	if !studentDeleteConfirm {
		return fmt.Errorf("refusing to delete student %s without --confirm", args[0])
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteStudent(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete student %s: %w", args[0], err)
	}
	if outputJSON {
		return outputAsJSON(cmd, map[string]any{"deleted": args[0]})
	}
	printSuccess(cmd.OutOrStdout(), "Deleted student %s", args[0])
	return nil
}
