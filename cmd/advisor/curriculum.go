package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Show the curriculum",
	Long: `List the courses of the loaded curriculum with their prerequisites.

Example:
  advisor curriculum
  advisor curriculum --year 2
  advisor curriculum --curriculum ./my-program.yaml --strict`,
	Args: cobra.NoArgs,
	RunE: runCurriculum,
}

var curriculumYear int

func init() {
	curriculumCmd.Flags().IntVar(&curriculumYear, "year", 0, "Only list courses of this year")
}

func runCurriculum(cmd *cobra.Command, args []string) error {
	if curriculumYear < 0 {
		return fmt.Errorf("year must be positive")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cat := client.Catalog()
	courses := client.Curriculum(curriculumYear)
	if outputJSON {
		return outputAsJSON(cmd, courses)
	}

	out := cmd.OutOrStdout()
	if len(courses) == 0 {
		printWarning(out, "No courses in year %d.", curriculumYear)
		return nil
	}
	if curriculumYear > 0 {
		printInfo(out, "Curriculum %s, year %d (%d courses):", cat.Program(), curriculumYear, len(courses))
	} else {
		printInfo(out, "Curriculum %s (%d courses, %d credit hours):", cat.Program(), cat.Len(), cat.TotalCreditHours())
	}

	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, []string{
			c.ID,
			c.Name,
			strconv.Itoa(c.Year),
			c.Area,
			strconv.Itoa(c.CreditHours),
			strings.Join(c.Prerequisites, ", "),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "NAME", "YEAR", "AREA", "HOURS", "REQUIRES"}, rows))
	return nil
}
