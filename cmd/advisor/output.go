package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputText prints text to the command's stdout.
func outputText(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

// outputError prints an error to w.
func outputError(w io.Writer, err error) {
	printError(w, "Error: %s", err.Error())
}

// outputRecommendation prints a recommendation in the configured format.
func outputRecommendation(cmd *cobra.Command, rec *advisor.Recommendation, cat *advisor.Catalog, explain bool) error {
	if outputJSON {
		if !explain {
			trimmed := *rec
			trimmed.Explanation = advisor.Explanation{}
			trimmed.Result.Explanation = nil
			return outputAsJSON(cmd, trimmed)
		}
		return outputAsJSON(cmd, rec)
	}

	out := cmd.OutOrStdout()
	res := rec.Result

	var header strings.Builder
	name := rec.Student.Name
	if name == "" {
		name = rec.Student.ID
	}
	fmt.Fprintf(&header, "Student:  %s (%s)\n", name, rec.Student.ID)
	fmt.Fprintf(&header, "Year:     %d, %s\n", rec.Student.CurrentYear, rec.Student.Type)
	status := string(res.Status)
	if isTTY() {
		status = statusStyle(status).Render(status)
	}
	fmt.Fprintf(&header, "Status:   %s\n", status)
	fmt.Fprintf(&header, "Progress: %d/%d courses (%.1f%%), %d/%d credit hours",
		res.Statistics.Approved, res.Statistics.TotalCourses, res.Statistics.CompletionPercent,
		res.Statistics.ApprovedCreditHours, res.Statistics.TotalCreditHours)
	fmt.Fprintln(out, renderPanel("Recommendation", header.String()))
	fmt.Fprintln(out)
	fmt.Fprintln(out, res.Message)

	switch res.Status {
	case advisor.StatusAutoEnroll:
		fmt.Fprintln(out)
		printSuccess(out, "Enroll in year %d:", res.TargetYear)
		rows := make([][]string, 0, len(res.Enrolled))
		for _, id := range res.Enrolled {
			c, _ := cat.Get(id)
			rows = append(rows, []string{id, c.Name, c.Area, strconv.Itoa(c.CreditHours)})
		}
		fmt.Fprintln(out, renderTable([]string{"COURSE", "NAME", "AREA", "HOURS"}, rows))
	case advisor.StatusYearRepeat:
		if len(res.Dependencies) > 0 {
			fmt.Fprintln(out)
			printWarning(out, "Failed courses blocking progress: %s", strings.Join(res.Dependencies, ", "))
		}
	}

	if len(res.Suggestions) > 0 {
		refs := refsByCourse(rec.SessionRefs)
		fmt.Fprintln(out)
		printInfo(out, "Suggestions (%d):", len(res.Suggestions))
		rows := make([][]string, 0, len(res.Suggestions))
		for _, s := range res.Suggestions {
			rows = append(rows, []string{
				refs[s.ID],
				strconv.Itoa(s.Rank),
				s.ID,
				s.Name,
				strconv.Itoa(s.Year),
				strconv.Itoa(s.Score),
				strings.Join(s.Reasons, "; "),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"REF", "RANK", "COURSE", "NAME", "YEAR", "SCORE", "REASONS"}, rows))
	}

	if len(res.Blocked) > 0 {
		fmt.Fprintln(out)
		printWarning(out, "Blocked (%d):", len(res.Blocked))
		for _, b := range res.Blocked {
			fmt.Fprintf(out, "  %s %s: needs %s\n", b.ID, b.Name, strings.Join(b.MissingPrerequisiteNames, ", "))
		}
	}

	if explain {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderMarkdown(explanationMarkdown(rec.Explanation)))
	}

	if rec.LogID != "" {
		fmt.Fprintln(out)
		printMuted(out, "Logged as %s", rec.LogID)
	}
	return nil
}

// refsByCourse inverts a session reference map.
func refsByCourse(refs map[string]string) map[string]string {
	out := make(map[string]string, len(refs))
	for ref, id := range refs {
		out[id] = ref
	}
	return out
}

// explanationMarkdown renders the audit trail of an inference as markdown.
func explanationMarkdown(exp advisor.Explanation) string {
	var sb strings.Builder
	sb.WriteString("## Explanation\n\n")
	fmt.Fprintf(&sb, "**Rules fired:** %d of %d\n\n", exp.TotalFired, exp.TotalRules)
	if len(exp.Explanations) == 0 {
		sb.WriteString("No rule fired.\n")
		return sb.String()
	}

	sb.WriteString("| Rule | Name | Category | Message |\n")
	sb.WriteString("|------|------|----------|---------|\n")
	for _, e := range exp.Explanations {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", e.RuleID, e.RuleName, e.Category, escapeCell(e.Message))
	}

	if keys := exp.FinalFacts.Keys(); len(keys) > 0 {
		sb.WriteString("\n### Final facts\n\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "- `%s`: %s\n", k, exp.FinalFacts[k])
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// outputEnrollments prints enrollments created by an enroll command.
func outputEnrollments(cmd *cobra.Command, studentID string, created []advisor.Enrollment, cat *advisor.Catalog) error {
	if outputJSON {
		if created == nil {
			created = []advisor.Enrollment{}
		}
		return outputAsJSON(cmd, created)
	}

	out := cmd.OutOrStdout()
	if len(created) == 0 {
		printWarning(out, "Student %s is already enrolled in every requested course.", studentID)
		return nil
	}
	printSuccess(out, "Enrolled %s in %d course(s):", studentID, len(created))
	for _, e := range created {
		fmt.Fprintf(out, "  %s %s (year %d)\n", e.CourseID, cat.Name(e.CourseID), e.AcademicYear)
	}
	return nil
}

func formatGrade(g *float64) string {
	if g == nil {
		return "-"
	}
	return strconv.FormatFloat(*g, 'f', 1, 64)
}
