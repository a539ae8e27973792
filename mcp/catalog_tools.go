package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/advisor"
)

// handleRules handles the advisor_rules tool call.
func (s *Server) handleRules(_ context.Context, args map[string]any) (*ToolResult, error) {
	category := ""
	if c, ok := args["category"].(string); ok {
		category = c
	}
	if category != "" && !isCategory(category) {
		return &ToolResult{
			Content: fmt.Sprintf("unknown category %q\nCategories: %s", category, categoryList()),
			IsError: true,
		}, nil
	}

	return &ToolResult{Content: formatRules(s.client.Rules(), advisor.Category(category))}, nil
}

// handleCurriculum handles the advisor_curriculum tool call.
func (s *Server) handleCurriculum(_ context.Context, args map[string]any) (*ToolResult, error) {
	year := 0
	if y, ok := args["year"].(float64); ok {
		year = int(y)
	}
	if year < 0 {
		return &ToolResult{Content: "year must be positive", IsError: true}, nil
	}

	cat := s.client.Catalog()
	courses := s.client.Curriculum(year)
	if len(courses) == 0 {
		return &ToolResult{Content: fmt.Sprintf("No courses in year %d.", year)}, nil
	}
	return &ToolResult{Content: formatCurriculum(cat, courses, year)}, nil
}

func isCategory(c string) bool {
	for _, known := range advisor.Categories {
		if string(known) == c {
			return true
		}
	}
	return false
}

func categoryList() string {
	names := make([]string, 0, len(advisor.Categories))
	for _, c := range advisor.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// formatRules lists rules grouped in evaluation order. An empty filter lists
// every category.
func formatRules(rules []advisor.RuleSummary, filter advisor.Category) string {
	var sb strings.Builder
	count := 0
	for _, cat := range advisor.Categories {
		if filter != "" && cat != filter {
			continue
		}
		var group []advisor.RuleSummary
		for _, r := range rules {
			if r.Category == cat {
				group = append(group, r)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n", cat)
		for _, r := range group {
			fmt.Fprintf(&sb, "  %s %s (priority %d)\n", r.ID, r.Name, r.Priority)
			fmt.Fprintf(&sb, "    %s\n", r.Description)
			count++
		}
		sb.WriteString("\n")
	}
	if count == 0 {
		return "No rules found."
	}
	return fmt.Sprintf("Rules (%d):\n\n%s", count, strings.TrimRight(sb.String(), "\n"))
}

func formatCurriculum(cat *advisor.Catalog, courses []advisor.Course, year int) string {
	var sb strings.Builder
	if year > 0 {
		fmt.Fprintf(&sb, "Curriculum %s, year %d (%d courses):\n", cat.Program(), year, len(courses))
	} else {
		fmt.Fprintf(&sb, "Curriculum %s (%d courses, %d credit hours):\n",
			cat.Program(), cat.Len(), cat.TotalCreditHours())
	}

	current := 0
	for _, c := range courses {
		if c.Year != current {
			current = c.Year
			fmt.Fprintf(&sb, "\nYear %d\n", current)
		}
		fmt.Fprintf(&sb, "  %-6s %s [%s, %dh]\n", c.ID, c.Name, c.Area, c.CreditHours)
		if c.HasPrerequisites() {
			fmt.Fprintf(&sb, "         requires %s\n", strings.Join(c.Prerequisites, ", "))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
