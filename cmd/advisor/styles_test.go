package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hyperengineering/advisor"
)

// setMockTTY sets the TTY override for tests and returns a cleanup function
// that restores real detection.
func setMockTTY(value bool) func() {
	testIsTTYMutex.Lock()
	testIsTTYOverride = &value
	testIsTTYMutex.Unlock()
	return func() {
		testIsTTYMutex.Lock()
		testIsTTYOverride = nil
		testIsTTYMutex.Unlock()
	}
}

func TestRenderTable_TTY_WithBorders(t *testing.T) {
	defer setMockTTY(true)()

	result := renderTable([]string{"ID", "NAME"}, [][]string{{"ALG1", "Algorithms and Logic"}, {"PRG2", "Programming I"}})

	for _, want := range []string{"ID", "NAME", "ALG1", "Programming I"} {
		if !strings.Contains(result, want) {
			t.Errorf("table should contain %q", want)
		}
	}
	if !strings.ContainsAny(result, "─│╭╮╰╯├┼┤┬┴") {
		t.Error("TTY output should contain border characters")
	}
}

func TestRenderTable_NonTTY_AlignedColumns(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"ID", "NAME"}, [][]string{{"ALG1", "Algorithms"}, {"X", "Short"}})

	lines := strings.Split(result, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), result)
	}
	if strings.ContainsAny(result, "─│╭╮╰╯") {
		t.Error("plain output should not contain border characters")
	}
	col := strings.Index(lines[0], "NAME")
	for _, line := range lines[1:] {
		if len(line) <= col || line[col-1] != ' ' || line[col] == ' ' {
			t.Errorf("column misaligned in %q", line)
		}
	}
}

func TestRenderTable_ShortRows(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"A", "B", "C"}, [][]string{{"1"}})
	if !strings.HasPrefix(strings.Split(result, "\n")[1], "1") {
		t.Errorf("short row should render: %q", result)
	}
}

func TestRenderPanel(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		defer setMockTTY(false)()
		got := renderPanel("Title", "body")
		if got != "Title\n-----\nbody" {
			t.Errorf("renderPanel() = %q", got)
		}
	})
	t.Run("styled", func(t *testing.T) {
		defer setMockTTY(true)()
		got := renderPanel("Title", "body")
		if !strings.Contains(got, "Title") || !strings.Contains(got, "body") {
			t.Errorf("panel lost content: %q", got)
		}
		if !strings.ContainsAny(got, "╭╮╰╯") {
			t.Error("styled panel should have a rounded border")
		}
	})
}

func TestPrintHelpers_NonTTY(t *testing.T) {
	defer setMockTTY(false)()

	tests := []struct {
		name  string
		print func(*bytes.Buffer)
		want  string
	}{
		{"success", func(b *bytes.Buffer) { printSuccess(b, "saved %s", "s1") }, iconSuccess + " saved s1\n"},
		{"error", func(b *bytes.Buffer) { printError(b, "failed") }, iconError + " failed\n"},
		{"warning", func(b *bytes.Buffer) { printWarning(b, "careful") }, iconWarning + " careful\n"},
		{"info", func(b *bytes.Buffer) { printInfo(b, "note") }, iconInfo + " note\n"},
		{"muted", func(b *bytes.Buffer) { printMuted(b, "quiet") }, "quiet\n"},
		{"field", func(b *bytes.Buffer) { printField(b, "Year:", "%d", 2) }, "Year: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestHasMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"## Explanation", true},
		{"**bold**", true},
		{"| a | b |", true},
		{"- item", true},
		{"plain sentence", false},
	}
	for _, tt := range tests {
		if got := hasMarkdown(tt.in); got != tt.want {
			t.Errorf("hasMarkdown(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRenderMarkdown_NonTTY_Passthrough(t *testing.T) {
	defer setMockTTY(false)()

	in := "## Explanation\n\n**Rules fired:** 1 of 11\n"
	if got := renderMarkdown(in); got != in {
		t.Errorf("non-TTY markdown should pass through, got %q", got)
	}
}

func TestRenderMarkdown_TTY_Renders(t *testing.T) {
	defer setMockTTY(true)()

	got := renderMarkdown("## Explanation\n\n**Rules fired:** 1 of 11\n")
	if got == "" {
		t.Fatal("rendered markdown is empty")
	}
	if !strings.Contains(got, "Rules fired:") {
		t.Errorf("rendered markdown lost content: %q", got)
	}
}

func TestExplanationMarkdown(t *testing.T) {
	exp := advisor.Explanation{
		TotalRules: 11,
		TotalFired: 1,
		Explanations: []advisor.ExplanationEntry{{
			RuleID:   "R4",
			RuleName: "Missing prerequisite block",
			Category: advisor.CategoryBlock,
			Message:  "Blocked: missing a|b",
		}},
		FinalFacts: advisor.Snapshot{"student_year": advisor.IntValue(2)},
	}

	md := explanationMarkdown(exp)
	for _, want := range []string{"**Rules fired:** 1 of 11", "| R4 |", `a\|b`, "`student_year`: 2"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	empty := explanationMarkdown(advisor.Explanation{TotalRules: 11})
	if !strings.Contains(empty, "No rule fired.") {
		t.Errorf("empty explanation should say so:\n%s", empty)
	}
}

func TestStatusStyle_DistinguishesStatuses(t *testing.T) {
	if statusStyle("year_repeat").GetForeground() == statusStyle("auto_enroll").GetForeground() {
		t.Error("year_repeat and auto_enroll should not share a color")
	}
}
