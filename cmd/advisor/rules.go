package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rules the advisor reasons with",
	Long: `List the rule base in evaluation order.

Categories run in order: year_repeat, auto_enroll, block, eligibility,
heuristic. Within a category, higher priority rules run first.

Example:
  advisor rules
  advisor rules --category heuristic`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

var rulesCategory string

func init() {
	rulesCmd.Flags().StringVar(&rulesCategory, "category", "", "Only list rules of this category")
}

func runRules(cmd *cobra.Command, args []string) error {
	filter := advisor.Category(strings.ToLower(rulesCategory))
	if filter != "" && !isCategory(filter) {
		return fmt.Errorf("unknown category %q", rulesCategory)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	rules := make([]advisor.RuleSummary, 0)
	for _, r := range client.Rules() {
		if filter == "" || r.Category == filter {
			rules = append(rules, r)
		}
	}
	if outputJSON {
		return outputAsJSON(cmd, rules)
	}

	out := cmd.OutOrStdout()
	printInfo(out, "Rules (%d):", len(rules))
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{r.ID, r.Name, string(r.Category), strconv.Itoa(r.Priority), r.Description})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "NAME", "CATEGORY", "PRIORITY", "DESCRIPTION"}, rows))
	return nil
}

func isCategory(c advisor.Category) bool {
	for _, known := range advisor.Categories {
		if known == c {
			return true
		}
	}
	return false
}
