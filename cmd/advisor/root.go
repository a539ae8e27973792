package main

import (
	"fmt"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var (
	cfgDBPath     string
	cfgProgram    string
	cfgCurriculum string
	cfgStrict     bool
	cfgDebug      bool
	outputJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Advisor - course enrollment recommendations",
	Long: `Advisor recommends which courses a student should enroll in next.

It reasons over the curriculum and the student's course history with a
forward-chaining rule engine and explains every recommendation it makes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db", "", "Path to the student database (default: derived from --program)")
	rootCmd.PersistentFlags().StringVar(&cfgProgram, "program", "", "Program whose database is used (default: $ADVISOR_PROGRAM or 'default')")
	rootCmd.PersistentFlags().StringVar(&cfgCurriculum, "curriculum", "", "YAML or JSON curriculum file (default: bundled curriculum)")
	rootCmd.PersistentFlags().BoolVar(&cfgStrict, "strict", false, "Reject curricula with unknown prerequisites or cycles")
	rootCmd.PersistentFlags().BoolVar(&cfgDebug, "debug", false, "Log every inference to stderr")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(consultCmd)
	rootCmd.AddCommand(studentCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() advisor.Config {
	cfg := advisor.ConfigFromEnv()

	if cfgDBPath != "" {
		cfg.LocalPath = cfgDBPath
	}
	if cfgProgram != "" {
		cfg.Program = cfgProgram
	}
	if cfgCurriculum != "" {
		cfg.CurriculumPath = cfgCurriculum
	}
	if cfgStrict {
		cfg.StrictCurriculum = true
	}
	if cfgDebug {
		cfg.Debug = true
	}

	return cfg
}

// newClient opens a client from flags and environment. Callers close it.
func newClient() (*advisor.Client, error) {
	client, err := advisor.New(loadConfig())
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}
