package store

import (
	"os"
	"path/filepath"
)

// DBFileName is the database file inside each program directory.
const DBFileName = "advisor.db"

// DefaultProgramRoot returns the root directory for all program databases.
// Defaults to ~/.advisor/programs, falls back to ./.advisor/programs if the
// home dir is unavailable.
func DefaultProgramRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".advisor", "programs")
	}
	return filepath.Join(home, ".advisor", "programs")
}

// ProgramDBPath returns the full path to a program's database file.
// Example: ProgramDBPath("informatics") -> ~/.advisor/programs/informatics/advisor.db
func ProgramDBPath(programID string) string {
	return ProgramDBPathIn(DefaultProgramRoot(), programID)
}

// ProgramDBPathIn is ProgramDBPath under an explicit root.
func ProgramDBPathIn(root, programID string) string {
	return filepath.Join(root, programID, DBFileName)
}
