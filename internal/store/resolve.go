package store

import (
	"fmt"
	"os"
)

// ProgramEnv is the environment variable naming the active program.
const ProgramEnv = "ADVISOR_PROGRAM"

// ResolveProgram determines the program ID to use.
// Priority: explicit > ADVISOR_PROGRAM env > "default"
func ResolveProgram(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateProgramID(explicit); err != nil {
			return "", fmt.Errorf("invalid program ID %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv(ProgramEnv); env != "" {
		if err := ValidateProgramID(env); err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", ProgramEnv, env, err)
		}
		return env, nil
	}

	return DefaultProgram, nil
}
