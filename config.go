package advisor

import (
	"context"
	"os"
	"strconv"

	"github.com/hyperengineering/advisor/internal/store"
)

// Config configures the advisor client.
type Config struct {
	// LocalPath is the path to the local SQLite database.
	// If empty, it is derived from Program.
	LocalPath string

	// Program is the program whose database is used.
	// If empty, resolved as explicit > ADVISOR_PROGRAM env > "default".
	Program string

	// CurriculumPath is a YAML or JSON curriculum document.
	// If empty, the bundled curriculum is used.
	CurriculumPath string

	// StrictCurriculum rejects curricula with unknown prerequisites or
	// prerequisite cycles.
	StrictCurriculum bool

	// Debug enables debug-level structured logging of every inference.
	Debug bool

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string
}

// DefaultConfig returns a Config with sensible defaults.
// Program defaults to "default", and LocalPath is derived from Program.
func DefaultConfig() Config {
	return Config{
		Program:   store.DefaultProgram,
		LocalPath: store.ProgramDBPath(store.DefaultProgram),
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	ADVISOR_DB_PATH            → LocalPath
//	ADVISOR_PROGRAM            → Program
//	ADVISOR_CURRICULUM         → CurriculumPath
//	ADVISOR_STRICT_CURRICULUM  → StrictCurriculum (parsed as a bool)
//	ADVISOR_DEBUG              → Debug (any non-empty value enables)
//	ADVISOR_DEBUG_LOG          → DebugLogPath
func ConfigFromEnv() Config {
	strict, _ := strconv.ParseBool(os.Getenv("ADVISOR_STRICT_CURRICULUM"))
	return Config{
		LocalPath:        os.Getenv("ADVISOR_DB_PATH"),
		Program:          os.Getenv(store.ProgramEnv),
		CurriculumPath:   os.Getenv("ADVISOR_CURRICULUM"),
		StrictCurriculum: strict,
		Debug:            os.Getenv("ADVISOR_DEBUG") != "",
		DebugLogPath:     os.Getenv("ADVISOR_DEBUG_LOG"),
	}
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Program != "" {
		if err := store.ValidateProgramID(c.Program); err != nil {
			return &ValidationError{Field: "Program", Message: err.Error()}
		}
	}

	if c.CurriculumPath != "" {
		info, err := os.Stat(c.CurriculumPath)
		if err != nil {
			return &ValidationError{Field: "CurriculumPath", Message: err.Error()}
		}
		if info.IsDir() {
			return &ValidationError{Field: "CurriculumPath", Message: "must be a file"}
		}
	}

	return nil
}

// WithDefaults fills in default values for unset fields.
// Program resolution: explicit Program field > ADVISOR_PROGRAM env > "default".
// LocalPath is derived from the resolved Program if not explicitly set.
//
// When the program resolves to "default" and no default database exists yet,
// an older single-database install (ADVISOR_DB_PATH or ./data/advisor.db) is
// copied into place and its source path recorded in metadata.
func (c Config) WithDefaults() Config {
	if c.Program == "" {
		resolved, err := store.ResolveProgram("")
		if err == nil {
			c.Program = resolved
		} else {
			c.Program = store.DefaultProgram
		}
	}

	// Best-effort: a failed migration leaves a fresh database.
	if c.Program == store.DefaultProgram && c.LocalPath == "" {
		_ = migrateAndSetMetadata(os.Getenv("ADVISOR_DB_PATH"), store.DefaultProgramRoot())
	}

	if c.LocalPath == "" {
		c.LocalPath = store.ProgramDBPath(c.Program)
	}

	return c
}

// migrateAndSetMetadata copies a legacy database into the default program and
// records where it came from.
func migrateAndSetMetadata(envPath, programRoot string) error {
	result, err := store.MigrateExistingDatabase(envPath, programRoot)
	if err != nil {
		return err
	}

	if !result.Migrated {
		return nil
	}

	newStore, err := NewStore(result.DestPath)
	if err != nil {
		return err
	}
	defer func() { _ = newStore.Close() }()

	return newStore.SetMetadata(context.Background(), MetaMigratedFrom, result.SourcePath)
}
