package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultLegacyDBPath returns the single-database location used before
// per-program databases: ./data/advisor.db relative to the current directory.
func DefaultLegacyDBPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "data", DBFileName)
}

// MigrationResult contains the result of a migration operation.
type MigrationResult struct {
	// Migrated is true if migration occurred, false if no migration needed.
	Migrated bool
	// SourcePath is the path of the database that was migrated (empty if not migrated).
	SourcePath string
	// DestPath is the path of the new database (empty if not migrated).
	DestPath string
}

// MigrateExistingDatabase copies a single-database install into the default
// program.
//
//  1. If the default program database already exists, nothing happens.
//  2. The source is envPath (ADVISOR_DB_PATH) when set, else DefaultLegacyDBPath.
//  3. An existing source is copied to programRoot/default/advisor.db.
func MigrateExistingDatabase(envPath, programRoot string) (result MigrationResult, err error) {
	defaultDBPath := ProgramDBPathIn(programRoot, DefaultProgram)
	if _, err := os.Stat(defaultDBPath); err == nil {
		return MigrationResult{Migrated: false}, nil
	}

	sourcePath := envPath
	if sourcePath == "" {
		sourcePath = DefaultLegacyDBPath()
	}

	if _, err := os.Stat(sourcePath); os.IsNotExist(err) {
		return MigrationResult{Migrated: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(defaultDBPath), 0755); err != nil {
		return MigrationResult{Migrated: false}, fmt.Errorf("create default program directory: %w", err)
	}

	if err := copyFile(sourcePath, defaultDBPath); err != nil {
		return MigrationResult{Migrated: false}, fmt.Errorf("copy database: %w", err)
	}

	return MigrationResult{
		Migrated:   true,
		SourcePath: sourcePath,
		DestPath:   defaultDBPath,
	}, nil
}

// copyFile copies src to dst and syncs it. A partial dst is removed on failure.
func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(dst)
	if err != nil {
		return err
	}

	success := false
	defer func() {
		dest.Close()
		if !success {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(dest, source); err != nil {
		return err
	}

	if err := dest.Sync(); err != nil {
		return err
	}

	success = true
	return nil
}
