// Package store resolves program databases for the advisor and holds the
// schema migrations.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultProgram is the program used when none is configured.
const DefaultProgram = "default"

// Program ID validation errors.
var (
	// ErrInvalidProgramID indicates the program ID format is invalid.
	ErrInvalidProgramID = errors.New("invalid program ID: must be lowercase alphanumeric with hyphens, at most 64 characters")

	// ErrReservedProgramID indicates the program ID is reserved and cannot be created.
	ErrReservedProgramID = errors.New("reserved program ID: cannot create programs with reserved IDs")
)

// programIDRegex: lowercase alphanumeric and hyphens, 1-64 characters, no
// leading or trailing hyphen.
var programIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

var reservedProgramIDs = map[string]bool{
	DefaultProgram: true,
	"_system":      true,
}

// ValidateProgramID validates a program ID. Reserved IDs pass: they can be
// targeted, only not created.
func ValidateProgramID(id string) error {
	if id == "" || len(id) > 64 {
		return ErrInvalidProgramID
	}
	if reservedProgramIDs[id] {
		return nil
	}
	if strings.Contains(id, "--") {
		return ErrInvalidProgramID
	}
	if !programIDRegex.MatchString(id) {
		return ErrInvalidProgramID
	}
	return nil
}

// IsReservedProgramID returns true if the program ID is reserved.
func IsReservedProgramID(id string) bool {
	return reservedProgramIDs[id]
}

// ValidateProgramIDForCreation rejects invalid and reserved IDs.
func ValidateProgramIDForCreation(id string) error {
	if err := ValidateProgramID(id); err != nil {
		return err
	}
	if IsReservedProgramID(id) {
		return ErrReservedProgramID
	}
	return nil
}
