package store_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/advisor/internal/store"
)

func TestDefaultProgramRoot(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := store.DefaultProgramRoot()
	want := filepath.Join(home, ".advisor", "programs")
	if got != want {
		t.Errorf("DefaultProgramRoot() = %q, want %q", got, want)
	}
}

func TestProgramDBPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := store.ProgramDBPath("informatics")
	want := filepath.Join(home, ".advisor", "programs", "informatics", "advisor.db")
	if got != want {
		t.Errorf("ProgramDBPath() = %q, want %q", got, want)
	}
}

func TestProgramDBPathIn(t *testing.T) {
	tests := []struct {
		root    string
		program string
		want    string
	}{
		{"/data", "default", filepath.Join("/data", "default", "advisor.db")},
		{"/data", "informatics", filepath.Join("/data", "informatics", "advisor.db")},
	}
	for _, tt := range tests {
		got := store.ProgramDBPathIn(tt.root, tt.program)
		if got != tt.want {
			t.Errorf("ProgramDBPathIn(%q, %q) = %q, want %q", tt.root, tt.program, got, tt.want)
		}
		if !strings.HasSuffix(got, store.DBFileName) {
			t.Errorf("ProgramDBPathIn() = %q, should end with %s", got, store.DBFileName)
		}
	}
}
