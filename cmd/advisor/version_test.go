package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestVersion_Human_ShowsVersionInfo(t *testing.T) {
	defer testEnv(t)()

	out := mustRun(t, "version")
	for _, want := range []string{"advisor dev", "commit:", "built:", "go:", "os:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestVersion_JSON_ReturnsValidJSON(t *testing.T) {
	defer testEnv(t)()

	out := mustRun(t, "version", "--json")

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output should be valid JSON: %v", err)
	}
	for _, field := range []string{"version", "commit", "date", "go", "os", "arch"} {
		if _, ok := result[field]; !ok {
			t.Errorf("JSON should have %q field", field)
		}
	}
	if result["version"] != "dev" {
		t.Errorf("dev build JSON should have version='dev', got: %v", result["version"])
	}
}

func TestVersion_BannerOnlyOnTTY(t *testing.T) {
	defer testEnv(t)()

	out := mustRun(t, "version", "--banner")
	if strings.Contains(out, "ADVISOR") {
		t.Errorf("banner should not print off a terminal:\n%s", out)
	}
}

func TestRenderBanner(t *testing.T) {
	banner := renderBannerWithTagline()
	if !strings.Contains(banner, "ADVISOR") {
		t.Error("banner should contain the title")
	}
	if !strings.Contains(banner, version) {
		t.Error("banner should contain the version")
	}
}
