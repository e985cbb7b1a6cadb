package userconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelectedProfile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	got, err := GetSelectedProfile(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected no selection, got %q", got)
	}

	if err := SetSelectedProfile(dir, "staging"); err != nil {
		t.Fatalf("SetSelectedProfile failed: %v", err)
	}

	got, err = GetSelectedProfile(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "staging" {
		t.Errorf("expected staging, got %q", got)
	}
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(GetConfigPath(dir), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected error for corrupt config, got nil")
	}
}
