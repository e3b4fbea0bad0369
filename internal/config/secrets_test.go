package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestResolveSecret_EnvOnly(t *testing.T) {
	t.Setenv("TEST_ASSEMBLY_SECRET", "env-value")

	value, err := ResolveSecret("TEST_ASSEMBLY_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "env-value" {
		t.Errorf("got %q, want %q", value, "env-value")
	}
}

func TestResolveSecret_FileWinsAndIsTrimmed(t *testing.T) {
	t.Setenv("TEST_ASSEMBLY_SECRET", "env-value")
	t.Setenv("TEST_ASSEMBLY_SECRET_FILE", writeSecret(t, "  file-value \n\n"))

	value, err := ResolveSecret("TEST_ASSEMBLY_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "file-value" {
		t.Errorf("got %q, want %q", value, "file-value")
	}
}

func TestResolveSecret_Unset(t *testing.T) {
	t.Setenv("TEST_ASSEMBLY_SECRET", "")
	t.Setenv("TEST_ASSEMBLY_SECRET_FILE", "")

	value, err := ResolveSecret("TEST_ASSEMBLY_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("got %q, want empty string", value)
	}
}

func TestResolveSecret_EmptyFile(t *testing.T) {
	t.Setenv("TEST_ASSEMBLY_SECRET_FILE", writeSecret(t, ""))

	value, err := ResolveSecret("TEST_ASSEMBLY_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("got %q, want empty string", value)
	}
}

func TestResolveSecret_FileNotFound(t *testing.T) {
	t.Setenv("TEST_ASSEMBLY_SECRET_FILE", "/nonexistent/path/to/secret")

	if _, err := ResolveSecret("TEST_ASSEMBLY_SECRET"); err == nil {
		t.Error("expected error when file does not exist")
	}
}
