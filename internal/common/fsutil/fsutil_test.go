package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("empty path: %q %v", got, err)
	}
	if got, err := ExpandHome("/abs/path"); err != nil || got != "/abs/path" {
		t.Fatalf("absolute path should pass through: %q %v", got, err)
	}
	if got, err := ExpandHome("~"); err != nil || got != home {
		t.Fatalf("bare tilde: %q %v", got, err)
	}
	want := filepath.Join(home, "models", "llm")
	if got, err := ExpandHome("~/models/llm"); err != nil || got != want {
		t.Fatalf("tilde prefix: %q %v, want %q", got, err, want)
	}
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsRegularFile(file) {
		t.Fatal("expected regular file")
	}
	if IsRegularFile(dir) {
		t.Fatal("directory is not a regular file")
	}
	if IsRegularFile(filepath.Join(dir, "missing")) {
		t.Fatal("missing path is not a regular file")
	}
}
