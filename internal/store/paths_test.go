package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalStatePath(t *testing.T) {
	got, err := GlobalStatePath()
	if err != nil {
		t.Fatalf("GlobalStatePath() error = %v", err)
	}
	if !strings.HasSuffix(got, StateDirName) {
		t.Errorf("GlobalStatePath() = %v, should end with %s", got, StateDirName)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("GlobalStatePath() = %v, should be absolute path", got)
	}
	homeDir, _ := os.UserHomeDir()
	if !strings.HasPrefix(got, homeDir) {
		t.Errorf("GlobalStatePath() = %v, should start with home directory %v", got, homeDir)
	}
}

func TestLocalStatePath(t *testing.T) {
	tests := []struct {
		name        string
		projectRoot string
		want        string
	}{
		{"absolute root", "/home/user/project", filepath.Join("/home/user/project", ".ecotwin")},
		{"relative root", "project", filepath.Join("project", ".ecotwin")},
		{"current dir", ".", ".ecotwin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalStatePath(tt.projectRoot); got != tt.want {
				t.Errorf("LocalStatePath(%q) = %v, want %v", tt.projectRoot, got, tt.want)
			}
		})
	}
}

func TestEnsureStateDir(t *testing.T) {
	root := t.TempDir()

	dir, err := EnsureStateDir(root)
	if err != nil {
		t.Fatalf("EnsureStateDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("state dir %s not created: %v", dir, err)
	}

	// Idempotent
	if _, err := EnsureStateDir(root); err != nil {
		t.Errorf("second EnsureStateDir() error = %v", err)
	}
}
