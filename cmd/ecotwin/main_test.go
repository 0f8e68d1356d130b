package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ecotwin/ecotwin/internal/store"
)

// isolateHome points HOME at a temp directory so tests never touch the real
// ~/.ecotwin, and clears ECOTWIN_* overrides from the environment.
// MUST be called for any test that opens a store.
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)
	for _, key := range []string{"ECOTWIN_STORE", "ECOTWIN_LOG_LEVEL", "ECOTWIN_METRICS", "ECOTWIN_TRACES", "ECOTWIN_MAX_DEPTH"} {
		t.Setenv(key, "")
	}
}

// runCLI executes the root command against root and returns stdout.
func runCLI(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--root", root}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// mustRun fails the test if the command errors.
func mustRun(t *testing.T, root string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, root, args...)
	if err != nil {
		t.Fatalf("ecotwin %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	for _, flag := range []string{"json", "root", "global"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}

	want := []string{"version", "init", "node", "connect", "simulate", "link", "unlink",
		"members", "sessions", "share", "release", "whatif", "ingest", "mcp-server", "config"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version", "--json")

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestInitCmd_CreatesStateDir(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out := mustRun(t, tmpDir, "init", "--json")

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["scope"] != "local" {
		t.Errorf("scope = %q, want local", got["scope"])
	}
	if got["backend"] != "sqlite" {
		t.Errorf("backend = %q, want sqlite", got["backend"])
	}
	if _, err := os.Stat(filepath.Join(tmpDir, store.StateDirName, "ecotwin.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestInitCmd_Global(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	mustRun(t, tmpDir, "init", "--global")

	if _, err := os.Stat(filepath.Join(tmpDir, "home", store.StateDirName)); err != nil {
		t.Errorf("global state dir not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, store.StateDirName)); !os.IsNotExist(err) {
		t.Errorf("local state dir should not exist, stat err = %v", err)
	}
}

func TestOpenApp_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	t.Setenv("ECOTWIN_STORE", "cassandra")

	_, err := runCLI(t, tmpDir, "init")
	if err == nil || !strings.Contains(err.Error(), "invalid store backend") {
		t.Errorf("err = %v, want invalid store backend", err)
	}
}
