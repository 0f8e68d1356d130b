package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ecotwin/ecotwin/internal/config"
)

func TestGetSetConfigValue_RoundTrip(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"store.backend", "memory", "memory"},
		{"store.neo4j.uri", "bolt://localhost:7687", "bolt://localhost:7687"},
		{"store.neo4j.password", "hunter2", "(set)"},
		{"propagation.max_depth", "4", 4},
		{"propagation.magnitude_floor", "0.01", 0.01},
		{"propagation.max_visits", "500", 500},
		{"logging.level", "debug", "debug"},
		{"telemetry.metrics", "prometheus", "prometheus"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue: %v", err)
			}
			got, ok := getConfigValue(cfg, tt.key)
			if !ok || got != tt.want {
				t.Errorf("getConfigValue(%q) = %v, %v; want %v", tt.key, got, ok, tt.want)
			}
		})
	}

	if err := setConfigValue(cfg, "propagation.max_depth", "deep"); err == nil {
		t.Error("expected error for non-integer max_depth")
	}
	if err := setConfigValue(cfg, "llm.provider", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, ok := getConfigValue(cfg, "llm.provider"); ok {
		t.Error("unknown key should not be found")
	}
}

func TestConfigSetCmd_Persists(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	mustRun(t, tmpDir, "config", "set", "propagation.max_depth", "3")

	out := mustRun(t, tmpDir, "config", "get", "propagation.max_depth", "--json")
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["value"] != 3.0 {
		t.Errorf("value = %v, want 3", got["value"])
	}
}

func TestConfigSetCmd_KeepsEnvReferences(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	t.Setenv("NEO4J_PASSWORD", "s3cret")

	mustRun(t, tmpDir, "config", "set", "store.neo4j.password", "${NEO4J_PASSWORD}")
	mustRun(t, tmpDir, "config", "set", "store.neo4j.database", "twins")

	data, err := os.ReadFile(filepath.Join(tmpDir, "home", ".ecotwin", "config.yaml"))
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if !strings.Contains(string(data), "${NEO4J_PASSWORD}") || strings.Contains(string(data), "s3cret") {
		t.Errorf("config should keep the env reference, got:\n%s", data)
	}
}

func TestConfigSetCmd_RejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	_, err := runCLI(t, tmpDir, "config", "set", "store.backend", "neo4j")
	if err == nil || !strings.Contains(err.Error(), "store.neo4j.uri is required") {
		t.Errorf("err = %v, want neo4j uri required", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "home", ".ecotwin", "config.yaml")); !os.IsNotExist(err) {
		t.Error("invalid config should not be written")
	}
}

func TestConfigListCmd_RedactsPassword(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	t.Setenv("ECOTWIN_NEO4J_PASSWORD", "s3cret")

	for _, args := range [][]string{{"config", "list"}, {"config", "list", "--json"}} {
		out := mustRun(t, tmpDir, args...)
		if strings.Contains(out, "s3cret") {
			t.Errorf("%v leaked the password:\n%s", args, out)
		}
	}
}

func TestValueOrDefault(t *testing.T) {
	if got := valueOrDefault("", "(not set)"); got != "(not set)" {
		t.Errorf("got %q", got)
	}
	if got := valueOrDefault("x", "(not set)"); got != "x" {
		t.Errorf("got %q", got)
	}
}
