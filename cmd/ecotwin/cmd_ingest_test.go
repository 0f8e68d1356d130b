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

const activitiesJSONL = `{"id":"a1","user_id":"alice","type":"commute","carbon_estimate":3,"timestamp":"2026-05-01T08:00:00Z","location_id":"office"}
{"id":"a2","user_id":"bob","type":"meal","carbon_estimate":1.5,"timestamp":"2026-05-01T12:30:00+02:00"}
`

func TestReadActivities(t *testing.T) {
	activities, err := readActivities(strings.NewReader(activitiesJSONL))
	if err != nil {
		t.Fatalf("readActivities: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("len = %d, want 2", len(activities))
	}
	if activities[0].LocationID != "office" || activities[1].CarbonEstimate != 1.5 {
		t.Errorf("unexpected activities: %+v", activities)
	}

	_, err = readActivities(strings.NewReader(`{"id":"a1"}` + "\n{broken"))
	if err == nil || !strings.Contains(err.Error(), "record 2") {
		t.Errorf("err = %v, want error naming record 2", err)
	}
}

func TestIngestCmd_File(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	path := filepath.Join(tmpDir, "activities.jsonl")
	if err := os.WriteFile(path, []byte(activitiesJSONL), 0600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, tmpDir, "ingest", path, "--json")
	var got struct {
		IDs   []string `json:"ids"`
		Count int      `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Count != 2 || strings.Join(got.IDs, ",") != "a1,a2" {
		t.Errorf("got %+v, want ids a1,a2", got)
	}

	out = mustRun(t, tmpDir, "node", "get", "office", "--json")
	var node store.Node
	if err := json.Unmarshal([]byte(out), &node); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if node.Label != store.LabelLocation {
		t.Errorf("office label = %q, want Location", node.Label)
	}
}

func TestIngestCmd_Stdin(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(activitiesJSONL))
	cmd.SetArgs([]string{"--root", tmpDir, "ingest", "-"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ingest -: %v", err)
	}
	if !strings.Contains(stdout.String(), "Ingested 2 activities") {
		t.Errorf("unexpected output: %q", stdout.String())
	}
}

func TestIngestCmd_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	empty := filepath.Join(tmpDir, "empty.jsonl")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, tmpDir, "ingest", empty); err == nil {
		t.Error("expected error for empty input")
	}

	missingUser := filepath.Join(tmpDir, "bad.jsonl")
	if err := os.WriteFile(missingUser, []byte(`{"type":"commute","timestamp":"2026-05-01T08:00:00Z"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, tmpDir, "ingest", missingUser); err == nil {
		t.Error("expected validation error for missing user_id")
	}
}
