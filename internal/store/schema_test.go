package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}

	// Re-running on an initialized database is a no-op
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
}

func TestInitSchema_RejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatalf("insert version: %v", err)
	}

	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("InitSchema() error = %v, want newer-version error", err)
	}
}

func TestSchema_ChecksRejectUnknownLabelsAndTypes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO nodes (id, label, properties, created_at, updated_at) VALUES ('x', 'Admin', '{}', '', '')`)
	if err == nil {
		t.Error("nodes CHECK accepted label Admin")
	}

	for _, id := range []string{"a", "b"} {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO nodes (id, label, properties, created_at, updated_at) VALUES (?, 'User', '{}', '', '')`, id); err != nil {
			t.Fatalf("insert node %s: %v", id, err)
		}
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO edges (source, target, rel_type, weight, created_at, updated_at) VALUES ('a', 'b', 'OWNS', 1, '', '')`)
	if err == nil {
		t.Error("edges CHECK accepted rel_type OWNS")
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO edges (source, target, rel_type, weight, created_at, updated_at) VALUES ('a', 'b', 'IMPACTS', -1, '', '')`)
	if err == nil {
		t.Error("edges CHECK accepted negative weight")
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO edges (source, target, rel_type, weight, created_at, updated_at) VALUES ('a', 'missing', 'IMPACTS', 1, '', '')`)
	if err == nil {
		t.Error("edges foreign key accepted missing target")
	}
}

func TestResetSchema(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO nodes (id, label, properties, created_at, updated_at) VALUES ('a', 'User', '{}', '', '')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := ResetSchema(ctx, db); err != nil {
		t.Fatalf("ResetSchema() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("nodes after reset = %d, want 0", count)
	}
}
