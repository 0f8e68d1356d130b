package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// ImportNodesFromJSONL imports nodes from a JSONL file into the SQLite database.
// Labels go through the same allowlist as UpsertNode.
func (s *SQLiteGraphStore) ImportNodesFromJSONL(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No file is fine
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := newJSONLScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var node Node
		if err := json.Unmarshal(line, &node); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to parse line %d: %v\n", lineNum, err)
			continue
		}
		if err := checkLabel(node.Label); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if node.Properties == nil {
			node.Properties = make(map[string]any)
		}
		node.Properties["id"] = node.ID
		id, props, err := normalizeProperties(node.Properties)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, err := s.upsertNodeTx(ctx, tx, id, node.Label, props); err != nil {
			return fmt.Errorf("failed to import node %s: %w", id, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return tx.Commit()
}

// ImportEdgesFromJSONL imports edges from a JSONL file. Nodes must be imported first.
func (s *SQLiteGraphStore) ImportEdgesFromJSONL(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := newJSONLScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var edge Edge
		if err := json.Unmarshal(line, &edge); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to parse line %d: %v\n", lineNum, err)
			continue
		}
		if err := checkRelType(edge.Type); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if err := checkWeight(edge.Weight); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if err := s.upsertEdgeTx(ctx, tx, edge.Source, edge.Target, edge.Type, edge.Weight, s.now().UTC()); err != nil {
			return fmt.Errorf("failed to import edge %s->%s: %w", edge.Source, edge.Target, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return tx.Commit()
}

func newJSONLScanner(f *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024) // 1MB max line length
	return scanner
}

// writeJSONL writes one JSON document per line, atomically via temp file + rename.
func writeJSONL[T any](path string, items []T) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
