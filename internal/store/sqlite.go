package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteGraphStore implements GraphStore using SQLite for persistence.
// It stores nodes and edges in a SQLite database and exports to JSONL on Sync().
type SQLiteGraphStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	stateDir  string
	dbPath    string
	nodesFile string
	edgesFile string
	now       func() time.Time
}

// NewSQLiteGraphStore creates a new SQLiteGraphStore rooted at projectRoot.
// It creates the database at .ecotwin/ecotwin.db and imports existing JSONL
// files when the database is empty.
func NewSQLiteGraphStore(projectRoot string) (*SQLiteGraphStore, error) {
	stateDir := LocalStatePath(projectRoot)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", StateDirName, err)
	}

	dbPath := filepath.Join(stateDir, "ecotwin.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteGraphStore{
		db:        db,
		stateDir:  stateDir,
		dbPath:    dbPath,
		nodesFile: filepath.Join(stateDir, "nodes.jsonl"),
		edgesFile: filepath.Join(stateDir, "edges.jsonl"),
		now:       time.Now,
	}

	if err := s.autoImport(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to auto-import JSONL: %w", err)
	}

	return s, nil
}

// autoImport loads nodes.jsonl and edges.jsonl into an empty database.
func (s *SQLiteGraphStore) autoImport(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count nodes: %w", err)
	}
	if count > 0 {
		return nil
	}

	if err := s.ImportNodesFromJSONL(ctx, s.nodesFile); err != nil {
		return fmt.Errorf("failed to import nodes: %w", err)
	}
	if err := s.ImportEdgesFromJSONL(ctx, s.edgesFile); err != nil {
		return fmt.Errorf("failed to import edges: %w", err)
	}
	return nil
}

// UpsertNode merges properties onto the node keyed by properties["id"].
func (s *SQLiteGraphStore) UpsertNode(ctx context.Context, label Label, properties map[string]any) (Node, error) {
	if err := checkLabel(label); err != nil {
		return Node{}, err
	}
	id, props, err := normalizeProperties(properties)
	if err != nil {
		return Node{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Node{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	node, err := s.upsertNodeTx(ctx, tx, id, label, props)
	if err != nil {
		return Node{}, err
	}

	if err := tx.Commit(); err != nil {
		return Node{}, fmt.Errorf("failed to commit node %s: %w", id, err)
	}
	return node, nil
}

func (s *SQLiteGraphStore) upsertNodeTx(ctx context.Context, tx *sql.Tx, id string, label Label, props map[string]any) (Node, error) {
	now := s.now().UTC()

	existing, err := scanNode(tx.QueryRowContext(ctx,
		`SELECT id, label, properties, created_at, updated_at FROM nodes WHERE id = ?`, id))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Node{}, fmt.Errorf("failed to read node %s: %w", id, err)
	}

	node := Node{ID: id, Label: label, Properties: props, CreatedAt: now, UpdatedAt: now}
	if existing != nil {
		if existing.Label != label {
			return Node{}, fmt.Errorf("%w: %s is %s, not %s", ErrLabelConflict, id, existing.Label, label)
		}
		node.Properties = mergeProperties(existing.Properties, props)
		node.CreatedAt = existing.CreatedAt
	}

	propsJSON, err := json.Marshal(node.Properties)
	if err != nil {
		return Node{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, label, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET properties = excluded.properties, updated_at = excluded.updated_at
	`, node.ID, string(node.Label), string(propsJSON), formatTime(node.CreatedAt), formatTime(node.UpdatedAt))
	if err != nil {
		return Node{}, fmt.Errorf("failed to upsert node %s: %w", id, err)
	}
	return node, nil
}

// GetNode retrieves a node by ID. Returns nil if not found.
func (s *SQLiteGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, err := scanNode(s.db.QueryRowContext(ctx,
		`SELECT id, label, properties, created_at, updated_at FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return node, nil
}

// UpsertEdge creates the edge or overwrites its weight.
func (s *SQLiteGraphStore) UpsertEdge(ctx context.Context, sourceID, targetID string, relType RelType, weight float64) error {
	if err := checkRelType(relType); err != nil {
		return err
	}
	if err := checkWeight(weight); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsertEdgeTx(ctx, tx, sourceID, targetID, relType, weight, s.now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edge: %w", err)
	}
	return nil
}

func (s *SQLiteGraphStore) upsertEdgeTx(ctx context.Context, tx *sql.Tx, sourceID, targetID string, relType RelType, weight float64, now time.Time) error {
	for _, endpoint := range []struct{ role, id string }{{"source", sourceID}, {"target", targetID}} {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, endpoint.id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s node %s not found", ErrDanglingReference, endpoint.role, endpoint.id)
		}
		if err != nil {
			return fmt.Errorf("failed to check %s node: %w", endpoint.role, err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO edges (source, target, rel_type, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, target, rel_type) DO UPDATE SET weight = excluded.weight, updated_at = excluded.updated_at
	`, sourceID, targetID, string(relType), weight, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}
	return nil
}

// OutboundEdges returns the edges leaving nodeID in insertion (rowid) order.
func (s *SQLiteGraphStore) OutboundEdges(ctx context.Context, nodeID string) ([]OutboundEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.source, e.target, e.rel_type, e.weight, e.created_at, e.updated_at,
		       n.id, n.label, n.properties, n.created_at, n.updated_at
		FROM edges e JOIN nodes n ON n.id = e.target
		WHERE e.source = ?
		ORDER BY e.rowid
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	results := make([]OutboundEdge, 0)
	for rows.Next() {
		var (
			edge                                   Edge
			relType, eCreated, eUpdated            string
			nID, nLabel, nProps, nCreated, nUpdate string
		)
		if err := rows.Scan(&edge.Source, &edge.Target, &relType, &edge.Weight, &eCreated, &eUpdated,
			&nID, &nLabel, &nProps, &nCreated, &nUpdate); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge.Type = RelType(relType)
		edge.CreatedAt = parseTime(eCreated)
		edge.UpdatedAt = parseTime(eUpdated)

		target, err := decodeNode(nID, nLabel, nProps, nCreated, nUpdate)
		if err != nil {
			return nil, err
		}
		results = append(results, OutboundEdge{Edge: edge, Target: *target})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return results, nil
}

// Snapshot loads the whole graph under the read lock.
func (s *SQLiteGraphStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, err := s.allNodesUnlocked(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.allEdgesUnlocked(ctx)
	if err != nil {
		return nil, err
	}

	snap := newSnapshot(len(nodes))
	for _, n := range nodes {
		snap.nodes[n.ID] = n
	}
	for _, e := range edges {
		snap.out[e.Source] = append(snap.out[e.Source], e)
	}
	return snap, nil
}

// Nodes returns every node ordered by ID.
func (s *SQLiteGraphStore) Nodes(ctx context.Context) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allNodesUnlocked(ctx)
}

// Edges returns every edge in insertion order.
func (s *SQLiteGraphStore) Edges(ctx context.Context) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allEdgesUnlocked(ctx)
}

func (s *SQLiteGraphStore) allNodesUnlocked(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, properties, created_at, updated_at FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

func (s *SQLiteGraphStore) allEdgesUnlocked(ctx context.Context) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target, rel_type, weight, created_at, updated_at FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var relType, created, updated string
		if err := rows.Scan(&e.Source, &e.Target, &relType, &e.Weight, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Type = RelType(relType)
		e.CreatedAt = parseTime(created)
		e.UpdatedAt = parseTime(updated)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Sync exports the graph to nodes.jsonl and edges.jsonl.
func (s *SQLiteGraphStore) Sync(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, err := s.allNodesUnlocked(ctx)
	if err != nil {
		return err
	}
	if err := writeJSONL(s.nodesFile, nodes); err != nil {
		return fmt.Errorf("failed to export nodes: %w", err)
	}

	edges, err := s.allEdgesUnlocked(ctx)
	if err != nil {
		return err
	}
	if err := writeJSONL(s.edgesFile, edges); err != nil {
		return fmt.Errorf("failed to export edges: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var id, label, props, created, updated string
	if err := row.Scan(&id, &label, &props, &created, &updated); err != nil {
		return nil, err
	}
	return decodeNode(id, label, props, created, updated)
}

func decodeNode(id, label, propsJSON, created, updated string) (*Node, error) {
	props := make(map[string]any)
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return nil, fmt.Errorf("unmarshal properties for %s: %w", id, err)
	}
	return &Node{
		ID:         id,
		Label:      Label(label),
		Properties: props,
		CreatedAt:  parseTime(created),
		UpdatedAt:  parseTime(updated),
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
