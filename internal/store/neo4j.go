package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Runner executes a Cypher query and returns a fully buffered result.
// Neo4jExecutor is the production implementation; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Neo4jExecutor runs queries through the official driver.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewNeo4jExecutor creates a driver for uri with basic auth.
func NewNeo4jExecutor(uri, username, password, dbName string) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{Driver: driver, DBName: dbName}, nil
}

// Verify checks connectivity to the database.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Run executes query with automatic session and transaction management.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, e.Driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.DBName),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}

// Close closes the driver.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Neo4jGraphStore implements GraphStore on a Neo4j database. Labels and
// relationship types cannot be bound as Cypher parameters, so they are
// interpolated, and only after checkLabel / checkRelType accept them.
type Neo4jGraphStore struct {
	runner Runner
	closer func(ctx context.Context) error
}

// NewNeo4jGraphStore wraps a Runner. closer may be nil.
func NewNeo4jGraphStore(runner Runner, closer func(ctx context.Context) error) *Neo4jGraphStore {
	return &Neo4jGraphStore{runner: runner, closer: closer}
}

// OpenNeo4jGraphStore connects, verifies connectivity and ensures id constraints.
func OpenNeo4jGraphStore(ctx context.Context, uri, username, password, dbName string) (*Neo4jGraphStore, error) {
	exec, err := NewNeo4jExecutor(uri, username, password, dbName)
	if err != nil {
		return nil, err
	}
	if err := exec.Verify(ctx); err != nil {
		exec.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j at %s: %w", uri, err)
	}
	s := NewNeo4jGraphStore(exec, exec.Close)
	if err := s.EnsureConstraints(ctx); err != nil {
		exec.Close(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureConstraints creates a uniqueness constraint on id for every label.
func (s *Neo4jGraphStore) EnsureConstraints(ctx context.Context) error {
	for _, l := range Labels() {
		query := fmt.Sprintf("CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
			strings.ToLower(string(l)), l)
		if _, err := s.runner.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create constraint for %s: %w", l, err)
		}
	}
	return nil
}

// UpsertNode merges properties onto the node. A node carrying a different
// label matches nothing in the guarded MERGE and is reported as a conflict.
func (s *Neo4jGraphStore) UpsertNode(ctx context.Context, label Label, properties map[string]any) (Node, error) {
	if err := checkLabel(label); err != nil {
		return Node{}, err
	}
	id, props, err := normalizeProperties(properties)
	if err != nil {
		return Node{}, err
	}

	query := fmt.Sprintf(
		"OPTIONAL MATCH (existing {id: $id}) "+
			"WITH existing WHERE existing IS NULL OR $label IN labels(existing) "+
			"MERGE (n:%s {id: $id}) "+
			"SET n += $props "+
			"RETURN n", label)

	result, err := s.runner.Run(ctx, query, map[string]any{
		"id":    id,
		"label": string(label),
		"props": props,
	})
	if err != nil {
		return Node{}, fmt.Errorf("failed to upsert node %s: %w", id, err)
	}
	if len(result.Records) == 0 {
		return Node{}, fmt.Errorf("%w: %s exists under another label", ErrLabelConflict, id)
	}

	raw, _ := result.Records[0].Get("n")
	n, ok := raw.(neo4j.Node)
	if !ok {
		return Node{}, fmt.Errorf("unexpected result type %T for node %s", raw, id)
	}
	return nodeFromNeo4j(n, label), nil
}

// GetNode retrieves a node by ID. Returns nil if not found.
func (s *Neo4jGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", "").WithProperties(map[string]interface{}{"id": id})).
		Return("n").
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build node query: %w", err)
	}

	result, err := s.runner.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	raw, _ := result.Records[0].Get("n")
	n, ok := raw.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T for node %s", raw, id)
	}
	node := nodeFromNeo4j(n, "")
	return &node, nil
}

// UpsertEdge creates the edge or overwrites its weight.
func (s *Neo4jGraphStore) UpsertEdge(ctx context.Context, sourceID, targetID string, relType RelType, weight float64) error {
	if err := checkRelType(relType); err != nil {
		return err
	}
	if err := checkWeight(weight); err != nil {
		return err
	}

	query := fmt.Sprintf(
		"MATCH (a {id: $source_id}) "+
			"MATCH (b {id: $target_id}) "+
			"MERGE (a)-[r:%s]->(b) "+
			"SET r.weight = $weight "+
			"RETURN count(r) AS merged", relType)

	result, err := s.runner.Run(ctx, query, map[string]any{
		"source_id": sourceID,
		"target_id": targetID,
		"weight":    weight,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}

	if mergedCount(result) == 0 {
		return s.danglingError(ctx, sourceID, targetID)
	}
	return nil
}

func mergedCount(result *neo4j.EagerResult) int64 {
	if len(result.Records) == 0 {
		return 0
	}
	v, _ := result.Records[0].Get("merged")
	n, _ := v.(int64)
	return n
}

// danglingError names the missing endpoint.
func (s *Neo4jGraphStore) danglingError(ctx context.Context, sourceID, targetID string) error {
	for _, endpoint := range []struct{ role, id string }{{"source", sourceID}, {"target", targetID}} {
		n, err := s.GetNode(ctx, endpoint.id)
		if err != nil {
			return err
		}
		if n == nil {
			return fmt.Errorf("%w: %s node %s not found", ErrDanglingReference, endpoint.role, endpoint.id)
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrDanglingReference, sourceID, targetID)
}

// OutboundEdges returns the edges leaving nodeID ordered by target id, then type.
func (s *Neo4jGraphStore) OutboundEdges(ctx context.Context, nodeID string) ([]OutboundEdge, error) {
	const query = "MATCH (s {id: $id})-[r]->(t) " +
		"RETURN type(r) AS rel, r.weight AS weight, t AS target " +
		"ORDER BY t.id, type(r)"

	result, err := s.runner.Run(ctx, query, map[string]any{"id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	results := make([]OutboundEdge, 0, len(result.Records))
	for _, record := range result.Records {
		relRaw, _ := record.Get("rel")
		rel := RelType(fmt.Sprint(relRaw))
		if !rel.Valid() {
			// Relationships written by other tools are not part of this graph.
			continue
		}

		weight := DefaultEdgeWeight
		if w, ok := record.Get("weight"); ok && w != nil {
			switch x := w.(type) {
			case float64:
				weight = x
			case int64:
				weight = float64(x)
			}
		}

		targetRaw, _ := record.Get("target")
		tn, ok := targetRaw.(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected result type %T for edge target", targetRaw)
		}
		target := nodeFromNeo4j(tn, "")

		results = append(results, OutboundEdge{
			Edge: Edge{
				Source: nodeID,
				Target: target.ID,
				Type:   rel,
				Weight: weight,
			},
			Target: target,
		})
	}
	return results, nil
}

// Sync is a no-op; Neo4j commits every query.
func (s *Neo4jGraphStore) Sync(ctx context.Context) error {
	return nil
}

// Close releases the driver.
func (s *Neo4jGraphStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer(context.Background())
}

// nodeFromNeo4j converts a driver node. When want is empty the first
// allowlisted label on the node is used.
func nodeFromNeo4j(n neo4j.Node, want Label) Node {
	label := want
	if label == "" {
		for _, l := range n.Labels {
			if Label(l).Valid() {
				label = Label(l)
				break
			}
		}
	}

	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		if nv, err := normalizeScalar(v); err == nil {
			props[k] = nv
		}
	}
	id, _ := props["id"].(string)

	return Node{ID: id, Label: label, Properties: props}
}
