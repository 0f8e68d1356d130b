package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type recordedQuery struct {
	query  string
	params map[string]any
}

// fakeRunner answers the queries Neo4jGraphStore issues from an in-memory
// node table, and records everything it sees.
type fakeRunner struct {
	nodes   map[string]neo4j.Node
	edges   []fakeRel
	queries []recordedQuery
	err     error
}

type fakeRel struct {
	source, target, typ string
	weight              any
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{nodes: make(map[string]neo4j.Node)}
}

func (f *fakeRunner) addNode(label, id string, props map[string]any) {
	p := map[string]any{"id": id}
	for k, v := range props {
		p[k] = v
	}
	f.nodes[id] = neo4j.Node{Labels: []string{label}, Props: p}
}

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	f.queries = append(f.queries, recordedQuery{query: query, params: params})
	if f.err != nil {
		return nil, f.err
	}

	switch {
	case strings.HasPrefix(query, "CREATE CONSTRAINT"):
		return &neo4j.EagerResult{}, nil

	case strings.HasPrefix(query, "OPTIONAL MATCH"):
		id := params["id"].(string)
		label := params["label"].(string)
		n, exists := f.nodes[id]
		if exists && n.Labels[0] != label {
			return &neo4j.EagerResult{}, nil
		}
		if !exists {
			n = neo4j.Node{Labels: []string{label}, Props: map[string]any{}}
		}
		for k, v := range params["props"].(map[string]any) {
			n.Props[k] = v
		}
		f.nodes[id] = n
		return &neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"n"}, n)}}, nil

	case strings.Contains(query, "MERGE (a)-"):
		_, okA := f.nodes[params["source_id"].(string)]
		_, okB := f.nodes[params["target_id"].(string)]
		if !okA || !okB {
			return &neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"merged"}, int64(0))}}, nil
		}
		return &neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"merged"}, int64(1))}}, nil

	case strings.Contains(query, "type(r) AS rel"):
		var records []*neo4j.Record
		for _, e := range f.edges {
			if e.source == params["id"] {
				records = append(records, record([]string{"rel", "weight", "target"}, e.typ, e.weight, f.nodes[e.target]))
			}
		}
		return &neo4j.EagerResult{Records: records}, nil

	default:
		// Node lookup built by the query builder; the id is the only parameter.
		for _, v := range params {
			if id, ok := v.(string); ok {
				if n, exists := f.nodes[id]; exists {
					return &neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"n"}, n)}}, nil
				}
			}
		}
		return &neo4j.EagerResult{}, nil
	}
}

func TestNeo4jGraphStore_RejectedLabelSendsNoQuery(t *testing.T) {
	runner := newFakeRunner()
	s := NewNeo4jGraphStore(runner, nil)
	ctx := context.Background()

	_, err := s.UpsertNode(ctx, Label("User) DETACH DELETE (m"), map[string]any{"id": "x"})
	if !errors.Is(err, ErrInvalidLabel) {
		t.Fatalf("UpsertNode() error = %v, want ErrInvalidLabel", err)
	}
	err = s.UpsertEdge(ctx, "a", "b", RelType("IMPACTS]->() DELETE ("), 1)
	if !errors.Is(err, ErrInvalidRelationshipType) {
		t.Fatalf("UpsertEdge() error = %v, want ErrInvalidRelationshipType", err)
	}
	if len(runner.queries) != 0 {
		t.Errorf("runner received %d queries, want 0", len(runner.queries))
	}
}

func TestNeo4jGraphStore_UpsertNode(t *testing.T) {
	runner := newFakeRunner()
	s := NewNeo4jGraphStore(runner, nil)
	ctx := context.Background()

	n, err := s.UpsertNode(ctx, LabelActivity, map[string]any{"id": "a1", "carbon": 7})
	if err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	if n.ID != "a1" || n.Label != LabelActivity || n.Properties["carbon"] != 7.0 {
		t.Errorf("UpsertNode() = %+v", n)
	}

	q := runner.queries[0]
	if !strings.Contains(q.query, "MERGE (n:Activity {id: $id})") {
		t.Errorf("query = %q, want label interpolated into MERGE", q.query)
	}
	if q.params["id"] != "a1" {
		t.Errorf("id param = %v", q.params["id"])
	}
}

func TestNeo4jGraphStore_UpsertNodeLabelConflict(t *testing.T) {
	runner := newFakeRunner()
	runner.addNode("User", "u1", nil)
	s := NewNeo4jGraphStore(runner, nil)

	_, err := s.UpsertNode(context.Background(), LabelResource, map[string]any{"id": "u1"})
	if !errors.Is(err, ErrLabelConflict) {
		t.Errorf("UpsertNode() error = %v, want ErrLabelConflict", err)
	}
}

func TestNeo4jGraphStore_QueryConstruction(t *testing.T) {
	runner := newFakeRunner()
	s := NewNeo4jGraphStore(runner, nil)
	ctx := context.Background()

	if _, err := s.UpsertNode(ctx, LabelResource, map[string]any{"id": "car"}); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	got, err := s.GetNode(ctx, "car")
	if err != nil || got == nil {
		t.Fatalf("GetNode() = %v, %v", got, err)
	}
	if len(runner.queries) != 2 {
		t.Fatalf("runner received %d queries, want 2", len(runner.queries))
	}

	upsert := runner.queries[0].query
	for _, want := range []string{
		"OPTIONAL MATCH (existing {id: $id})",
		"WHERE existing IS NULL OR $label IN labels(existing)",
		"MERGE (n:Resource {id: $id})",
	} {
		if !strings.Contains(upsert, want) {
			t.Errorf("upsert query = %q, missing %q", upsert, want)
		}
	}

	lookup := runner.queries[1]
	if !strings.Contains(lookup.query, "MATCH") || strings.Contains(lookup.query, "MERGE") {
		t.Errorf("lookup query = %q, want a builder MATCH", lookup.query)
	}
	if strings.Contains(lookup.query, "car") {
		t.Errorf("lookup query = %q, id must be a parameter", lookup.query)
	}
	found := false
	for _, v := range lookup.params {
		if v == "car" {
			found = true
		}
	}
	if !found {
		t.Errorf("lookup params = %v, want id bound", lookup.params)
	}
}

func TestNeo4jGraphStore_UpsertEdgeDangling(t *testing.T) {
	runner := newFakeRunner()
	runner.addNode("User", "u1", nil)
	s := NewNeo4jGraphStore(runner, nil)

	err := s.UpsertEdge(context.Background(), "u1", "ghost", RelImpacts, 0.5)
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("UpsertEdge() error = %v, want ErrDanglingReference", err)
	}
	if !strings.Contains(err.Error(), "target node ghost") {
		t.Errorf("error = %v, want it to name the missing target", err)
	}
}

func TestNeo4jGraphStore_UpsertEdgeInterpolatesType(t *testing.T) {
	runner := newFakeRunner()
	runner.addNode("User", "u1", nil)
	runner.addNode("Activity", "a1", nil)
	s := NewNeo4jGraphStore(runner, nil)

	if err := s.UpsertEdge(context.Background(), "u1", "a1", RelPerformed, 1); err != nil {
		t.Fatalf("UpsertEdge() error = %v", err)
	}
	if q := runner.queries[0].query; !strings.Contains(q, "[r:PERFORMED]") {
		t.Errorf("query = %q", q)
	}
}

func TestNeo4jGraphStore_OutboundEdges(t *testing.T) {
	runner := newFakeRunner()
	runner.addNode("User", "A", nil)
	runner.addNode("Resource", "B", map[string]any{"name": "car"})
	runner.addNode("Activity", "C", nil)
	runner.edges = []fakeRel{
		{"A", "B", "IMPACTS", 0.5},
		{"A", "C", "FOLLOWS", 1.0}, // foreign relationship type
		{"A", "C", "IMPACTS", nil},
		{"A", "C", "PERFORMED", int64(2)},
	}
	s := NewNeo4jGraphStore(runner, nil)

	out, err := s.OutboundEdges(context.Background(), "A")
	if err != nil {
		t.Fatalf("OutboundEdges() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d edges, want 3 (foreign type skipped)", len(out))
	}
	if out[0].Target.Label != LabelResource || out[0].Target.Properties["name"] != "car" {
		t.Errorf("out[0].Target = %+v", out[0].Target)
	}
	if out[1].Edge.Weight != DefaultEdgeWeight {
		t.Errorf("missing weight = %v, want default %v", out[1].Edge.Weight, DefaultEdgeWeight)
	}
	if out[2].Edge.Weight != 2 {
		t.Errorf("integer weight = %v, want 2", out[2].Edge.Weight)
	}
}

func TestNeo4jGraphStore_RunnerErrorsPropagate(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("connection refused")
	s := NewNeo4jGraphStore(runner, nil)

	if _, err := s.OutboundEdges(context.Background(), "A"); err == nil {
		t.Error("OutboundEdges() error = nil, want runner error")
	}
	if _, err := s.GetNode(context.Background(), "A"); err == nil {
		t.Error("GetNode() error = nil, want runner error")
	}
}

func TestNeo4jGraphStore_EnsureConstraints(t *testing.T) {
	runner := newFakeRunner()
	s := NewNeo4jGraphStore(runner, nil)

	if err := s.EnsureConstraints(context.Background()); err != nil {
		t.Fatalf("EnsureConstraints() error = %v", err)
	}
	if len(runner.queries) != len(Labels()) {
		t.Errorf("got %d constraint queries, want %d", len(runner.queries), len(Labels()))
	}
}
