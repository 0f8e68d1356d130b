package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type edgeKey struct {
	source string
	target string
	typ    RelType
}

// InMemoryGraphStore implements GraphStore for testing and development.
// Writes are serialized by a single lock; readers share it, so every read
// observes a fully applied write.
type InMemoryGraphStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[edgeKey]Edge
	out   map[string][]edgeKey // per-source insertion order
	now   func() time.Time
}

// NewInMemoryGraphStore creates a new in-memory store.
func NewInMemoryGraphStore() *InMemoryGraphStore {
	return &InMemoryGraphStore{
		nodes: make(map[string]Node),
		edges: make(map[edgeKey]Edge),
		out:   make(map[string][]edgeKey),
		now:   time.Now,
	}
}

// UpsertNode merges properties onto the node keyed by properties["id"].
func (s *InMemoryGraphStore) UpsertNode(ctx context.Context, label Label, properties map[string]any) (Node, error) {
	if err := checkLabel(label); err != nil {
		return Node{}, err
	}
	id, props, err := normalizeProperties(properties)
	if err != nil {
		return Node{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	node, exists := s.nodes[id]
	if exists {
		if node.Label != label {
			return Node{}, fmt.Errorf("%w: %s is %s, not %s", ErrLabelConflict, id, node.Label, label)
		}
		node.Properties = mergeProperties(node.Properties, props)
		node.UpdatedAt = now
	} else {
		node = Node{
			ID:         id,
			Label:      label,
			Properties: props,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	s.nodes[id] = node

	node.Properties = copyProperties(node.Properties)
	return node, nil
}

// GetNode retrieves a node by ID. Returns nil if not found.
func (s *InMemoryGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, exists := s.nodes[id]
	if !exists {
		return nil, nil
	}
	node.Properties = copyProperties(node.Properties)
	return &node, nil
}

// UpsertEdge creates the edge or overwrites its weight.
func (s *InMemoryGraphStore) UpsertEdge(ctx context.Context, sourceID, targetID string, relType RelType, weight float64) error {
	if err := checkRelType(relType); err != nil {
		return err
	}
	if err := checkWeight(weight); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[sourceID]; !ok {
		return fmt.Errorf("%w: source node %s not found", ErrDanglingReference, sourceID)
	}
	if _, ok := s.nodes[targetID]; !ok {
		return fmt.Errorf("%w: target node %s not found", ErrDanglingReference, targetID)
	}

	now := s.now()
	key := edgeKey{source: sourceID, target: targetID, typ: relType}
	edge, exists := s.edges[key]
	if exists {
		edge.Weight = weight
		edge.UpdatedAt = now
	} else {
		edge = Edge{
			Source:    sourceID,
			Target:    targetID,
			Type:      relType,
			Weight:    weight,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.out[sourceID] = append(s.out[sourceID], key)
	}
	s.edges[key] = edge
	return nil
}

// OutboundEdges returns the edges leaving nodeID in creation order.
func (s *InMemoryGraphStore) OutboundEdges(ctx context.Context, nodeID string) ([]OutboundEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.out[nodeID]
	results := make([]OutboundEdge, 0, len(keys))
	for _, k := range keys {
		target := s.nodes[k.target]
		target.Properties = copyProperties(target.Properties)
		results = append(results, OutboundEdge{Edge: s.edges[k], Target: target})
	}
	return results, nil
}

// Snapshot copies the graph under the read lock.
func (s *InMemoryGraphStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := newSnapshot(len(s.nodes))
	for id, n := range s.nodes {
		n.Properties = copyProperties(n.Properties)
		snap.nodes[id] = n
	}
	for source, keys := range s.out {
		edges := make([]Edge, 0, len(keys))
		for _, k := range keys {
			edges = append(edges, s.edges[k])
		}
		snap.out[source] = edges
	}
	return snap, nil
}

// Nodes returns every node. Order is unspecified.
func (s *InMemoryGraphStore) Nodes(ctx context.Context) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		n.Properties = copyProperties(n.Properties)
		results = append(results, n)
	}
	return results, nil
}

// Edges returns every edge, grouped by source in creation order.
func (s *InMemoryGraphStore) Edges(ctx context.Context) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Edge, 0, len(s.edges))
	for _, keys := range s.out {
		for _, k := range keys {
			results = append(results, s.edges[k])
		}
	}
	return results, nil
}

// Sync is a no-op for in-memory storage.
func (s *InMemoryGraphStore) Sync(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage.
func (s *InMemoryGraphStore) Close() error {
	return nil
}
