package store

import "context"

// Snapshot is an immutable view of the graph taken at one instant. It is safe
// for concurrent use and never observes writes made after it was taken.
type Snapshot struct {
	nodes map[string]Node
	out   map[string][]Edge
}

func newSnapshot(nodeCount int) *Snapshot {
	return &Snapshot{
		nodes: make(map[string]Node, nodeCount),
		out:   make(map[string][]Edge),
	}
}

// GetNode returns the node with the given ID, or nil if absent.
func (s *Snapshot) GetNode(_ context.Context, id string) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	n.Properties = copyProperties(n.Properties)
	return &n, nil
}

// OutboundEdges returns the outbound edges of nodeID in the order they were
// captured. Edges whose target is missing from the snapshot are skipped.
func (s *Snapshot) OutboundEdges(_ context.Context, nodeID string) ([]OutboundEdge, error) {
	edges := s.out[nodeID]
	results := make([]OutboundEdge, 0, len(edges))
	for _, e := range edges {
		target, ok := s.nodes[e.Target]
		if !ok {
			continue
		}
		target.Properties = copyProperties(target.Properties)
		results = append(results, OutboundEdge{Edge: e, Target: target})
	}
	return results, nil
}

// NodeCount returns the number of nodes captured.
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges captured.
func (s *Snapshot) EdgeCount() int {
	n := 0
	for _, edges := range s.out {
		n += len(edges)
	}
	return n
}
