// Package store defines the GraphStore interface for storing and querying
// the footprint graph, and its in-memory, SQLite and Neo4j implementations.
package store

import (
	"context"
	"time"
)

// DefaultEdgeWeight is the weight applied when a caller does not supply one.
const DefaultEdgeWeight = 1.0

// Node represents a node in the footprint graph.
type Node struct {
	ID         string         `json:"id"`
	Label      Label          `json:"label"`
	Properties map[string]any `json:"properties"` // scalar values only; always carries "id"
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Edge represents a directed, typed relationship between two nodes.
// An edge is identified by (Source, Target, Type).
type Edge struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      RelType   `json:"type"`
	Weight    float64   `json:"weight"` // >= 0; fraction of upstream impact reaching Target
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutboundEdge pairs an edge with the node it points at.
type OutboundEdge struct {
	Edge   Edge
	Target Node
}

// GraphStore defines the interface for storing and querying the footprint graph.
type GraphStore interface {
	// UpsertNode merges properties onto the node keyed by properties["id"],
	// creating it if absent, and returns the resulting node.
	UpsertNode(ctx context.Context, label Label, properties map[string]any) (Node, error)

	// GetNode returns the node with the given ID, or nil if it does not exist.
	GetNode(ctx context.Context, id string) (*Node, error)

	// UpsertEdge sets the weight of the (source, target, relType) edge,
	// creating it if absent. Both endpoints must already exist.
	UpsertEdge(ctx context.Context, sourceID, targetID string, relType RelType, weight float64) error

	// OutboundEdges returns every edge whose source is nodeID together with its
	// target node. The order is stable for an unchanged graph.
	OutboundEdges(ctx context.Context, nodeID string) ([]OutboundEdge, error)

	// Persistence
	Sync(ctx context.Context) error
	Close() error
}

// Snapshotter is implemented by stores that can hand out a frozen view of the
// whole graph. Traversals prefer a snapshot so they observe one graph state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// GraphReader is the read side shared by GraphStore and Snapshot.
type GraphReader interface {
	GetNode(ctx context.Context, id string) (*Node, error)
	OutboundEdges(ctx context.Context, nodeID string) ([]OutboundEdge, error)
}
