// Package propagation computes how an impact delta at one node reaches the
// nodes downstream of it. Traversal is breadth-first over outbound edges;
// each node is felt once, through the first path that reaches it, with the
// delta scaled by every edge weight along that path.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ecotwin/ecotwin/internal/allocation"
	"github.com/ecotwin/ecotwin/internal/constants"
	"github.com/ecotwin/ecotwin/internal/logging"
	"github.com/ecotwin/ecotwin/internal/store"
)

var (
	// ErrStoreUnavailable is returned when the graph store fails mid-traversal.
	// No partial result accompanies it.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrTraversalBudgetExceeded is returned when a call examines more edges
	// than Config.MaxVisits allows.
	ErrTraversalBudgetExceeded = errors.New("traversal budget exceeded")

	// ErrInvalidDelta is returned for a NaN or infinite delta.
	ErrInvalidDelta = errors.New("delta must be a finite number")
)

// Config holds the termination bounds of a propagation call.
type Config struct {
	// MaxDepth is the number of hops explored from the start node. Default: 10.
	MaxDepth int

	// MagnitudeFloor stops expansion past a node whose |magnitude| falls
	// below it. The node itself is still reported. Default: 1e-6.
	MagnitudeFloor float64

	// MaxVisits bounds the number of edges examined per call. Zero or less
	// disables the bound. Default: 100000.
	MaxVisits int
}

// DefaultConfig returns the default propagation configuration.
func DefaultConfig() Config {
	return Config{
		MaxDepth:       constants.DefaultMaxDepth,
		MagnitudeFloor: constants.DefaultMagnitudeFloor,
		MaxVisits:      constants.DefaultMaxVisits,
	}
}

// Option overrides a Config field for one call.
type Option func(*Config)

// WithMaxDepth sets the hop bound.
func WithMaxDepth(n int) Option {
	return func(c *Config) { c.MaxDepth = n }
}

// WithMagnitudeFloor sets the expansion floor.
func WithMagnitudeFloor(f float64) Option {
	return func(c *Config) { c.MagnitudeFloor = f }
}

// WithMaxVisits sets the edge examination budget.
func WithMaxVisits(n int) Option {
	return func(c *Config) { c.MaxVisits = n }
}

// Impact is one entry of a propagation result.
type Impact struct {
	TargetID  string        `json:"target_id"`
	Label     store.Label   `json:"label"`
	RelType   store.RelType `json:"rel_type"`
	Magnitude float64       `json:"magnitude"`
	Depth     int           `json:"depth"`

	// Member and Fraction are set on the per-member entries of a shared Resource.
	Member   string  `json:"member,omitempty"`
	Fraction float64 `json:"fraction,omitempty"`
}

// AllocationLookup lists the recorded splits of shared resources.
// *allocation.Allocator satisfies it.
type AllocationLookup interface {
	Allocations() []allocation.Allocation
}

// Engine runs propagation over a graph. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	graph       store.GraphReader
	allocations AllocationLookup
	config      Config
	logger      *slog.Logger
	events      *logging.EventLogger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEventLogger sets the JSONL event trace.
func WithEventLogger(el *logging.EventLogger) EngineOption {
	return func(e *Engine) { e.events = el }
}

// NewEngine creates an engine over graph. allocations may be nil, in which
// case Resource nodes are never split.
func NewEngine(graph store.GraphReader, allocations AllocationLookup, config Config, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:       graph,
		allocations: allocations,
		config:      config,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's default bounds.
func (e *Engine) Config() Config {
	return e.config
}

type frontierItem struct {
	id        string
	magnitude float64
	depth     int
}

// Simulate propagates delta from startID and returns the impacts in the
// order nodes were first reached. An unknown start node yields an empty
// result. If the graph supports snapshots the whole call reads one.
func (e *Engine) Simulate(ctx context.Context, startID string, delta float64, opts ...Option) (results []Impact, err error) {
	cfg := e.config
	for _, opt := range opts {
		opt(&cfg)
	}
	if math.IsNaN(cfg.MagnitudeFloor) || cfg.MagnitudeFloor < 0 {
		cfg.MagnitudeFloor = 0
	}

	started := time.Now()
	visitedCount := 0
	ctx, span := startSimulateSpan(ctx, startID, delta, cfg)
	defer func() {
		setSimulateSpanResult(span, visitedCount, len(results), err)
		span.End()
		recordSimulateMetrics(ctx, time.Since(started), visitedCount, err)
	}()

	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelta, delta)
	}

	graph, err := e.reader(ctx)
	if err != nil {
		return nil, err
	}
	shares := e.allocationTable()

	start, err := graph.GetNode(ctx, startID)
	if err != nil {
		return nil, fmt.Errorf("%w: get start node %s: %w", ErrStoreUnavailable, startID, err)
	}
	results = make([]Impact, 0)
	if start == nil {
		e.logger.Debug("propagation start node not found", "start", startID)
		return results, nil
	}

	visited := map[string]bool{startID: true}
	frontier := []frontierItem{{id: startID, magnitude: delta, depth: 0}}
	examined := 0

	for head := 0; head < len(frontier); head++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("propagation from %s aborted: %w", startID, err)
		}

		item := frontier[head]
		if item.depth >= cfg.MaxDepth {
			continue
		}

		edges, err := graph.OutboundEdges(ctx, item.id)
		if err != nil {
			return nil, fmt.Errorf("%w: outbound edges of %s: %w", ErrStoreUnavailable, item.id, err)
		}

		for _, oe := range edges {
			examined++
			if cfg.MaxVisits > 0 && examined > cfg.MaxVisits {
				return nil, fmt.Errorf("%w: more than %d edges examined from %s",
					ErrTraversalBudgetExceeded, cfg.MaxVisits, startID)
			}

			target := oe.Target
			if visited[target.ID] {
				continue
			}
			visited[target.ID] = true
			visitedCount++

			propagated := item.magnitude * oe.Edge.Weight
			depth := item.depth + 1
			results = append(results, impactsFor(shares, target, oe.Edge.Type, propagated, depth)...)

			expand := math.Abs(propagated) >= cfg.MagnitudeFloor
			if expand {
				frontier = append(frontier, frontierItem{id: target.ID, magnitude: propagated, depth: depth})
			}

			e.logger.Log(ctx, logging.LevelTrace, "propagation hop",
				"from", item.id, "to", target.ID, "rel", oe.Edge.Type,
				"weight", oe.Edge.Weight, "magnitude", propagated, "depth", depth, "expand", expand)
		}
	}

	e.logger.Debug("propagation complete", "start", startID, "delta", delta,
		"visited", visitedCount, "impacts", len(results), "edges_examined", examined)
	e.events.Log(map[string]any{
		"event":   "propagation",
		"start":   startID,
		"delta":   delta,
		"visited": visitedCount,
		"impacts": len(results),
	})
	return results, nil
}

// reader returns a snapshot when the graph offers one.
func (e *Engine) reader(ctx context.Context) (store.GraphReader, error) {
	snapshotter, ok := e.graph.(store.Snapshotter)
	if !ok {
		return e.graph, nil
	}
	snap, err := snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrStoreUnavailable, err)
	}
	return snap, nil
}

// allocationTable captures the allocations once per Simulate call.
func (e *Engine) allocationTable() map[string]allocation.Allocation {
	if e.allocations == nil {
		return nil
	}
	all := e.allocations.Allocations()
	table := make(map[string]allocation.Allocation, len(all))
	for _, a := range all {
		table[a.ResourceID] = a
	}
	return table
}

// impactsFor builds the result entries for reaching target. A shared
// Resource yields one entry per member scaled by that member's fraction.
func impactsFor(shares map[string]allocation.Allocation, target store.Node, rel store.RelType, magnitude float64, depth int) []Impact {
	if target.Label == store.LabelResource {
		if alloc, ok := shares[target.ID]; ok && len(alloc.Members) > 0 {
			split := make([]Impact, 0, len(alloc.Members))
			for _, member := range alloc.Members {
				fraction := alloc.Shares[member]
				split = append(split, Impact{
					TargetID:  target.ID,
					Label:     target.Label,
					RelType:   rel,
					Magnitude: magnitude * fraction,
					Depth:     depth,
					Member:    member,
					Fraction:  fraction,
				})
			}
			return split
		}
	}
	return []Impact{{
		TargetID:  target.ID,
		Label:     target.Label,
		RelType:   rel,
		Magnitude: magnitude,
		Depth:     depth,
	}}
}

// Total sums the magnitudes of impacts.
func Total(impacts []Impact) float64 {
	var sum float64
	for _, im := range impacts {
		sum += im.Magnitude
	}
	return sum
}
