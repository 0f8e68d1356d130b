// Package twin is the entry point the API layer calls. It wires the graph
// store, session linker, resource allocator, propagation engine and what-if
// simulator together and persists session state between runs.
package twin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ecotwin/ecotwin/internal/allocation"
	"github.com/ecotwin/ecotwin/internal/logging"
	"github.com/ecotwin/ecotwin/internal/propagation"
	"github.com/ecotwin/ecotwin/internal/session"
	"github.com/ecotwin/ecotwin/internal/store"
	"github.com/ecotwin/ecotwin/internal/whatif"
)

// Options configures a Service.
type Options struct {
	// StateDir receives sessions.json and allocations.json. Empty disables
	// persistence.
	StateDir string

	Propagation       propagation.Config
	IngestConcurrency int
	Logger            *slog.Logger
	Events            *logging.EventLogger
}

// Service implements the twin operations over one graph store.
type Service struct {
	graph     store.GraphStore
	linker    *session.Linker
	allocator *allocation.Allocator
	engine    *propagation.Engine
	simulator *whatif.Simulator
	logger    *slog.Logger
	stateDir  string
	persistMu sync.Mutex

	ingestConcurrency int
	newID             func() string
}

// New builds a Service over graph. When opts.StateDir is set, sessions and
// allocations saved there by a previous run are restored.
func New(ctx context.Context, graph store.GraphStore, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Propagation == (propagation.Config{}) {
		opts.Propagation = propagation.DefaultConfig()
	}
	if opts.IngestConcurrency <= 0 {
		opts.IngestConcurrency = DefaultIngestConcurrency
	}

	linker := session.NewLinker()
	if opts.StateDir != "" {
		loaded, err := session.LoadLinker(opts.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load sessions: %w", err)
		}
		linker = loaded
	}

	allocator := allocation.NewAllocator(linker, graph,
		allocation.WithLogger(logger),
		allocation.WithEventLogger(opts.Events),
	)
	if opts.StateDir != "" {
		if err := allocator.Load(ctx, opts.StateDir); err != nil {
			return nil, fmt.Errorf("failed to load allocations: %w", err)
		}
	}
	linker.AddObserver(allocator)

	engine := propagation.NewEngine(graph, allocator, opts.Propagation,
		propagation.WithLogger(logger),
		propagation.WithEventLogger(opts.Events),
	)

	return &Service{
		graph:             graph,
		linker:            linker,
		allocator:         allocator,
		engine:            engine,
		simulator:         whatif.NewSimulator(),
		logger:            logger,
		stateDir:          opts.StateDir,
		ingestConcurrency: opts.IngestConcurrency,
		newID:             newUUID,
	}, nil
}

// Graph returns the underlying store.
func (s *Service) Graph() store.GraphStore { return s.graph }

// Simulator returns the what-if simulator so callers can register categories.
func (s *Service) Simulator() *whatif.Simulator { return s.simulator }

// UpsertNode parses label against the allowlist and merges properties onto
// the node.
func (s *Service) UpsertNode(ctx context.Context, label string, properties map[string]any) (store.Node, error) {
	l, err := store.ParseLabel(label)
	if err != nil {
		return store.Node{}, err
	}
	return s.graph.UpsertNode(ctx, l, properties)
}

// GetNode returns the node with the given id, or nil.
func (s *Service) GetNode(ctx context.Context, id string) (*store.Node, error) {
	return s.graph.GetNode(ctx, id)
}

// UpsertEdge parses relType against the allowlist and sets the edge weight.
func (s *Service) UpsertEdge(ctx context.Context, sourceID, targetID, relType string, weight float64) error {
	r, err := store.ParseRelType(relType)
	if err != nil {
		return err
	}
	return s.graph.UpsertEdge(ctx, sourceID, targetID, r, weight)
}

// SimulateImpact propagates delta from startID. maxDepth and magnitudeFloor
// override the configured bounds when non-nil.
func (s *Service) SimulateImpact(ctx context.Context, startID string, delta float64, maxDepth *int, magnitudeFloor *float64) ([]propagation.Impact, error) {
	var opts []propagation.Option
	if maxDepth != nil {
		opts = append(opts, propagation.WithMaxDepth(*maxDepth))
	}
	if magnitudeFloor != nil {
		opts = append(opts, propagation.WithMagnitudeFloor(*magnitudeFloor))
	}
	return s.engine.Simulate(ctx, startID, delta, opts...)
}

// LinkSession links userIDs into sessionID, replacing prior membership.
func (s *Service) LinkSession(ctx context.Context, sessionID string, userIDs []string) (session.Session, error) {
	sess, err := s.linker.Link(ctx, sessionID, userIDs)
	if err != nil {
		return session.Session{}, err
	}
	if err := s.persist(); err != nil {
		return session.Session{}, err
	}
	s.logger.Info("session linked", "session", sessionID, "members", len(sess.Members))
	return sess, nil
}

// UnlinkSession removes sessionID and releases its resources.
func (s *Service) UnlinkSession(ctx context.Context, sessionID string) error {
	if err := s.linker.Unlink(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session unlinked", "session", sessionID)
	return s.persist()
}

// MembersOf returns the members of sessionID.
func (s *Service) MembersOf(sessionID string) ([]string, error) {
	return s.linker.MembersOf(sessionID)
}

// Sessions returns every active session.
func (s *Service) Sessions() []session.Session {
	return s.linker.Sessions()
}

// ShareResource apportions resourceID across the members of sessionID.
func (s *Service) ShareResource(ctx context.Context, resourceID, sessionID string) (allocation.Allocation, error) {
	alloc, err := s.allocator.ShareResource(ctx, resourceID, sessionID)
	if err != nil {
		return allocation.Allocation{}, err
	}
	if err := s.persist(); err != nil {
		return allocation.Allocation{}, err
	}
	return alloc, nil
}

// ReleaseResource returns resourceID to single-owner weighting.
func (s *Service) ReleaseResource(ctx context.Context, resourceID string) error {
	if err := s.allocator.Release(ctx, resourceID); err != nil {
		return err
	}
	return s.persist()
}

// AllocationFor returns the recorded allocation of resourceID.
func (s *Service) AllocationFor(resourceID string) (allocation.Allocation, bool) {
	return s.allocator.AllocationFor(resourceID)
}

// Allocations returns every recorded allocation ordered by resource id.
func (s *Service) Allocations() []allocation.Allocation {
	return s.allocator.Allocations()
}

// CalculateWhatIf compares two scenarios.
func (s *Service) CalculateWhatIf(baseline, modified whatif.Scenario) whatif.Delta {
	return s.simulator.CalculateDelta(baseline, modified)
}

// Sync flushes the graph store and session state.
func (s *Service) Sync(ctx context.Context) error {
	if err := s.graph.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync graph: %w", err)
	}
	return s.persist()
}

// Close syncs and closes the graph store.
func (s *Service) Close(ctx context.Context) error {
	syncErr := s.Sync(ctx)
	if err := s.graph.Close(); err != nil {
		return fmt.Errorf("failed to close graph: %w", err)
	}
	return syncErr
}

func (s *Service) persist() error {
	if s.stateDir == "" {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := session.SaveLinker(s.linker, s.stateDir); err != nil {
		return err
	}
	return s.allocator.Save(s.stateDir)
}
