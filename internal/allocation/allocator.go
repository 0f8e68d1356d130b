// Package allocation apportions the footprint of shared Resource nodes
// across the members of a linked session.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ecotwin/ecotwin/internal/logging"
	"github.com/ecotwin/ecotwin/internal/session"
	"github.com/ecotwin/ecotwin/internal/store"
)

var (
	// ErrResourceAlreadyShared is returned when a resource is apportioned
	// under a different active session.
	ErrResourceAlreadyShared = errors.New("resource already shared")

	// ErrNotAResource is returned when the target node is not a Resource.
	ErrNotAResource = errors.New("node is not a Resource")

	// ErrNotShared is returned by Release for a resource with no allocation.
	ErrNotShared = errors.New("resource is not shared")
)

// Resource node properties written by the allocator.
const (
	PropSharedSession      = "shared_session"
	PropAllocationFraction = "allocation_fraction"
	PropSharedMembers      = "shared_members"
)

// Allocation is the per-member split of one resource.
type Allocation struct {
	ResourceID string             `json:"resource_id"`
	SessionID  string             `json:"session_id"`
	Members    []string           `json:"members"`
	Shares     map[string]float64 `json:"shares"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Fraction returns member's share of the resource.
func (a Allocation) Fraction(member string) (float64, bool) {
	f, ok := a.Shares[member]
	return f, ok
}

// Total returns the sum of all shares.
func (a Allocation) Total() float64 {
	var sum float64
	for _, f := range a.Shares {
		sum += f
	}
	return sum
}

func (a Allocation) clone() Allocation {
	cp := a
	cp.Members = append([]string(nil), a.Members...)
	cp.Shares = make(map[string]float64, len(a.Shares))
	for k, v := range a.Shares {
		cp.Shares[k] = v
	}
	return cp
}

// Membership resolves the current members of a session.
// *session.Linker satisfies it.
type Membership interface {
	MembersOf(sessionID string) ([]string, error)
}

// NodeStore is the part of the graph store the allocator writes through.
type NodeStore interface {
	GetNode(ctx context.Context, id string) (*store.Node, error)
	UpsertNode(ctx context.Context, label store.Label, properties map[string]any) (store.Node, error)
}

// Allocator records which session apportions each resource.
// A single mutex covers the already-shared check and the write, so two
// concurrent ShareResource calls on one resource cannot both succeed.
type Allocator struct {
	mu          sync.Mutex
	sessions    Membership
	graph       NodeStore
	allocations map[string]*Allocation
	logger      *slog.Logger
	events      *logging.EventLogger
	now         func() time.Time
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithEventLogger sets the JSONL event trace.
func WithEventLogger(el *logging.EventLogger) Option {
	return func(a *Allocator) { a.events = el }
}

// NewAllocator creates an allocator reading membership from sessions and
// annotating Resource nodes in graph.
func NewAllocator(sessions Membership, graph NodeStore, opts ...Option) *Allocator {
	a := &Allocator{
		sessions:    sessions,
		graph:       graph,
		allocations: make(map[string]*Allocation),
		logger:      logging.Discard(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ShareResource apportions resourceID equally across the members of
// sessionID. Sharing again under the same session recomputes the split.
func (a *Allocator) ShareResource(ctx context.Context, resourceID, sessionID string) (Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	members, err := a.sessions.MembersOf(sessionID)
	if err != nil {
		return Allocation{}, err
	}
	if len(members) == 0 {
		return Allocation{}, fmt.Errorf("%w: %s", session.ErrEmptySession, sessionID)
	}

	if existing, ok := a.allocations[resourceID]; ok && existing.SessionID != sessionID {
		if _, err := a.sessions.MembersOf(existing.SessionID); err == nil {
			return Allocation{}, fmt.Errorf("%w: %s is apportioned under session %s",
				ErrResourceAlreadyShared, resourceID, existing.SessionID)
		}
		// The owning session is gone; its claim is stale.
	}

	if err := a.checkResource(ctx, resourceID); err != nil {
		return Allocation{}, err
	}

	alloc := a.build(resourceID, sessionID, members)
	if err := a.annotate(ctx, alloc); err != nil {
		return Allocation{}, err
	}
	a.allocations[resourceID] = &alloc

	a.logger.Info("resource shared", "resource", resourceID, "session", sessionID, "members", len(members))
	a.events.Log(map[string]any{
		"event":    "resource_shared",
		"resource": resourceID,
		"session":  sessionID,
		"members":  members,
		"fraction": 1 / float64(len(members)),
	})
	return alloc.clone(), nil
}

// AllocationFor returns the recorded allocation of resourceID.
func (a *Allocator) AllocationFor(resourceID string) (Allocation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	alloc, ok := a.allocations[resourceID]
	if !ok {
		return Allocation{}, false
	}
	return alloc.clone(), true
}

// Allocations returns every recorded allocation sorted by resource id.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedUnlocked()
}

func (a *Allocator) sortedUnlocked() []Allocation {
	out := make([]Allocation, 0, len(a.allocations))
	for _, alloc := range a.allocations {
		out = append(out, alloc.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out
}

// Release returns resourceID to single-owner weighting.
func (a *Allocator) Release(ctx context.Context, resourceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.allocations[resourceID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotShared, resourceID)
	}
	return a.releaseUnlocked(ctx, resourceID)
}

// SessionChanged implements session.Observer. Allocations under a re-linked
// session are rebalanced to the new membership; allocations under an
// unlinked session are released.
func (a *Allocator) SessionChanged(ctx context.Context, sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	members, err := a.sessions.MembersOf(sessionID)
	active := err == nil && len(members) > 0

	for _, id := range a.resourcesOfUnlocked(sessionID) {
		if !active {
			if err := a.releaseUnlocked(ctx, id); err != nil {
				a.logger.Warn("failed to release resource", "resource", id, "session", sessionID, "error", err)
			}
			continue
		}

		alloc := a.build(id, sessionID, members)
		if err := a.annotate(ctx, alloc); err != nil {
			a.logger.Warn("failed to rebalance resource", "resource", id, "session", sessionID, "error", err)
			continue
		}
		a.allocations[id] = &alloc
		a.logger.Debug("resource rebalanced", "resource", id, "session", sessionID, "members", len(members))
		a.events.Log(map[string]any{
			"event":    "resource_rebalanced",
			"resource": id,
			"session":  sessionID,
			"members":  members,
		})
	}
}

func (a *Allocator) resourcesOfUnlocked(sessionID string) []string {
	var ids []string
	for id, alloc := range a.allocations {
		if alloc.SessionID == sessionID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// releaseUnlocked drops the allocation even when the node write fails;
// an allocation must never outlive its session. A resource that is no
// longer in the graph is not recreated.
func (a *Allocator) releaseUnlocked(ctx context.Context, resourceID string) error {
	prev := a.allocations[resourceID]
	delete(a.allocations, resourceID)

	err := a.checkResource(ctx, resourceID)
	switch {
	case errors.Is(err, store.ErrDanglingReference), errors.Is(err, ErrNotAResource):
		a.logger.Warn("released allocation of missing resource", "resource", resourceID, "error", err)
		return nil
	case err != nil:
		return err
	}

	_, err = a.graph.UpsertNode(ctx, store.LabelResource, map[string]any{
		"id":                   resourceID,
		PropSharedSession:      "",
		PropAllocationFraction: 1.0,
		PropSharedMembers:      "",
	})
	if err != nil {
		return fmt.Errorf("failed to annotate resource %s: %w", resourceID, err)
	}

	sessionID := ""
	if prev != nil {
		sessionID = prev.SessionID
	}
	a.logger.Info("resource released", "resource", resourceID, "session", sessionID)
	a.events.Log(map[string]any{
		"event":    "resource_released",
		"resource": resourceID,
		"session":  sessionID,
	})
	return nil
}

func (a *Allocator) checkResource(ctx context.Context, resourceID string) error {
	n, err := a.graph.GetNode(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to read resource %s: %w", resourceID, err)
	}
	if n == nil {
		return fmt.Errorf("%w: resource %s not found", store.ErrDanglingReference, resourceID)
	}
	if n.Label != store.LabelResource {
		return fmt.Errorf("%w: %s is %s", ErrNotAResource, resourceID, n.Label)
	}
	return nil
}

func (a *Allocator) build(resourceID, sessionID string, members []string) Allocation {
	fraction := 1 / float64(len(members))
	shares := make(map[string]float64, len(members))
	for _, m := range members {
		shares[m] = fraction
	}
	return Allocation{
		ResourceID: resourceID,
		SessionID:  sessionID,
		Members:    append([]string(nil), members...),
		Shares:     shares,
		UpdatedAt:  a.now().UTC(),
	}
}

func (a *Allocator) annotate(ctx context.Context, alloc Allocation) error {
	_, err := a.graph.UpsertNode(ctx, store.LabelResource, map[string]any{
		"id":                   alloc.ResourceID,
		PropSharedSession:      alloc.SessionID,
		PropAllocationFraction: 1 / float64(len(alloc.Members)),
		PropSharedMembers:      strings.Join(alloc.Members, ","),
	})
	if err != nil {
		return fmt.Errorf("failed to annotate resource %s: %w", alloc.ResourceID, err)
	}
	return nil
}
