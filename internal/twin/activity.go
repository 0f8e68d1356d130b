package twin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ecotwin/ecotwin/internal/sanitize"
	"github.com/ecotwin/ecotwin/internal/store"
)

// DefaultIngestConcurrency bounds parallel writes in IngestActivities.
const DefaultIngestConcurrency = 4

// Activity is a validated activity record handed over by an upstream
// collaborator.
type Activity struct {
	ID             string    `json:"id,omitempty" validate:"omitempty,max=128"`
	UserID         string    `json:"user_id" validate:"required,max=128"`
	Type           string    `json:"type" validate:"required,max=64"`
	Description    string    `json:"description,omitempty" validate:"max=2000"`
	CarbonEstimate float64   `json:"carbon_estimate" validate:"finite,gte=0"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
	LocationID     string    `json:"location_id,omitempty" validate:"omitempty,max=128"`
	SourceID       string    `json:"source_id,omitempty" validate:"omitempty,max=128"`
}

// IngestActivity writes a as an Activity node with a PERFORMED edge from its
// User, and LOCATED_AT / HAS_SOURCE edges when a location or source is given.
// Missing endpoint nodes are created. An empty ID is replaced with a UUID.
// Type is reduced to a slug and Description is stripped of markup.
func (s *Service) IngestActivity(ctx context.Context, a Activity) (store.Node, error) {
	if a.ID == "" {
		a.ID = s.newID()
	}
	a.Type = sanitize.Slug(a.Type)
	a.Description = sanitize.Text(a.Description)
	if err := ValidateActivity(a); err != nil {
		return store.Node{}, err
	}
	if err := s.checkIngestLabels(ctx, a); err != nil {
		return store.Node{}, fmt.Errorf("ingest %s: %w", a.ID, err)
	}

	if _, err := s.graph.UpsertNode(ctx, store.LabelUser, map[string]any{"id": a.UserID}); err != nil {
		return store.Node{}, fmt.Errorf("ingest %s: user: %w", a.ID, err)
	}

	props := map[string]any{
		"id":              a.ID,
		"type":            a.Type,
		"carbon_estimate": a.CarbonEstimate,
		"timestamp":       a.Timestamp.UTC().Format(time.RFC3339),
		"user_id":         a.UserID,
	}
	if a.Description != "" {
		props["description"] = a.Description
	}
	node, err := s.graph.UpsertNode(ctx, store.LabelActivity, props)
	if err != nil {
		return store.Node{}, fmt.Errorf("ingest %s: %w", a.ID, err)
	}

	if err := s.graph.UpsertEdge(ctx, a.UserID, a.ID, store.RelPerformed, store.DefaultEdgeWeight); err != nil {
		return store.Node{}, fmt.Errorf("ingest %s: performed: %w", a.ID, err)
	}

	links := []struct {
		id    string
		label store.Label
		rel   store.RelType
	}{
		{a.LocationID, store.LabelLocation, store.RelLocatedAt},
		{a.SourceID, store.LabelSource, store.RelHasSource},
	}
	for _, l := range links {
		if l.id == "" {
			continue
		}
		if _, err := s.graph.UpsertNode(ctx, l.label, map[string]any{"id": l.id}); err != nil {
			return store.Node{}, fmt.Errorf("ingest %s: %s: %w", a.ID, l.label, err)
		}
		if err := s.graph.UpsertEdge(ctx, a.ID, l.id, l.rel, store.DefaultEdgeWeight); err != nil {
			return store.Node{}, fmt.Errorf("ingest %s: %s: %w", a.ID, l.rel, err)
		}
	}

	s.logger.Debug("activity ingested", "id", a.ID, "user", a.UserID, "type", a.Type, "carbon", a.CarbonEstimate)
	return node, nil
}

// checkIngestLabels fails with store.ErrLabelConflict when an id the
// activity would write already belongs to a node of another label, so a
// rejected activity leaves the graph untouched.
func (s *Service) checkIngestLabels(ctx context.Context, a Activity) error {
	want := []struct {
		id    string
		label store.Label
	}{
		{a.UserID, store.LabelUser},
		{a.ID, store.LabelActivity},
		{a.LocationID, store.LabelLocation},
		{a.SourceID, store.LabelSource},
	}
	for _, w := range want {
		if w.id == "" {
			continue
		}
		n, err := s.graph.GetNode(ctx, w.id)
		if err != nil {
			return fmt.Errorf("read %s: %w", w.id, err)
		}
		if n != nil && n.Label != w.label {
			return fmt.Errorf("%w: %s is %s, not %s", store.ErrLabelConflict, w.id, n.Label, w.label)
		}
	}
	return nil
}

// IngestActivities ingests activities in parallel and returns the nodes in
// input order. The first failure cancels the remaining writes.
func (s *Service) IngestActivities(ctx context.Context, activities []Activity) ([]store.Node, error) {
	nodes := make([]store.Node, len(activities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.ingestConcurrency)
	for i, a := range activities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := s.IngestActivity(gctx, a)
			if err != nil {
				return fmt.Errorf("activity %d: %w", i, err)
			}
			nodes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("activities ingested", "count", len(activities))
	return nodes, nil
}

func newUUID() string {
	return uuid.NewString()
}
