package mcp

import (
	"github.com/ecotwin/ecotwin/internal/propagation"
	"github.com/ecotwin/ecotwin/internal/whatif"
)

// NodeSummary is the wire view of a graph node.
type NodeSummary struct {
	ID         string         `json:"id" jsonschema:"Node id"`
	Label      string         `json:"label" jsonschema:"Node label"`
	Properties map[string]any `json:"properties" jsonschema:"Scalar node properties"`
}

// UpsertNodeInput defines the input for the ecotwin_upsert_node tool.
type UpsertNodeInput struct {
	Label      string         `json:"label" jsonschema:"One of User, Activity, Location, Source, Resource"`
	Properties map[string]any `json:"properties" jsonschema:"Scalar properties; must include a non-empty id"`
}

// UpsertNodeOutput defines the output for the ecotwin_upsert_node tool.
type UpsertNodeOutput struct {
	Node NodeSummary `json:"node" jsonschema:"The node after the merge"`
}

// ConnectInput defines the input for the ecotwin_connect tool.
type ConnectInput struct {
	Source  string   `json:"source" jsonschema:"Source node id"`
	Target  string   `json:"target" jsonschema:"Target node id"`
	RelType string   `json:"rel_type" jsonschema:"One of PERFORMED, LOCATED_AT, HAS_SOURCE, IMPACTS"`
	Weight  *float64 `json:"weight,omitempty" jsonschema:"Fraction of upstream impact reaching the target (default 1.0)"`
}

// ConnectOutput defines the output for the ecotwin_connect tool.
type ConnectOutput struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	RelType string  `json:"rel_type"`
	Weight  float64 `json:"weight"`
	Message string  `json:"message"`
}

// SimulateInput defines the input for the ecotwin_simulate tool.
type SimulateInput struct {
	StartID        string   `json:"start_id" jsonschema:"Node the delta originates at"`
	Delta          float64  `json:"delta" jsonschema:"Impact change at the start node"`
	MaxDepth       *int     `json:"max_depth,omitempty" jsonschema:"Hop bound (default from config)"`
	MagnitudeFloor *float64 `json:"magnitude_floor,omitempty" jsonschema:"Stop expanding below this absolute magnitude"`
}

// SimulateOutput defines the output for the ecotwin_simulate tool.
type SimulateOutput struct {
	Impacts []propagation.Impact `json:"impacts" jsonschema:"Impacts in first-visit order"`
	Count   int                  `json:"count"`
	Total   float64              `json:"total" jsonschema:"Sum of impact magnitudes"`
}

// SessionSummary is the wire view of a linked session.
type SessionSummary struct {
	ID       string   `json:"id"`
	Members  []string `json:"members"`
	LinkedAt string   `json:"linked_at" jsonschema:"RFC3339 time of the last link"`
}

// LinkInput defines the input for the ecotwin_link tool.
type LinkInput struct {
	SessionID string   `json:"session_id" jsonschema:"Session to create or replace"`
	UserIDs   []string `json:"user_ids" jsonschema:"User twins to link; duplicates are dropped"`
}

// LinkOutput defines the output for the ecotwin_link tool.
type LinkOutput struct {
	Session SessionSummary `json:"session"`
}

// SessionInput identifies a session for ecotwin_unlink and ecotwin_members.
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"Session id"`
}

// UnlinkOutput defines the output for the ecotwin_unlink tool.
type UnlinkOutput struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MembersOutput defines the output for the ecotwin_members tool.
type MembersOutput struct {
	SessionID string   `json:"session_id"`
	Members   []string `json:"members"`
	Count     int      `json:"count"`
}

// AllocationSummary is the wire view of a shared resource split.
type AllocationSummary struct {
	ResourceID string             `json:"resource_id"`
	SessionID  string             `json:"session_id"`
	Members    []string           `json:"members"`
	Shares     map[string]float64 `json:"shares" jsonschema:"Fraction of the resource per member"`
}

// ShareInput defines the input for the ecotwin_share tool.
type ShareInput struct {
	ResourceID string `json:"resource_id" jsonschema:"Resource node id"`
	SessionID  string `json:"session_id" jsonschema:"Session whose members share the resource"`
}

// ShareOutput defines the output for the ecotwin_share tool.
type ShareOutput struct {
	Allocation AllocationSummary `json:"allocation"`
}

// WhatIfInput defines the input for the ecotwin_whatif tool.
type WhatIfInput struct {
	Baseline whatif.Scenario `json:"baseline" jsonschema:"Category name to parameters, e.g. {\"transport\":{\"vehicle\":\"sedan\"}}"`
	Modified whatif.Scenario `json:"modified" jsonschema:"Category name to parameters for the alternative"`
}

// WhatIfOutput defines the output for the ecotwin_whatif tool.
type WhatIfOutput struct {
	CarbonReduction    float64            `json:"carbon_reduction" jsonschema:"kg CO2e saved per year"`
	CostSavings        float64            `json:"cost_savings"`
	ResourceEfficiency float64            `json:"resource_efficiency"`
	Categories         map[string]float64 `json:"categories,omitempty"`
}

// ActivityInput is one activity record for the ecotwin_ingest tool.
type ActivityInput struct {
	ID             string  `json:"id,omitempty" jsonschema:"Activity id; generated when empty"`
	UserID         string  `json:"user_id" jsonschema:"User who performed the activity"`
	Type           string  `json:"type" jsonschema:"Activity type, e.g. commute"`
	Description    string  `json:"description,omitempty"`
	CarbonEstimate float64 `json:"carbon_estimate" jsonschema:"kg CO2e"`
	Timestamp      string  `json:"timestamp" jsonschema:"RFC3339 time of the activity"`
	LocationID     string  `json:"location_id,omitempty"`
	SourceID       string  `json:"source_id,omitempty"`
}

// IngestInput defines the input for the ecotwin_ingest tool.
type IngestInput struct {
	Activities []ActivityInput `json:"activities" jsonschema:"Activities to write"`
}

// IngestOutput defines the output for the ecotwin_ingest tool.
type IngestOutput struct {
	IDs   []string `json:"ids" jsonschema:"Activity node ids in input order"`
	Count int      `json:"count"`
}
