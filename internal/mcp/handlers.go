package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ecotwin/ecotwin/internal/allocation"
	"github.com/ecotwin/ecotwin/internal/propagation"
	"github.com/ecotwin/ecotwin/internal/ratelimit"
	"github.com/ecotwin/ecotwin/internal/sanitize"
	"github.com/ecotwin/ecotwin/internal/session"
	"github.com/ecotwin/ecotwin/internal/store"
	"github.com/ecotwin/ecotwin/internal/twin"
)

// SessionsResourceURI is the resource listing linked sessions and shared resources.
const SessionsResourceURI = "ecotwin://sessions"

// registerTools registers all ecotwin MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_upsert_node",
		Description: "Create a footprint graph node or merge properties onto an existing one",
	}, s.handleUpsertNode)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_connect",
		Description: "Create or reweight a typed edge between two existing nodes",
	}, s.handleConnect)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_simulate",
		Description: "Propagate an impact delta from a node and list every downstream node it reaches",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_link",
		Description: "Link user twins into a shared session, replacing any previous membership",
	}, s.handleLink)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_unlink",
		Description: "Dissolve a session and release the resources it shared",
	}, s.handleUnlink)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_members",
		Description: "List the users linked in a session",
	}, s.handleMembers)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_share",
		Description: "Split a resource's impact equally across the members of a session",
	}, s.handleShare)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_whatif",
		Description: "Compare annual emissions of a baseline and a modified lifestyle scenario",
	}, s.handleWhatIf)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ecotwin_ingest",
		Description: "Write validated activity records into the footprint graph",
	}, s.handleIngest)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         SessionsResourceURI,
		Name:        "ecotwin-sessions",
		Description: "Linked sessions and the resources their members share.",
		MIMEType:    "text/markdown",
	}, s.handleSessionsResource)
}

func (s *Server) handleSessionsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Linked Sessions\n\n")

	sessions := s.service.Sessions()
	if len(sessions) == 0 {
		sb.WriteString("No sessions linked. Link user twins with `ecotwin_link`.\n")
	}
	for _, sess := range sessions {
		fmt.Fprintf(&sb, "- `%s`: %d members\n", sess.ID, len(sess.Members))
	}

	allocs := s.service.Allocations()
	if len(allocs) > 0 {
		sb.WriteString("\n# Shared Resources\n\n")
		for _, a := range allocs {
			fmt.Fprintf(&sb, "- `%s` shared by session `%s` (%d ways)\n", a.ResourceID, a.SessionID, len(a.Members))
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      SessionsResourceURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

func (s *Server) handleUpsertNode(ctx context.Context, req *sdk.CallToolRequest, args UpsertNodeInput) (_ *sdk.CallToolResult, _ UpsertNodeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_upsert_node", start, retErr, sanitizeToolParams(map[string]any{
			"label": args.Label, "properties": args.Properties,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_upsert_node"); err != nil {
		return nil, UpsertNodeOutput{}, err
	}

	props := make(map[string]any, len(args.Properties))
	for k, v := range args.Properties {
		if text, ok := v.(string); ok && k != "id" {
			v = sanitize.Text(text)
		}
		props[k] = v
	}

	node, err := s.service.UpsertNode(ctx, args.Label, props)
	if err != nil {
		return nil, UpsertNodeOutput{}, err
	}
	return nil, UpsertNodeOutput{Node: summarizeNode(node)}, nil
}

func (s *Server) handleConnect(ctx context.Context, req *sdk.CallToolRequest, args ConnectInput) (_ *sdk.CallToolResult, _ ConnectOutput, retErr error) {
	start := time.Now()
	weight := store.DefaultEdgeWeight
	if args.Weight != nil {
		weight = *args.Weight
	}
	defer func() {
		s.auditTool("ecotwin_connect", start, retErr, sanitizeToolParams(map[string]any{
			"source": args.Source, "target": args.Target, "rel_type": args.RelType, "weight": weight,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_connect"); err != nil {
		return nil, ConnectOutput{}, err
	}

	if err := s.service.UpsertEdge(ctx, args.Source, args.Target, args.RelType, weight); err != nil {
		return nil, ConnectOutput{}, err
	}
	return nil, ConnectOutput{
		Source:  args.Source,
		Target:  args.Target,
		RelType: args.RelType,
		Weight:  weight,
		Message: fmt.Sprintf("%s -[%s]-> %s (weight %.3g)", args.Source, args.RelType, args.Target, weight),
	}, nil
}

func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{"start_id": args.StartID, "delta": args.Delta}
		if args.MaxDepth != nil {
			params["max_depth"] = *args.MaxDepth
		}
		if args.MagnitudeFloor != nil {
			params["magnitude_floor"] = *args.MagnitudeFloor
		}
		s.auditTool("ecotwin_simulate", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	impacts, err := s.service.SimulateImpact(ctx, args.StartID, args.Delta, args.MaxDepth, args.MagnitudeFloor)
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	return nil, SimulateOutput{
		Impacts: impacts,
		Count:   len(impacts),
		Total:   propagation.Total(impacts),
	}, nil
}

func (s *Server) handleLink(ctx context.Context, req *sdk.CallToolRequest, args LinkInput) (_ *sdk.CallToolResult, _ LinkOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_link", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID, "user_ids": args.UserIDs, "count": len(args.UserIDs),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_link"); err != nil {
		return nil, LinkOutput{}, err
	}

	sess, err := s.service.LinkSession(ctx, args.SessionID, args.UserIDs)
	if err != nil {
		return nil, LinkOutput{}, err
	}
	return nil, LinkOutput{Session: summarizeSession(sess)}, nil
}

func (s *Server) handleUnlink(ctx context.Context, req *sdk.CallToolRequest, args SessionInput) (_ *sdk.CallToolResult, _ UnlinkOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_unlink", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_unlink"); err != nil {
		return nil, UnlinkOutput{}, err
	}

	if err := s.service.UnlinkSession(ctx, args.SessionID); err != nil {
		return nil, UnlinkOutput{}, err
	}
	return nil, UnlinkOutput{
		SessionID: args.SessionID,
		Message:   fmt.Sprintf("session %s unlinked; its shared resources were released", args.SessionID),
	}, nil
}

func (s *Server) handleMembers(ctx context.Context, req *sdk.CallToolRequest, args SessionInput) (_ *sdk.CallToolResult, _ MembersOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_members", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_members"); err != nil {
		return nil, MembersOutput{}, err
	}

	members, err := s.service.MembersOf(args.SessionID)
	if err != nil {
		return nil, MembersOutput{}, err
	}
	return nil, MembersOutput{SessionID: args.SessionID, Members: members, Count: len(members)}, nil
}

func (s *Server) handleShare(ctx context.Context, req *sdk.CallToolRequest, args ShareInput) (_ *sdk.CallToolResult, _ ShareOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_share", start, retErr, sanitizeToolParams(map[string]any{
			"resource_id": args.ResourceID, "session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_share"); err != nil {
		return nil, ShareOutput{}, err
	}

	alloc, err := s.service.ShareResource(ctx, args.ResourceID, args.SessionID)
	if err != nil {
		return nil, ShareOutput{}, err
	}
	return nil, ShareOutput{Allocation: summarizeAllocation(alloc)}, nil
}

func (s *Server) handleWhatIf(ctx context.Context, req *sdk.CallToolRequest, args WhatIfInput) (_ *sdk.CallToolResult, _ WhatIfOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_whatif", start, retErr, sanitizeToolParams(map[string]any{
			"baseline": args.Baseline, "modified": args.Modified,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_whatif"); err != nil {
		return nil, WhatIfOutput{}, err
	}

	delta := s.service.CalculateWhatIf(args.Baseline, args.Modified)
	return nil, WhatIfOutput{
		CarbonReduction:    delta.CarbonReduction,
		CostSavings:        delta.CostSavings,
		ResourceEfficiency: delta.ResourceEfficiency,
		Categories:         delta.Categories,
	}, nil
}

func (s *Server) handleIngest(ctx context.Context, req *sdk.CallToolRequest, args IngestInput) (_ *sdk.CallToolResult, _ IngestOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ecotwin_ingest", start, retErr, sanitizeToolParams(map[string]any{
			"activities": args.Activities, "count": len(args.Activities),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ecotwin_ingest"); err != nil {
		return nil, IngestOutput{}, err
	}

	activities := make([]twin.Activity, 0, len(args.Activities))
	for i, in := range args.Activities {
		ts, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			return nil, IngestOutput{}, fmt.Errorf("activity %d: timestamp must be RFC3339: %w", i, err)
		}
		activities = append(activities, twin.Activity{
			ID:             in.ID,
			UserID:         in.UserID,
			Type:           in.Type,
			Description:    in.Description,
			CarbonEstimate: in.CarbonEstimate,
			Timestamp:      ts,
			LocationID:     in.LocationID,
			SourceID:       in.SourceID,
		})
	}

	nodes, err := s.service.IngestActivities(ctx, activities)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return nil, IngestOutput{IDs: ids, Count: len(ids)}, nil
}

func summarizeNode(n store.Node) NodeSummary {
	return NodeSummary{ID: n.ID, Label: string(n.Label), Properties: n.Properties}
}

func summarizeSession(sess session.Session) SessionSummary {
	return SessionSummary{
		ID:       sess.ID,
		Members:  sess.Members,
		LinkedAt: sess.LinkedAt.UTC().Format(time.RFC3339),
	}
}

func summarizeAllocation(a allocation.Allocation) AllocationSummary {
	return AllocationSummary{
		ResourceID: a.ResourceID,
		SessionID:  a.SessionID,
		Members:    a.Members,
		Shares:     a.Shares,
	}
}
