package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/store"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Create, update and inspect graph nodes",
	}
	cmd.AddCommand(newNodeUpsertCmd(), newNodeGetCmd())
	return cmd
}

func newNodeUpsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upsert <label> <id> [key=value...]",
		Short: "Create a node or merge properties onto it",
		Long: `Create a node or merge properties onto an existing one.

Labels: User, Activity, Location, Source, Resource.
Values that parse as numbers or booleans are stored as such.

Examples:
  ecotwin node upsert User alice name=Alice
  ecotwin node upsert Resource car kind=vehicle capacity=5`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(args[2:])
			if err != nil {
				return err
			}
			props["id"] = args[1]

			return withApp(cmd, func(a *app) error {
				node, err := a.service.UpsertNode(cmd.Context(), args[0], props)
				if err != nil {
					return fmt.Errorf("failed to upsert node: %w", err)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(node)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Upserted %s %s\n", node.Label, node.ID)
				return nil
			})
		},
	}
}

func newNodeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a node and its properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				node, err := a.service.GetNode(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get node: %w", err)
				}
				if node == nil {
					return fmt.Errorf("node not found: %s", args[0])
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(node)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", node.ID, node.Label)
				keys := make([]string, 0, len(node.Properties))
				for k := range node.Properties {
					if k != "id" {
						keys = append(keys, k)
					}
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %s: %v\n", k, node.Properties[k])
				}
				return nil
			})
		},
	}
}

// parseProperties turns key=value arguments into node properties.
func parseProperties(args []string) (map[string]any, error) {
	props := make(map[string]any, len(args)+1)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", arg)
		}
		if key == "id" {
			return nil, fmt.Errorf("id is set positionally, not as a property")
		}
		props[key] = parseValue(value)
	}
	return props, nil
}

func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <source> <target> <rel-type>",
		Short: "Create or reweight an edge between two nodes",
		Long: `Create a weighted edge between two existing nodes, or update its weight.

Relationship types: PERFORMED, LOCATED_AT, HAS_SOURCE, IMPACTS.

Examples:
  ecotwin connect alice trip-1 PERFORMED
  ecotwin connect grid car IMPACTS --weight 0.5`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			weight, _ := cmd.Flags().GetFloat64("weight")

			return withApp(cmd, func(a *app) error {
				if err := a.service.UpsertEdge(cmd.Context(), args[0], args[1], args[2], weight); err != nil {
					return fmt.Errorf("failed to connect: %w", err)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"source":   args[0],
						"target":   args[1],
						"rel_type": args[2],
						"weight":   weight,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Connected %s -[%s %.3g]-> %s\n", args[0], args[2], weight, args[1])
				return nil
			})
		},
	}
	cmd.Flags().Float64("weight", store.DefaultEdgeWeight, "Fraction of upstream impact reaching the target (>= 0)")
	return cmd
}
