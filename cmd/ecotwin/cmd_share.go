package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <resource-id> <session-id>",
		Short: "Split a resource equally across a session's members",
		Long: `Split a Resource node equally across the members of a session.
Each member receives 1/n of any impact that reaches the resource.

Examples:
  ecotwin share car house`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				alloc, err := a.service.ShareResource(cmd.Context(), args[0], args[1])
				if err != nil {
					return fmt.Errorf("failed to share resource: %w", err)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(alloc)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Shared %s across session %s:\n", alloc.ResourceID, alloc.SessionID)
				for _, m := range alloc.Members {
					fmt.Fprintf(out, "  %s: %.4f\n", m, alloc.Shares[m])
				}
				return nil
			})
		},
	}
}

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <resource-id>",
		Short: "Return a shared resource to single-owner weighting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.service.ReleaseResource(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to release resource: %w", err)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"resource_id": args[0],
						"released":    true,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", args[0])
				return nil
			})
		},
	}
}
