package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/propagation"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <start-id> <delta>",
		Short: "Propagate an impact delta from a node",
		Long: `Propagate a carbon delta from a node along weighted outbound edges
and list every node it reaches with the magnitude that arrives there.

Shared resources are split across the members of their session.
Use -- before a negative delta.

Examples:
  ecotwin simulate alice 12.5
  ecotwin simulate grid --max-depth 3 -- -4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}

			var maxDepth *int
			if cmd.Flags().Changed("max-depth") {
				v, _ := cmd.Flags().GetInt("max-depth")
				maxDepth = &v
			}
			var floor *float64
			if cmd.Flags().Changed("floor") {
				v, _ := cmd.Flags().GetFloat64("floor")
				floor = &v
			}

			return withApp(cmd, func(a *app) error {
				impacts, err := a.service.SimulateImpact(cmd.Context(), args[0], delta, maxDepth, floor)
				if err != nil {
					return fmt.Errorf("simulation failed: %w", err)
				}

				if jsonFlag(cmd) {
					if impacts == nil {
						impacts = []propagation.Impact{}
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"start":   args[0],
						"delta":   delta,
						"impacts": impacts,
						"count":   len(impacts),
						"total":   propagation.Total(impacts),
					})
				}

				out := cmd.OutOrStdout()
				if len(impacts) == 0 {
					fmt.Fprintf(out, "No impacts reached from %s\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "%-24s %-10s %-12s %5s %12s  %s\n", "TARGET", "LABEL", "REL", "DEPTH", "MAGNITUDE", "MEMBER")
				for _, imp := range impacts {
					fmt.Fprintf(out, "%-24s %-10s %-12s %5d %12.6g  %s\n",
						imp.TargetID, imp.Label, imp.RelType, imp.Depth, imp.Magnitude, imp.Member)
				}
				fmt.Fprintf(out, "\n%d impacts, total %.6g\n", len(impacts), propagation.Total(impacts))
				return nil
			})
		},
	}
	cmd.Flags().Int("max-depth", 0, "Override the configured hop bound")
	cmd.Flags().Float64("floor", 0, "Override the configured magnitude floor")
	return cmd
}
