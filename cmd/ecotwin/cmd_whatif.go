package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/whatif"
)

func newWhatIfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatif",
		Short: "Compare the annual emissions of two lifestyle scenarios",
		Long: `Compare a baseline scenario with a modified one and report the annual
carbon reduction. Scenarios are JSON objects keyed by category
(transport, diet, energy). Prefix a value with @ to read it from a file.

Examples:
  ecotwin whatif \
    --baseline '{"transport":{"mode":"car","distance_km_per_week":100}}' \
    --modified '{"transport":{"mode":"bike","distance_km_per_week":100}}'
  ecotwin whatif --baseline @now.json --modified @plan.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baselineArg, _ := cmd.Flags().GetString("baseline")
			modifiedArg, _ := cmd.Flags().GetString("modified")

			baseline, err := parseScenario("baseline", baselineArg)
			if err != nil {
				return err
			}
			modified, err := parseScenario("modified", modifiedArg)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				delta := a.service.CalculateWhatIf(baseline, modified)
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(delta)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Carbon reduction: %.2f kg CO2e/year\n", delta.CarbonReduction)
				names := make([]string, 0, len(delta.Categories))
				for name := range delta.Categories {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %s: %.2f\n", name, delta.Categories[name])
				}
				return nil
			})
		},
	}
	cmd.Flags().String("baseline", "{}", "Baseline scenario as JSON or @file")
	cmd.Flags().String("modified", "{}", "Modified scenario as JSON or @file")
	return cmd
}

// parseScenario decodes a scenario given inline or as @path.
func parseScenario(name, value string) (whatif.Scenario, error) {
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s scenario: %w", name, err)
		}
		data = b
	}

	var s whatif.Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid %s scenario: %w", name, err)
	}
	return s, nil
}
