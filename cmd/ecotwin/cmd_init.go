package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the state directory and open the configured store",
		Long: `Create .ecotwin under the project root (or ~/.ecotwin with --global)
and open the configured graph store once so its schema exists.

Examples:
  ecotwin init
  ecotwin init --global`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"scope":     a.scope.String(),
						"state_dir": a.stateDir,
						"backend":   a.cfg.Store.Backend,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s twin in %s (backend: %s)\n",
					a.scope, a.stateDir, a.cfg.Store.Backend)
				return nil
			})
		},
	}
}
