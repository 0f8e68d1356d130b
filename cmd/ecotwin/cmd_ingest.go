package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/twin"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Ingest activity records from a JSONL file",
		Long: `Read activity records, one JSON object per line, and write each as an
Activity node linked to its user, location and source.

Each record needs user_id, type, carbon_estimate and an RFC3339 timestamp.

Examples:
  ecotwin ingest activities.jsonl
  collector export | ecotwin ingest -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			activities, err := readActivities(r)
			if err != nil {
				return err
			}
			if len(activities) == 0 {
				return fmt.Errorf("no activities in %s", args[0])
			}

			return withApp(cmd, func(a *app) error {
				nodes, err := a.service.IngestActivities(cmd.Context(), activities)
				if err != nil {
					return fmt.Errorf("ingest failed: %w", err)
				}
				ids := make([]string, 0, len(nodes))
				for _, n := range nodes {
					ids = append(ids, n.ID)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"ids":   ids,
						"count": len(ids),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d activities\n", len(ids))
				return nil
			})
		},
	}
}

// readActivities decodes a stream of JSON activity objects.
func readActivities(r io.Reader) ([]twin.Activity, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	var activities []twin.Activity
	for {
		var a twin.Activity
		err := dec.Decode(&a)
		if errors.Is(err, io.EOF) {
			return activities, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid activity record %d: %w", len(activities)+1, err)
		}
		activities = append(activities, a)
	}
}
