package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/session"
)

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <session-id> <user-id>...",
		Short: "Link user twins into a session",
		Long: `Link user twins into a session. Re-linking an existing session replaces
its membership and re-splits every resource shared with it.

Examples:
  ecotwin link house alice bob`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				sess, err := a.service.LinkSession(cmd.Context(), args[0], args[1:])
				if err != nil {
					return fmt.Errorf("failed to link session: %w", err)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(sess)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Linked session %s: %s\n", sess.ID, strings.Join(sess.Members, ", "))
				return nil
			})
		},
	}
}

func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <session-id>",
		Short: "Remove a session and release its shared resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.service.UnlinkSession(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to unlink session: %w", err)
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"session_id": args[0],
						"unlinked":   true,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unlinked session %s\n", args[0])
				return nil
			})
		},
	}
}

func newMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <session-id>",
		Short: "List the members of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				members, err := a.service.MembersOf(args[0])
				if err != nil {
					return err
				}
				if jsonFlag(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"session_id": args[0],
						"members":    members,
					})
				}
				for _, m := range members {
					fmt.Fprintln(cmd.OutOrStdout(), m)
				}
				return nil
			})
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List linked sessions and their shared resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				sessions := a.service.Sessions()
				allocations := a.service.Allocations()
				if jsonFlag(cmd) {
					if sessions == nil {
						sessions = []session.Session{}
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"sessions":    sessions,
						"allocations": allocations,
					})
				}

				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions linked.")
					return nil
				}
				for _, s := range sessions {
					fmt.Fprintf(out, "%s (%d members, linked %s)\n", s.ID, len(s.Members), s.LinkedAt.Format(time.RFC3339))
					for _, m := range s.Members {
						fmt.Fprintf(out, "  - %s\n", m)
					}
					for _, alloc := range allocations {
						if alloc.SessionID == s.ID {
							fmt.Fprintf(out, "  shares %s (%d ways)\n", alloc.ResourceID, len(alloc.Members))
						}
					}
				}
				return nil
			})
		},
	}
}
