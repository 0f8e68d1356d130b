package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ecotwin",
		Short: "Environmental digital twin - impact propagation and shared resources",
		Long: `ecotwin keeps a graph of users, activities, locations, sources and
resources, and answers how a change in one place ripples through it.

It propagates impact deltas along weighted edges, splits shared resources
across linked users, and compares lifestyle what-if scenarios.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().Bool("global", false, "Use the global state directory (~/.ecotwin)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newNodeCmd(),
		newConnectCmd(),
		newSimulateCmd(),
		newLinkCmd(),
		newUnlinkCmd(),
		newMembersCmd(),
		newSessionsCmd(),
		newShareCmd(),
		newReleaseCmd(),
		newWhatIfCmd(),
		newIngestCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
	)

	return rootCmd
}
