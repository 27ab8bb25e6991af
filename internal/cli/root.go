// Package cli implements dronectl, the offline companion to cmd/server.
package cli

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dronectl",
		Short:         "dronectl: validate, run and inspect drone logistics worlds offline",
		Long:          "dronectl validates scenario files, runs worlds headless for a fixed number of ticks, replays event logs against the simulation and inspects logs, snapshots and the task-event index written by the server. The admin subcommands talk to a running server.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newValidateCmd(),
		newRunCmd(),
		newReplayCmd(),
		newEventsCmd(),
		newSnapshotCmd(),
		newIndexCmd(),
		newAdminCmd(),
	)
	return rootCmd
}
