package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	persistlog "dronelogistics.ai/internal/persistence/log"
	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/world"
)

type replayOptions struct {
	scenarioPath string
	snapshotPath string
	tuningPath   string
	maxTicks     uint64
	asJSON       bool
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <events-dir>",
		Short: "Re-simulate a recorded run and check every tick digest",
		Long:  "replay rebuilds the world from --scenario (tick 0) or --snapshot, steps it through the ticks recorded in <events-dir> and fails on the first tick whose state digest differs from the log.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayRun(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.scenarioPath, "scenario", "", "scenario the run was started from")
	cmd.Flags().StringVar(&opts.snapshotPath, "snapshot", "", "snapshot the run was resumed from")
	cmd.Flags().StringVar(&opts.tuningPath, "tuning", "", "tuning used with --scenario (default: built-in defaults)")
	cmd.Flags().Uint64Var(&opts.maxTicks, "max-ticks", 0, "stop after this many verified ticks (0 = all)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the final summary as JSON")
	return cmd
}

func replayRun(cmd *cobra.Command, eventsDir string, opts replayOptions) error {
	if (opts.scenarioPath == "") == (opts.snapshotPath == "") {
		return fmt.Errorf("exactly one of --scenario or --snapshot is required")
	}

	var w *world.World
	if opts.snapshotPath != "" {
		snap, err := snapshot.ReadSnapshot(opts.snapshotPath)
		if err != nil {
			return err
		}
		w = world.New(world.ConfigFromSnapshot("", snap), droneLogger(cmd, false))
		if err := w.ImportSnapshot(snap); err != nil {
			return err
		}
	} else {
		var err error
		w, _, _, err = loadScenarioWorld(opts.scenarioPath, opts.tuningPath, droneLogger(cmd, false))
		if err != nil {
			return err
		}
	}

	var (
		last     world.TickLogEntry
		verified uint64
	)
	err := persistlog.ReadTicks(eventsDir, func(entry world.TickLogEntry) error {
		next := w.CurrentTick()
		if entry.Tick < next {
			return nil
		}
		if entry.Tick != next {
			return fmt.Errorf("tick gap: log has %d, world is at %d", entry.Tick, next)
		}
		got := w.StepOnce()
		if got.Digest != entry.Digest {
			return &digestMismatchError{Tick: entry.Tick, Want: entry.Digest, Got: got.Digest}
		}
		last = got
		verified++
		if opts.maxTicks > 0 && verified >= opts.maxTicks {
			return persistlog.ErrStop
		}
		return nil
	})
	if err != nil {
		return err
	}
	if verified == 0 {
		return errors.New("no ticks to replay after the starting point")
	}

	out := cmd.OutOrStdout()
	if !opts.asJSON {
		fmt.Fprintf(out, "replay ok: %d ticks verified, last tick %d digest %s\n", verified, last.Tick, last.Digest)
	}
	return writeSummary(out, summarize(w, last), opts.asJSON)
}

type digestMismatchError struct {
	Tick uint64
	Want string
	Got  string
}

func (e *digestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch at tick %d: log=%s replay=%s", e.Tick, e.Want, e.Got)
}
