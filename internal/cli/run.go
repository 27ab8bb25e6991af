package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dronelogistics.ai/internal/persistence/indexdb"
	persistlog "dronelogistics.ai/internal/persistence/log"
	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/world"
)

type runOptions struct {
	tuningPath string
	ticks      int
	outDir     string
	withIndex  bool
	asJSON     bool
	verbose    bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario headless for a fixed number of ticks",
		Long:  "run builds the scenario, steps the world --ticks times and prints the final frame stocks and drone states. With --out it also writes the event log, a final snapshot and (with --index) the sqlite index, laid out like the server's data directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.tuningPath, "tuning", "", "path to tuning.yaml (default: built-in defaults)")
	cmd.Flags().IntVar(&opts.ticks, "ticks", 100, "number of ticks to simulate")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "world directory for events/, snapshots/ and index/ (optional)")
	cmd.Flags().BoolVar(&opts.withIndex, "index", false, "also write the sqlite task-event index under --out")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log drone state-machine failures to stderr")
	return cmd
}

func runScenario(cmd *cobra.Command, scenarioPath string, opts runOptions) error {
	if opts.ticks <= 0 {
		return fmt.Errorf("--ticks must be > 0")
	}
	if opts.withIndex && opts.outDir == "" {
		return fmt.Errorf("--index requires --out")
	}

	w, _, tune, err := loadScenarioWorld(scenarioPath, opts.tuningPath, droneLogger(cmd, opts.verbose))
	if err != nil {
		return err
	}

	var idx *indexdb.SQLiteIndex
	if opts.outDir != "" {
		tickLog := persistlog.NewTickLogger(opts.outDir)
		defer tickLog.Close()
		var sink world.TickLogger = tickLog
		if opts.withIndex {
			idx, err = indexdb.OpenSQLite(filepath.Join(opts.outDir, "index", "world.sqlite"))
			if err != nil {
				return err
			}
			defer idx.Close()
			if _, err := idx.StartRun(indexdb.RunInfo{WorldID: w.Config().ID, Scenario: scenarioPath, Tuning: tune}); err != nil {
				return err
			}
			sink = teeLogger{tickLog, idx}
		}
		w.SetTickLogger(sink)
	}

	var last world.TickLogEntry
	for i := 0; i < opts.ticks; i++ {
		last = w.StepOnce()
	}

	if opts.outDir != "" {
		snap := w.ExportSnapshot(last.Tick)
		path := filepath.Join(opts.outDir, "snapshots", fmt.Sprintf("%d.snap.zst", last.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return err
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
	}

	return writeSummary(cmd.OutOrStdout(), summarize(w, last), opts.asJSON)
}

type teeLogger []world.TickLogger

func (t teeLogger) WriteTick(entry world.TickLogEntry) error {
	var first error
	for _, l := range t {
		if err := l.WriteTick(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
