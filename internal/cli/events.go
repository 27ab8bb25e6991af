package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	persistlog "dronelogistics.ai/internal/persistence/log"
	"dronelogistics.ai/internal/protocol"
	"dronelogistics.ai/internal/sim/world"
)

type eventsOptions struct {
	task      string
	drone     string
	code      string
	from      uint64
	to        uint64
	transfers bool
	asJSON    bool
}

func newEventsCmd() *cobra.Command {
	opts := eventsOptions{}

	cmd := &cobra.Command{
		Use:   "events <events-dir>",
		Short: "Print the task event timeline from a tick log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !protocol.IsKnownCode(opts.code) {
				return fmt.Errorf("unknown result code: %s", opts.code)
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			n := 0
			err := persistlog.ReadTicks(args[0], func(entry world.TickLogEntry) error {
				if entry.Tick < opts.from {
					return nil
				}
				if opts.to > 0 && entry.Tick > opts.to {
					return persistlog.ErrStop
				}
				for _, ev := range entry.Events {
					if opts.task != "" && ev.TaskID != opts.task {
						continue
					}
					if opts.drone != "" && ev.Drone != opts.drone {
						continue
					}
					if opts.code != "" && ev.Code != opts.code {
						continue
					}
					n++
					if opts.asJSON {
						if err := enc.Encode(map[string]any{"tick": entry.Tick, "event": ev}); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintln(out, formatEvent(entry.Tick, ev))
				}
				if !opts.transfers || opts.task != "" || opts.code != "" {
					return nil
				}
				for _, tr := range entry.Transfers {
					if opts.drone != "" && tr.Drone != opts.drone {
						continue
					}
					n++
					if opts.asJSON {
						if err := enc.Encode(map[string]any{"tick": entry.Tick, "transfer": tr}); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(out, "%6d %-6s %-12s %s %s %s x%d\n", entry.Tick, tr.Drone, "transfer", tr.Phase, tr.Frame, tr.Resource, tr.Amount)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if n == 0 && !opts.asJSON {
				fmt.Fprintln(out, "no matching events")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.task, "task", "", "only events of this task id")
	cmd.Flags().StringVar(&opts.drone, "drone", "", "only events of this drone")
	cmd.Flags().StringVar(&opts.code, "code", "", "only events carrying this result code (e.g. E_BLOCKED)")
	cmd.Flags().Uint64Var(&opts.from, "from", 0, "first tick to include")
	cmd.Flags().Uint64Var(&opts.to, "to", 0, "last tick to include (0 = end of log)")
	cmd.Flags().BoolVar(&opts.transfers, "transfers", false, "also print pick-up and delivery transfers")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print one JSON object per line")
	return cmd
}
