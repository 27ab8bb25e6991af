package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"dronelogistics.ai/internal/persistence/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	var (
		headerOnly bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot <file.snap.zst>",
		Short: "Summarize a world snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if headerOnly {
				hdr, err := snapshot.ReadHeader(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(out).Encode(hdr)
				}
				_, err = fmt.Fprintf(out, "snapshot v%d world=%s tick=%d frames=%d drones=%d\n",
					hdr.Version, hdr.WorldID, hdr.Tick, hdr.Frames, hdr.Drones)
				return err
			}

			snap, err := snapshot.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			fmt.Fprintf(out, "snapshot v%d world=%s tick=%d tick_rate=%d bounds=%v..%v solid=%d\n",
				snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.TickRate,
				snap.Bounds[0], snap.Bounds[1], len(snap.Solid))
			for _, f := range snap.Frames {
				stock := map[string]int{}
				for id, n := range f.Items {
					stock["item:"+id] = n
				}
				for id, n := range f.Fluids {
					stock["fluid:"+id] = n
				}
				fmt.Fprintf(out, "frame %-8s %-9s pos=%v side=%s priority=%d stock=%s\n",
					f.ID, f.Roles, f.Pos, f.Side, f.Priority, formatCounts(stock))
			}
			for _, d := range snap.Drones {
				fmt.Fprintf(out, "drone %-8s pos=%v area=%d cells", d.ID, d.Pos, len(d.Area))
				if d.Item.Amount > 0 {
					fmt.Fprintf(out, " item=%s x%d", d.Item.ID, d.Item.Amount)
				}
				if d.Fluid.Amount > 0 {
					fmt.Fprintf(out, " fluid=%s x%d", d.Fluid.ID, d.Fluid.Amount)
				}
				fmt.Fprintf(out, " next_start=%d\n", d.NextStartTick)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header", false, "read only the uncompressed-size header line")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
