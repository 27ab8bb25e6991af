package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var tuningPath string

	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario against its schema and build it into a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, sc, _, err := loadScenarioWorld(args[0], tuningPath, nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: world=%s frames=%d drones=%d solid=%d\n",
				sc.WorldID, len(w.Frames()), len(w.Drones()), len(sc.Solid)+len(sc.SolidBoxes))
			return err
		},
	}
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "path to tuning.yaml (default: built-in defaults)")
	return cmd
}
