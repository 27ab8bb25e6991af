package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dronelogistics.ai/internal/sim/logistics"
	"dronelogistics.ai/internal/sim/scenario"
	"dronelogistics.ai/internal/sim/tuning"
	"dronelogistics.ai/internal/sim/world"
)

// loadScenarioWorld builds a fresh world from a scenario file. An empty
// tuningPath means tuning defaults.
func loadScenarioWorld(scenarioPath, tuningPath string, logger *log.Logger) (*world.World, scenario.Scenario, tuning.Tuning, error) {
	tune := tuning.Defaults()
	if tuningPath != "" {
		t, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, scenario.Scenario{}, tune, err
		}
		tune = t
	}
	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, sc, tune, err
	}
	w := world.New(tune.WorldConfig(sc.WorldID), logger)
	if err := sc.Build(w); err != nil {
		return nil, sc, tune, fmt.Errorf("build scenario: %w", err)
	}
	return w, sc, tune, nil
}

func droneLogger(cmd *cobra.Command, verbose bool) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "[drones] ", 0)
}

// worldSummary is the end-of-run report printed by run and replay.
type worldSummary struct {
	WorldID string             `json:"world_id"`
	Tick    uint64             `json:"tick"`
	Metrics world.WorldMetrics `json:"metrics"`
	Frames  []frameSummary     `json:"frames"`
	Drones  []world.DroneState `json:"drones"`
	Digest  string             `json:"digest,omitempty"`
}

type frameSummary struct {
	ID       string         `json:"id"`
	Roles    string         `json:"roles"`
	Stock    map[string]int `json:"stock,omitempty"`
	Incoming string         `json:"incoming,omitempty"`
}

func summarize(w *world.World, last world.TickLogEntry) worldSummary {
	s := worldSummary{
		WorldID: w.Config().ID,
		Tick:    w.CurrentTick(),
		Metrics: w.Metrics(),
		Drones:  last.Drones,
		Digest:  last.Digest,
	}
	roles := map[string]string{}
	for _, fi := range w.Layout().Frames {
		roles[fi.ID] = fi.Roles
	}
	for _, f := range w.Frames() {
		fs := frameSummary{ID: f.ID(), Roles: roles[f.ID()]}
		for _, r := range f.Offers() {
			if fs.Stock == nil {
				fs.Stock = map[string]int{}
			}
			fs.Stock[strings.ToLower(r.Kind.String())+":"+r.ID] = r.Amount
		}
		if in := f.IncomingReservation(); !in.IsEmpty() {
			fs.Incoming = in.String()
		}
		s.Frames = append(s.Frames, fs)
	}
	return s
}

func writeSummary(out io.Writer, s worldSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	m := s.Metrics
	fmt.Fprintf(out, "world=%s tick=%d started=%d done=%d discarded=%d transferred=%d\n",
		s.WorldID, s.Tick, m.TasksStarted, m.TasksDone, m.TasksDiscarded, m.Transferred)
	for _, f := range s.Frames {
		fmt.Fprintf(out, "frame %-8s %-9s stock=%s", f.ID, f.Roles, formatCounts(f.Stock))
		if f.Incoming != "" {
			fmt.Fprintf(out, " incoming=%s", f.Incoming)
		}
		fmt.Fprintln(out)
	}
	for _, d := range s.Drones {
		fmt.Fprintf(out, "drone %-8s %-9s pos=%v", d.ID, d.State, d.Pos)
		if d.TaskID != "" {
			fmt.Fprintf(out, " task=%s phase=%s", d.TaskID, d.Phase)
		}
		if d.Item != "" {
			fmt.Fprintf(out, " item=%s", d.Item)
		}
		if d.Fluid != "" {
			fmt.Fprintf(out, " fluid=%s", d.Fluid)
		}
		if d.Code != "" {
			fmt.Fprintf(out, " code=%s", d.Code)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ",")
}

func formatEvent(tick uint64, ev logistics.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%6d %-6s %-12s", tick, ev.Drone, ev.Type)
	if ev.TaskID != "" {
		fmt.Fprintf(&b, " %s", ev.TaskID)
	}
	if ev.Phase != "" {
		fmt.Fprintf(&b, " phase=%s", ev.Phase)
	}
	if ev.Provider != "" || ev.Requester != "" {
		fmt.Fprintf(&b, " %s->%s", ev.Provider, ev.Requester)
	}
	if ev.Resource != "" {
		fmt.Fprintf(&b, " %s %s x%d", ev.Kind, ev.Resource, ev.Amount)
	}
	if ev.Code != "" {
		fmt.Fprintf(&b, " code=%s", ev.Code)
	}
	if ev.Type == logistics.EventRescan {
		fmt.Fprintf(&b, " endpoints=%d", ev.Endpoints)
	}
	return b.String()
}
