package scenario

import (
	"io"
	"log"
	"strings"
	"testing"

	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/tuning"
	"dronelogistics.ai/internal/sim/world"
)

func TestLoadAndBuildLine(t *testing.T) {
	sc, err := Load("testdata/line.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.WorldID != "line" || len(sc.Frames) != 2 || len(sc.Drones) != 1 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}

	w := world.New(tuning.Defaults().WorldConfig(sc.WorldID), log.New(io.Discard, "", 0))
	if err := sc.Build(w); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if w.Passable(grid.Vec3i{X: 3}) {
		t.Fatalf("solid cell should block")
	}
	r := w.Frame("R")
	if r == nil || r.Priority() != 1 || len(r.Demand()) != 1 {
		t.Fatalf("requester not built: %+v", r)
	}
	d := w.Drone("D1")
	if d == nil || d.Area().Len() != 9*4*3 {
		t.Fatalf("drone area not built")
	}

	for i := 0; i < 40; i++ {
		w.StepOnce()
	}
	if got := w.Frame("R").Stock(r.Demand()[0]); got != 10 {
		t.Fatalf("requester stock=%d want 10", got)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing drones": `
world_id: w
frames: []
`,
		"bad role": `
world_id: w
frames:
  - {id: P, pos: [0,0,0], role: sink}
drones:
  - {id: D1, pos: [0,1,0], area: {cells: [[0,1,0]]}}
`,
		"short vector": `
world_id: w
frames: []
drones:
  - {id: D1, pos: [0,1], area: {cells: [[0,1,0]]}}
`,
		"unknown key": `
world_id: w
frames: []
drones:
  - {id: D1, pos: [0,1,0], speed: 3, area: {cells: [[0,1,0]]}}
`,
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseRejectsCrossReferenceErrors(t *testing.T) {
	_, err := Parse([]byte(`
world_id: w
frames:
  - {id: P, pos: [0,0,0], role: provider}
  - {id: P, pos: [1,0,0], role: requester}
drones:
  - {id: D1, pos: [0,1,0], area: {cells: [[0,1,0]]}}
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("err=%v", err)
	}

	_, err = Parse([]byte(`
world_id: w
frames: []
drones:
  - id: D1
    pos: [0,1,0]
    area: {cells: [[0,1,0]]}
    cargo:
      - {kind: item, id: IRON, amount: 1}
      - {kind: item, id: GOLD, amount: 1}
`))
	if err == nil || !strings.Contains(err.Error(), "more than one item cargo") {
		t.Fatalf("err=%v", err)
	}
}

func TestBuildLoadsCargo(t *testing.T) {
	sc, err := Parse([]byte(`
world_id: w
frames: []
drones:
  - id: D1
    pos: [0,1,0]
    area: {cells: [[0,1,0]]}
    cargo:
      - {kind: fluid, id: WATER, amount: 500}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := world.New(world.WorldConfig{ID: "w"}, nil)
	if err := sc.Build(w); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f := w.Drone("D1").Fluid(); f.ID != "WATER" || f.Amount != 500 {
		t.Fatalf("fluid cargo=%+v", f)
	}
}

func TestShippedScenarioBuilds(t *testing.T) {
	sc, err := Load("../../../configs/scenario.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := world.New(tuning.Defaults().WorldConfig(sc.WorldID), nil)
	if err := sc.Build(w); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(w.Frames()) != 4 || len(w.Drones()) != 2 {
		t.Fatalf("frames=%d drones=%d", len(w.Frames()), len(w.Drones()))
	}
	if w.Passable(grid.Vec3i{X: 4, Y: 1}) {
		t.Fatalf("wall cell should be solid")
	}
}
