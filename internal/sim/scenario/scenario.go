// Package scenario loads world layouts (frames, drones, solid cells) from
// scenario.yaml files.
package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
	"dronelogistics.ai/internal/sim/world"
)

//go:embed scenario.schema.json
var schemaJSON []byte

const schemaURL = "https://dronelogistics.ai/schemas/scenario.schema.json"

type Scenario struct {
	WorldID     string     `yaml:"world_id" json:"world_id"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Solid       [][3]int   `yaml:"solid,omitempty" json:"solid,omitempty"`
	SolidBoxes  []Box      `yaml:"solid_boxes,omitempty" json:"solid_boxes,omitempty"`
	Frames      []FrameDef `yaml:"frames" json:"frames"`
	Drones      []DroneDef `yaml:"drones" json:"drones"`
}

type Box struct {
	Min [3]int `yaml:"min" json:"min"`
	Max [3]int `yaml:"max" json:"max"`
}

type ResourceDef struct {
	Kind   string `yaml:"kind" json:"kind"`
	ID     string `yaml:"id" json:"id"`
	Amount int    `yaml:"amount" json:"amount"`
}

type FrameDef struct {
	ID       string         `yaml:"id" json:"id"`
	Pos      [3]int         `yaml:"pos" json:"pos"`
	Side     string         `yaml:"side,omitempty" json:"side,omitempty"`
	Role     string         `yaml:"role" json:"role"`
	Priority int            `yaml:"priority,omitempty" json:"priority,omitempty"`
	Items    map[string]int `yaml:"items,omitempty" json:"items,omitempty"`
	Fluids   map[string]int `yaml:"fluids,omitempty" json:"fluids,omitempty"`
	Demand   []ResourceDef  `yaml:"demand,omitempty" json:"demand,omitempty"`
}

type AreaDef struct {
	Boxes []Box    `yaml:"boxes,omitempty" json:"boxes,omitempty"`
	Cells [][3]int `yaml:"cells,omitempty" json:"cells,omitempty"`
}

type DroneDef struct {
	ID            string        `yaml:"id" json:"id"`
	Pos           [3]int        `yaml:"pos" json:"pos"`
	ItemCapacity  int           `yaml:"item_capacity,omitempty" json:"item_capacity,omitempty"`
	FluidCapacity int           `yaml:"fluid_capacity,omitempty" json:"fluid_capacity,omitempty"`
	Cargo         []ResourceDef `yaml:"cargo,omitempty" json:"cargo,omitempty"`
	Area          AreaDef       `yaml:"area" json:"area"`
}

// Load reads, schema-validates and decodes a scenario file.
func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario.yaml: %w", err)
	}
	return sc, nil
}

// Parse validates raw YAML against the embedded schema and decodes it.
func Parse(raw []byte) (Scenario, error) {
	var sc Scenario
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return sc, err
	}
	if err := validateDoc(doc); err != nil {
		return sc, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return sc, err
	}
	return sc, sc.check()
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

// validateDoc runs the schema over the YAML document after a JSON round trip,
// so numbers and maps have the shapes the validator expects.
func validateDoc(doc any) error {
	s, err := compileSchema()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

// check covers the cross-references a schema cannot express.
func (sc Scenario) check() error {
	frameIDs := map[string]bool{}
	cells := map[[3]int]string{}
	for _, f := range sc.Frames {
		if frameIDs[f.ID] {
			return fmt.Errorf("frame %s: duplicate id", f.ID)
		}
		frameIDs[f.ID] = true
		if other, ok := cells[f.Pos]; ok {
			return fmt.Errorf("frame %s: cell %v already taken by %s", f.ID, f.Pos, other)
		}
		cells[f.Pos] = f.ID
		if f.Role == "provider" && len(f.Demand) > 0 {
			return fmt.Errorf("frame %s: demand on a provider frame", f.ID)
		}
	}
	droneIDs := map[string]bool{}
	for _, d := range sc.Drones {
		if droneIDs[d.ID] {
			return fmt.Errorf("drone %s: duplicate id", d.ID)
		}
		droneIDs[d.ID] = true
		var kinds [3]bool
		for _, r := range d.Cargo {
			res, err := r.resource()
			if err != nil {
				return fmt.Errorf("drone %s: %w", d.ID, err)
			}
			if kinds[res.Kind] {
				return fmt.Errorf("drone %s: more than one %s cargo", d.ID, strings.ToLower(res.Kind.String()))
			}
			kinds[res.Kind] = true
		}
	}
	return nil
}

func (r ResourceDef) resource() (logistics.Resource, error) {
	switch r.Kind {
	case "item":
		return logistics.Item(r.ID, r.Amount), nil
	case "fluid":
		return logistics.Fluid(r.ID, r.Amount), nil
	}
	return logistics.Empty(), fmt.Errorf("unknown resource kind %q", r.Kind)
}

func (b Box) aabb() grid.AABB {
	return grid.NewAABB(grid.FromArray(b.Min), grid.FromArray(b.Max))
}

func (a AreaDef) area() grid.Area {
	boxes := make([]grid.AABB, 0, len(a.Boxes)+len(a.Cells))
	for _, b := range a.Boxes {
		boxes = append(boxes, b.aabb())
	}
	for _, c := range a.Cells {
		p := grid.FromArray(c)
		boxes = append(boxes, grid.AABB{Min: p, Max: p})
	}
	return grid.AreaFromBoxes(boxes...)
}

// Build places the scenario into an empty world.
func (sc Scenario) Build(w *world.World) error {
	for _, c := range sc.Solid {
		w.SetSolid(grid.FromArray(c), true)
	}
	for _, b := range sc.SolidBoxes {
		for _, p := range grid.AreaFromBoxes(b.aabb()).Cells() {
			w.SetSolid(p, true)
		}
	}
	for _, f := range sc.Frames {
		cfg, err := f.config()
		if err != nil {
			return err
		}
		if _, err := w.AddFrame(cfg); err != nil {
			return err
		}
	}
	for _, d := range sc.Drones {
		cfg := world.DroneConfig{
			ID:            d.ID,
			Pos:           grid.FromArray(d.Pos),
			Area:          d.Area.area(),
			ItemCapacity:  d.ItemCapacity,
			FluidCapacity: d.FluidCapacity,
		}
		for _, r := range d.Cargo {
			res, err := r.resource()
			if err != nil {
				return fmt.Errorf("drone %s: %w", d.ID, err)
			}
			if res.Kind == logistics.KindFluid {
				cfg.Fluid = res
			} else {
				cfg.Item = res
			}
		}
		if _, err := w.AddDrone(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (f FrameDef) config() (world.FrameConfig, error) {
	roles, ok := world.ParseRoles(f.Role)
	if !ok {
		return world.FrameConfig{}, fmt.Errorf("frame %s: unknown role %q", f.ID, f.Role)
	}
	side := grid.FaceUp
	if f.Side != "" {
		s, ok := grid.ParseFace(f.Side)
		if !ok {
			return world.FrameConfig{}, fmt.Errorf("frame %s: unknown side %q", f.ID, f.Side)
		}
		side = s
	}
	cfg := world.FrameConfig{
		ID:       f.ID,
		Pos:      grid.FromArray(f.Pos),
		Side:     side,
		Roles:    roles,
		Priority: f.Priority,
		Items:    f.Items,
		Fluids:   f.Fluids,
	}
	for _, d := range f.Demand {
		r, err := d.resource()
		if err != nil {
			return world.FrameConfig{}, fmt.Errorf("frame %s: %w", f.ID, err)
		}
		cfg.Demand = append(cfg.Demand, r)
	}
	return cfg, nil
}
