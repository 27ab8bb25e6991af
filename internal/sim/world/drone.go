package world

import (
	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
)

type DroneConfig struct {
	ID   string
	Pos  grid.Vec3i
	Area grid.Area

	// Zero means the world default.
	ItemCapacity  int
	FluidCapacity int

	// Cargo on board at creation (snapshot resume).
	Item  logistics.Resource
	Fluid logistics.Resource
}

// Drone is a logistics drone with one item slot and one fluid tank.
type Drone struct {
	id   string
	pos  grid.Vec3i
	area grid.Area

	item     logistics.Resource
	fluid    logistics.Resource
	itemCap  int
	fluidCap int

	machine *logistics.Machine
	driver  *phaseDriver

	// Earliest tick at which an idle drone rescans its area.
	nextStartTick uint64
	lastCode      string
}

func (d *Drone) ID() string                  { return d.id }
func (d *Drone) Pos() grid.Vec3i             { return d.pos }
func (d *Drone) Area() grid.Area             { return d.area }
func (d *Drone) Item() logistics.Resource    { return d.item }
func (d *Drone) Fluid() logistics.Resource   { return d.fluid }
func (d *Drone) Machine() *logistics.Machine { return d.machine }
func (d *Drone) LastCode() string            { return d.lastCode }

func (d *Drone) cargo(k logistics.Kind) logistics.Resource {
	if k == logistics.KindFluid {
		return d.fluid
	}
	return d.item
}

// room is how much more of r the matching slot can take.
func (d *Drone) room(r logistics.Resource) int {
	held, capacity := d.item, d.itemCap
	if r.Kind == logistics.KindFluid {
		held, capacity = d.fluid, d.fluidCap
	}
	if held.IsEmpty() {
		return capacity
	}
	if !held.SameKind(r) {
		return 0
	}
	return capacity - held.Amount
}

func (d *Drone) load(r logistics.Resource) {
	if r.IsEmpty() {
		return
	}
	slot := &d.item
	if r.Kind == logistics.KindFluid {
		slot = &d.fluid
	}
	if slot.IsEmpty() {
		*slot = r
		return
	}
	slot.Amount += r.Amount
}

func (d *Drone) unload(k logistics.Kind, n int) {
	slot := &d.item
	if k == logistics.KindFluid {
		slot = &d.fluid
	}
	slot.Amount -= n
	if slot.Amount <= 0 {
		*slot = logistics.Empty()
	}
}

// droneEnv adapts one drone and its world to logistics.Env.
type droneEnv struct {
	w *World
	d *Drone
}

func (e droneEnv) Area() grid.Area { return e.d.area }

func (e droneEnv) EndpointsIn(box grid.AABB) []logistics.Endpoint {
	return e.w.endpointsIn(box)
}

func (e droneEnv) HeldItem() logistics.Resource  { return e.d.item }
func (e droneEnv) HeldFluid() logistics.Resource { return e.d.fluid }

func (e droneEnv) IsLocationReachable(p grid.Vec3i) bool { return e.w.Passable(p) }

func (e droneEnv) NewDriver(phase logistics.Phase, target logistics.Target) logistics.Driver {
	drv := &phaseDriver{w: e.w, d: e.d, phase: phase, target: target}
	e.d.driver = drv
	return drv
}
