package logistics

import (
	"io"
	"log"

	"dronelogistics.ai/internal/protocol"
	"dronelogistics.ai/internal/sim/grid"
)

type State uint8

const (
	StateIdle State = iota
	StateSelecting
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "SELECTING"
	case StateExecuting:
		return "EXECUTING"
	default:
		return "IDLE"
	}
}

// Phase is the transport sub-action a task is currently driven by.
type Phase uint8

const (
	PhaseNone Phase = iota
	PhaseExportItem
	PhaseExportFluid
	PhaseImportItem
	PhaseImportFluid
)

func (p Phase) String() string {
	switch p {
	case PhaseExportItem:
		return "EXPORT_ITEM"
	case PhaseExportFluid:
		return "EXPORT_FLUID"
	case PhaseImportItem:
		return "IMPORT_ITEM"
	case PhaseImportFluid:
		return "IMPORT_FLUID"
	default:
		return "NONE"
	}
}

func (p Phase) IsImport() bool { return p == PhaseImportItem || p == PhaseImportFluid }

func (p Phase) IsExport() bool { return p == PhaseExportItem || p == PhaseExportFluid }

// Target is where a phase driver has to go and what it moves there.
type Target struct {
	EndpointID string
	Pos        grid.Vec3i
	Side       grid.Face
	Payload    Resource
}

// Driver runs one sub-action across many ticks.
type Driver interface {
	// Start runs the sub-action's own pre-check and launches it.
	Start() bool
	IsRunning() bool
}

// Env is everything the machine needs from the drone and its world.
type Env interface {
	Area() grid.Area
	EndpointsIn(box grid.AABB) []Endpoint
	HeldItem() Resource
	HeldFluid() Resource
	IsLocationReachable(pos grid.Vec3i) bool
	NewDriver(phase Phase, target Target) Driver
}

// Machine drives one drone through IDLE -> SELECTING -> EXECUTING and back.
// It is not safe for concurrent use; the owning tick loop calls it.
type Machine struct {
	droneID string
	env     Env
	reg     *Registry
	sel     *Selector
	log     *log.Logger
	sink    EventSink

	state  State
	task   *Task
	phase  Phase
	driver Driver
	code   string
}

func NewMachine(droneID string, env Env, logger *log.Logger, sink EventSink) *Machine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Machine{
		droneID: droneID,
		env:     env,
		reg:     NewRegistry(),
		sel:     NewSelector(droneID + "-"),
		log:     logger,
		sink:    sink,
	}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Phase() Phase { return m.phase }

func (m *Machine) Task() *Task { return m.task }

func (m *Machine) Registry() *Registry { return m.reg }

// LastCode is the failure code of the most recent transition to IDLE.
func (m *Machine) LastCode() string { return m.code }

// Start rescans the area and tries to launch a task. False means the drone
// has nothing to do and should try again later.
func (m *Machine) Start() bool {
	if m.task != nil {
		m.discard(m.task, protocol.ErrSuperseded)
	}
	m.driver = nil
	m.phase = PhaseNone
	m.state = StateSelecting

	area := m.env.Area()
	box, ok := area.Bounds()
	if !ok {
		m.reg.Clear()
		m.toIdle(protocol.ErrEmptyArea)
		return false
	}
	n := m.reg.Rebuild(area, m.env.EndpointsIn(box))
	m.emit(Event{Type: EventRescan, Drone: m.droneID, Endpoints: n})
	return m.selectAndExecute()
}

// Tick polls the running sub-action. It returns false once the machine is idle.
func (m *Machine) Tick() bool {
	if m.task == nil || m.driver == nil {
		m.task, m.driver = nil, nil
		m.state = StateIdle
		return false
	}
	if m.driver.IsRunning() {
		// The slot may have been cleared externally; claim it again.
		m.task.InformRequester()
		return true
	}

	t, phase := m.task, m.phase
	m.driver = nil
	m.phase = PhaseNone
	t.ReleaseReservation()

	if phase.IsExport() {
		m.task = nil
		ev := taskEvent(EventDone, m.droneID, t)
		ev.Phase = phase.String()
		m.emit(ev)
		m.toIdle("")
		return false
	}

	if t.IsStillValid(m.held()) {
		if m.execute(t) {
			ev := taskEvent(EventResume, m.droneID, t)
			ev.Phase = m.phase.String()
			m.emit(ev)
			return true
		}
	} else {
		m.code = protocol.ErrStale
	}
	m.discard(t, m.code)
	return m.selectAndExecute()
}

// Abort drops the current task, releasing its reservation.
func (m *Machine) Abort() {
	if m.task != nil {
		m.discard(m.task, protocol.ErrAborted)
	}
	m.driver = nil
	m.phase = PhaseNone
	m.toIdle(protocol.ErrAborted)
}

func (m *Machine) selectAndExecute() bool {
	m.state = StateSelecting
	t, ok := m.sel.Select(m.reg, m.held())
	if !ok {
		m.toIdle(protocol.ErrNoTask)
		return false
	}
	m.emit(taskEvent(EventSelect, m.droneID, t))
	if !m.execute(t) {
		m.discard(t, m.code)
		m.toIdle(m.code)
		return false
	}
	return true
}

// execute picks the phase (cargo on board is delivered before anything is
// picked up), checks the target, and launches the driver.
func (m *Machine) execute(t *Task) bool {
	var (
		phase  Phase
		target Target
	)
	item, fluid := m.env.HeldItem(), m.env.HeldFluid()
	switch {
	case !item.IsEmpty():
		phase = PhaseExportItem
	case !fluid.IsEmpty():
		phase = PhaseExportFluid
	case !t.Item().IsEmpty():
		phase = PhaseImportItem
	default:
		phase = PhaseImportFluid
	}

	if phase.IsExport() {
		target = Target{EndpointID: t.Requester.ID(), Pos: t.Requester.Pos(), Side: t.Requester.Side(), Payload: t.Payload}
	} else {
		if t.Provider == nil {
			m.code = protocol.ErrInvalidTarget
			return false
		}
		target = Target{EndpointID: t.Provider.ID(), Pos: t.Provider.Pos(), Side: t.Provider.Side(), Payload: t.Payload}
	}

	if !m.pathfindable(target.Pos) {
		m.code = protocol.ErrUnreachable
		return false
	}
	d := m.env.NewDriver(phase, target)
	if d == nil || !d.Start() {
		m.code = protocol.ErrPrecheck
		return false
	}

	m.task = t
	m.driver = d
	m.phase = phase
	m.state = StateExecuting
	m.code = ""
	if !t.InformRequester() {
		m.log.Printf("task %s: requester %s already reserved", t.ID, t.Requester.ID())
	}
	ev := taskEvent(EventStart, m.droneID, t)
	ev.Phase = phase.String()
	m.emit(ev)
	return true
}

// pathfindable reports whether any face of pos can be reached.
func (m *Machine) pathfindable(pos grid.Vec3i) bool {
	for _, f := range grid.Faces {
		if m.env.IsLocationReachable(pos.Offset(f)) {
			return true
		}
	}
	return false
}

func (m *Machine) held() Resource {
	if item := m.env.HeldItem(); !item.IsEmpty() {
		return item
	}
	if fluid := m.env.HeldFluid(); !fluid.IsEmpty() {
		return fluid
	}
	return Empty()
}

func (m *Machine) discard(t *Task, code string) {
	t.ReleaseReservation()
	if m.task == t {
		m.task = nil
	}
	ev := taskEvent(EventDiscard, m.droneID, t)
	ev.Code = code
	m.emit(ev)
	m.log.Printf("task %s discarded: %s", t.ID, code)
}

func (m *Machine) toIdle(code string) {
	m.state = StateIdle
	m.code = code
	m.emit(Event{Type: EventIdle, Drone: m.droneID, Code: code})
}

func (m *Machine) emit(ev Event) {
	if m.sink != nil {
		m.sink(ev)
	}
}
