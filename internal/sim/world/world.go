package world

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
)

// World is a single-threaded logistics simulation.
// All state must be accessed only from the world loop goroutine; Add*/Remove*
// may be called directly before Run starts.
type World struct {
	cfg WorldConfig
	log *log.Logger

	tick atomic.Uint64

	solid   map[grid.Vec3i]bool
	frames  map[string]*Frame
	frameAt map[grid.Vec3i]*Frame
	drones  map[string]*Drone
	order   []string // drone ids, sorted

	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	// Per-tick buffers, reset at the start of every step.
	events    []logistics.Event
	transfers []TransferRecord
	totals    WorldMetrics

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	observerSub   chan ObserverSubscribeRequest
	admin         chan snapshotReq
	removeFrame   chan string

	stop     chan struct{}
	stopOnce sync.Once

	metrics atomic.Value // WorldMetrics
	layout  atomic.Value // Layout
}

func New(cfg WorldConfig, logger *log.Logger) *World {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w := &World{
		cfg:           cfg,
		log:           logger,
		solid:         map[grid.Vec3i]bool{},
		frames:        map[string]*Frame{},
		frameAt:       map[grid.Vec3i]*Frame{},
		drones:        map[string]*Drone{},
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		admin:         make(chan snapshotReq, 4),
		removeFrame:   make(chan string, 64),
		stop:          make(chan struct{}),
	}
	w.metrics.Store(WorldMetrics{})
	w.refreshLayout()
	return w
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

// SetSolid marks a cell as blocked (or clears it).
func (w *World) SetSolid(p grid.Vec3i, solid bool) {
	if solid {
		w.solid[p] = true
	} else {
		delete(w.solid, p)
	}
}

// Passable reports whether a drone may occupy p: inside the bounds, not solid
// and not taken by a frame's container.
func (w *World) Passable(p grid.Vec3i) bool {
	if !w.cfg.Bounds.Contains(p) || w.solid[p] {
		return false
	}
	return w.frameAt[p] == nil
}

func (w *World) AddFrame(cfg FrameConfig) (*Frame, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("frame: empty id")
	}
	if _, ok := w.frames[cfg.ID]; ok {
		return nil, fmt.Errorf("frame %s: duplicate id", cfg.ID)
	}
	if other := w.frameAt[cfg.Pos]; other != nil {
		return nil, fmt.Errorf("frame %s: cell %s already taken by %s", cfg.ID, cfg.Pos, other.id)
	}
	f := newFrame(cfg)
	w.frames[f.id] = f
	w.frameAt[f.pos] = f
	w.refreshLayout()
	return f, nil
}

// RemoveFrame detaches a frame. Tasks still pointing at it see it as invalid.
func (w *World) RemoveFrame(id string) bool {
	f := w.frames[id]
	if f == nil {
		return false
	}
	f.removed = true
	f.incoming = logistics.Empty()
	delete(w.frames, id)
	if w.frameAt[f.pos] == f {
		delete(w.frameAt, f.pos)
	}
	w.refreshLayout()
	return true
}

// RequestRemoveFrame queues a frame removal for the next tick boundary.
// It is safe to call from other goroutines.
func (w *World) RequestRemoveFrame(id string) bool {
	select {
	case w.removeFrame <- id:
		return true
	default:
		return false
	}
}

func (w *World) AddDrone(cfg DroneConfig) (*Drone, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("drone: empty id")
	}
	if _, ok := w.drones[cfg.ID]; ok {
		return nil, fmt.Errorf("drone %s: duplicate id", cfg.ID)
	}
	d := &Drone{
		id:       cfg.ID,
		pos:      cfg.Pos,
		area:     cfg.Area,
		item:     cfg.Item,
		fluid:    cfg.Fluid,
		itemCap:  cfg.ItemCapacity,
		fluidCap: cfg.FluidCapacity,
	}
	if d.itemCap <= 0 {
		d.itemCap = w.cfg.DroneItemCapacity
	}
	if d.fluidCap <= 0 {
		d.fluidCap = w.cfg.DroneFluidCapacity
	}
	d.machine = logistics.NewMachine(d.id, droneEnv{w: w, d: d}, w.log, w.recordEvent)
	w.drones[d.id] = d
	w.order = append(w.order, d.id)
	sort.Strings(w.order)
	w.refreshLayout()
	return d, nil
}

func (w *World) Frame(id string) *Frame { return w.frames[id] }

func (w *World) Drone(id string) *Drone { return w.drones[id] }

// Frames returns the attached frames sorted by id.
func (w *World) Frames() []*Frame {
	out := make([]*Frame, 0, len(w.frames))
	for _, f := range w.frames {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Drones returns the drones in tick order.
func (w *World) Drones() []*Drone {
	out := make([]*Drone, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.drones[id])
	}
	return out
}

// endpointsIn lists valid frames inside box, sorted by id so registration
// order (and with it tie-breaking) does not depend on map iteration.
func (w *World) endpointsIn(box grid.AABB) []logistics.Endpoint {
	var out []logistics.Endpoint
	for _, f := range w.Frames() {
		if f.Valid() && box.Contains(f.pos) {
			out = append(out, f)
		}
	}
	return out
}

func (w *World) recordEvent(ev logistics.Event) {
	w.events = append(w.events, ev)
	switch ev.Type {
	case logistics.EventStart:
		w.totals.TasksStarted++
	case logistics.EventDone:
		w.totals.TasksDone++
	case logistics.EventDiscard:
		w.totals.TasksDiscarded++
	}
}

func (w *World) recordTransfer(tr TransferRecord) {
	w.transfers = append(w.transfers, tr)
	w.totals.Transferred += uint64(tr.Amount)
}

// Layout is the static part of the world that observers fetch once.
type Layout struct {
	Frames []FrameInfo `json:"frames"`
	Drones []string    `json:"drones"`
}

type FrameInfo struct {
	ID       string `json:"id"`
	Pos      [3]int `json:"pos"`
	Side     string `json:"side"`
	Roles    string `json:"roles"`
	Priority int    `json:"priority"`
}

// Layout is safe to call from other goroutines.
func (w *World) Layout() Layout {
	l, _ := w.layout.Load().(Layout)
	return l
}

func (w *World) refreshLayout() {
	l := Layout{Drones: append([]string{}, w.order...)}
	for _, f := range w.Frames() {
		l.Frames = append(l.Frames, FrameInfo{
			ID:       f.id,
			Pos:      f.pos.ToArray(),
			Side:     f.side.String(),
			Roles:    rolesString(f.roles),
			Priority: f.priority,
		})
	}
	w.layout.Store(l)
}

func rolesString(r logistics.Roles) string {
	switch {
	case r.Has(logistics.RoleStorage):
		return "storage"
	case r.Has(logistics.RoleProvider):
		return "provider"
	case r.Has(logistics.RoleRequester):
		return "requester"
	}
	return "none"
}

// ParseRoles is the inverse of the role names used in layouts and scenario files.
func ParseRoles(s string) (logistics.Roles, bool) {
	switch s {
	case "storage":
		return logistics.RoleStorage, true
	case "provider":
		return logistics.RoleProvider, true
	case "requester":
		return logistics.RoleRequester, true
	}
	return 0, false
}
