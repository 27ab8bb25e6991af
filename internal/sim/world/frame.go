package world

import (
	"sort"

	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
)

// FrameConfig describes a logistics frame attached to a container face.
type FrameConfig struct {
	ID       string
	Pos      grid.Vec3i
	Side     grid.Face
	Roles    logistics.Roles
	Priority int

	Items  map[string]int
	Fluids map[string]int

	// Demand lists what a requester accepts; Amount is the stock level it wants to reach.
	Demand []logistics.Resource
}

// Frame is a container plus the logistics frame on one of its faces. It
// satisfies both logistics.Provider and logistics.Requester; Roles decides
// under which the registry files it.
type Frame struct {
	id       string
	pos      grid.Vec3i
	side     grid.Face
	roles    logistics.Roles
	priority int

	items  map[string]int
	fluids map[string]int
	demand []logistics.Resource

	incoming logistics.Resource
	removed  bool
}

func newFrame(cfg FrameConfig) *Frame {
	f := &Frame{
		id:       cfg.ID,
		pos:      cfg.Pos,
		side:     cfg.Side,
		roles:    cfg.Roles,
		priority: cfg.Priority,
		items:    map[string]int{},
		fluids:   map[string]int{},
		demand:   append([]logistics.Resource(nil), cfg.Demand...),
	}
	for id, n := range cfg.Items {
		if n > 0 {
			f.items[id] = n
		}
	}
	for id, n := range cfg.Fluids {
		if n > 0 {
			f.fluids[id] = n
		}
	}
	return f
}

func (f *Frame) ID() string             { return f.id }
func (f *Frame) Pos() grid.Vec3i        { return f.pos }
func (f *Frame) Side() grid.Face        { return f.side }
func (f *Frame) Roles() logistics.Roles { return f.roles }
func (f *Frame) Valid() bool            { return f != nil && !f.removed }
func (f *Frame) Priority() int          { return f.priority }

func (f *Frame) Demand() []logistics.Resource {
	return append([]logistics.Resource(nil), f.demand...)
}

// Offers lists items then fluids, each sorted by id.
func (f *Frame) Offers() []logistics.Resource {
	out := make([]logistics.Resource, 0, len(f.items)+len(f.fluids))
	for _, id := range sortedKeys(f.items) {
		out = append(out, logistics.Item(id, f.items[id]))
	}
	for _, id := range sortedKeys(f.fluids) {
		out = append(out, logistics.Fluid(id, f.fluids[id]))
	}
	return out
}

func (f *Frame) CanSupply(r logistics.Resource) bool { return f.Valid() && f.Stock(r) > 0 }

func (f *Frame) AvailableAmount(r logistics.Resource) int {
	if !f.Valid() {
		return 0
	}
	return f.Stock(r)
}

// Stock is the amount of r's kind currently held.
func (f *Frame) Stock(r logistics.Resource) int {
	switch r.Kind {
	case logistics.KindItem:
		return f.items[r.ID]
	case logistics.KindFluid:
		return f.fluids[r.ID]
	}
	return 0
}

func (f *Frame) FilterMatches(r logistics.Resource) bool {
	return logistics.MatchesAny(r, f.demand)
}

func (f *Frame) RequestedAmount(r logistics.Resource) int {
	for _, d := range f.demand {
		if !d.SameKind(r) {
			continue
		}
		if n := d.Amount - f.Stock(r); n > 0 {
			return n
		}
		return 0
	}
	return 0
}

func (f *Frame) IncomingReservation() logistics.Resource { return f.incoming }

// ReserveIncoming claims the slot for r's kind. Claims of the same kind share
// the slot.
func (f *Frame) ReserveIncoming(r logistics.Resource) bool {
	if !f.Valid() || r.IsEmpty() {
		return false
	}
	if !f.incoming.IsEmpty() && !f.incoming.SameKind(r) {
		return false
	}
	f.incoming = r
	return true
}

func (f *Frame) ClearIncoming(r logistics.Resource) {
	if f.incoming.SameKind(r) {
		f.incoming = logistics.Empty()
	}
}

// take removes up to n of r's kind and returns how much was removed.
func (f *Frame) take(r logistics.Resource, n int) int {
	have := f.Stock(r)
	if n > have {
		n = have
	}
	if n <= 0 {
		return 0
	}
	f.adjust(r, -n)
	return n
}

func (f *Frame) put(r logistics.Resource, n int) {
	if n > 0 {
		f.adjust(r, n)
	}
}

func (f *Frame) adjust(r logistics.Resource, delta int) {
	m := f.items
	if r.Kind == logistics.KindFluid {
		m = f.fluids
	}
	m[r.ID] += delta
	if m[r.ID] <= 0 {
		delete(m, r.ID)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
