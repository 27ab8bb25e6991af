package logistics

import (
	"sort"

	"dronelogistics.ai/internal/sim/grid"
)

type stubFrame struct {
	id       string
	pos      grid.Vec3i
	side     grid.Face
	roles    Roles
	priority int

	stock    map[string]Resource
	want     []Resource
	incoming Resource
	removed  bool

	reserveCalls int
	clearCalls   int
}

func newProvider(id string, pos grid.Vec3i, stock ...Resource) *stubFrame {
	f := &stubFrame{id: id, pos: pos, side: grid.FaceUp, roles: RoleProvider, stock: map[string]Resource{}}
	for _, r := range stock {
		f.stock[stockKey(r)] = r
	}
	return f
}

func newRequester(id string, pos grid.Vec3i, priority int, want ...Resource) *stubFrame {
	return &stubFrame{id: id, pos: pos, side: grid.FaceUp, roles: RoleRequester, priority: priority, want: want, stock: map[string]Resource{}}
}

func stockKey(r Resource) string { return r.Kind.String() + ":" + r.ID }

func (f *stubFrame) ID() string      { return f.id }
func (f *stubFrame) Pos() grid.Vec3i { return f.pos }
func (f *stubFrame) Side() grid.Face { return f.side }
func (f *stubFrame) Roles() Roles    { return f.roles }
func (f *stubFrame) Valid() bool     { return !f.removed }

func (f *stubFrame) Offers() []Resource {
	out := make([]Resource, 0, len(f.stock))
	for _, r := range f.stock {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return stockKey(out[i]) < stockKey(out[j]) })
	return out
}

func (f *stubFrame) CanSupply(r Resource) bool { return f.AvailableAmount(r) > 0 }

func (f *stubFrame) AvailableAmount(r Resource) int {
	s, ok := f.stock[stockKey(r)]
	if !ok || !s.SameKind(r) {
		return 0
	}
	return s.Amount
}

func (f *stubFrame) Priority() int                 { return f.priority }
func (f *stubFrame) FilterMatches(r Resource) bool { return MatchesAny(r, f.want) }

func (f *stubFrame) RequestedAmount(r Resource) int {
	for _, w := range f.want {
		if w.SameKind(r) {
			return w.Amount - f.AvailableAmount(r)
		}
	}
	return 0
}

func (f *stubFrame) IncomingReservation() Resource { return f.incoming }

func (f *stubFrame) ReserveIncoming(r Resource) bool {
	f.reserveCalls++
	if !f.incoming.IsEmpty() && !f.incoming.SameKind(r) {
		return false
	}
	f.incoming = r
	return true
}

func (f *stubFrame) ClearIncoming(r Resource) {
	f.clearCalls++
	if f.incoming.SameKind(r) {
		f.incoming = Empty()
	}
}

// stubDriver runs for a fixed number of polls, then calls done once.
type stubDriver struct {
	phase   Phase
	target  Target
	startOK bool
	ticks   int
	done    func()
	started bool
}

func (d *stubDriver) Start() bool {
	d.started = d.startOK
	return d.startOK
}

func (d *stubDriver) IsRunning() bool {
	if !d.started {
		return false
	}
	if d.ticks > 0 {
		d.ticks--
		return true
	}
	if d.done != nil {
		d.done()
		d.done = nil
	}
	d.started = false
	return false
}

type stubEnv struct {
	area        grid.Area
	endpoints   []Endpoint
	item        Resource
	fluid       Resource
	unreachable bool

	startOK   bool
	ticks     int
	onDone    func(d *stubDriver)
	drivers   []*stubDriver
	scanBoxes []grid.AABB
}

func newStubEnv(endpoints ...Endpoint) *stubEnv {
	return &stubEnv{
		area:      grid.AreaFromBoxes(grid.NewAABB(grid.Vec3i{X: -8, Y: -8, Z: -8}, grid.Vec3i{X: 8, Y: 8, Z: 8})),
		endpoints: endpoints,
		startOK:   true,
		ticks:     1,
	}
}

func (e *stubEnv) Area() grid.Area { return e.area }

func (e *stubEnv) EndpointsIn(box grid.AABB) []Endpoint {
	e.scanBoxes = append(e.scanBoxes, box)
	var out []Endpoint
	for _, ep := range e.endpoints {
		if box.Contains(ep.Pos()) {
			out = append(out, ep)
		}
	}
	return out
}

func (e *stubEnv) HeldItem() Resource  { return e.item }
func (e *stubEnv) HeldFluid() Resource { return e.fluid }

func (e *stubEnv) IsLocationReachable(grid.Vec3i) bool { return !e.unreachable }

func (e *stubEnv) NewDriver(phase Phase, target Target) Driver {
	d := &stubDriver{phase: phase, target: target, startOK: e.startOK, ticks: e.ticks}
	if e.onDone != nil {
		d.done = func() { e.onDone(d) }
	}
	e.drivers = append(e.drivers, d)
	return d
}

// transferOnDone moves payloads between the stub frames and the drone's cargo.
func (e *stubEnv) transferOnDone(frames map[string]*stubFrame) func(d *stubDriver) {
	return func(d *stubDriver) {
		f := frames[d.target.EndpointID]
		p := d.target.Payload
		switch d.phase {
		case PhaseImportItem, PhaseImportFluid:
			s := f.stock[stockKey(p)]
			s.Amount -= p.Amount
			f.stock[stockKey(p)] = s
			if p.Kind == KindItem {
				e.item = p
			} else {
				e.fluid = p
			}
		case PhaseExportItem, PhaseExportFluid:
			s, ok := f.stock[stockKey(p)]
			if !ok {
				s = p.WithAmount(0)
			}
			s.Amount += p.Amount
			f.stock[stockKey(p)] = s
			if p.Kind == KindItem {
				e.item = Empty()
			} else {
				e.fluid = Empty()
			}
		}
	}
}
