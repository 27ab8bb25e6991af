package logistics

import (
	"testing"

	"dronelogistics.ai/internal/protocol"
	"dronelogistics.ai/internal/sim/grid"
)

type eventLog struct{ events []Event }

func (l *eventLog) sink(ev Event) { l.events = append(l.events, ev) }

func (l *eventLog) count(typ EventType) int {
	n := 0
	for _, ev := range l.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (l *eventLog) last(typ EventType) (Event, bool) {
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == typ {
			return l.events[i], true
		}
	}
	return Event{}, false
}

func TestMachineScenarioImportThenExport(t *testing.T) {
	p := newProvider("A", grid.Vec3i{}, Item("X", 64))
	r := newRequester("B", grid.Vec3i{X: 2}, 1, Item("X", 64))
	env := newStubEnv(p, r)
	env.onDone = env.transferOnDone(map[string]*stubFrame{"A": p, "B": r})
	var evs eventLog
	m := NewMachine("D1", env, nil, evs.sink)

	if !m.Start() {
		t.Fatalf("expected a task to start, last code=%s", m.LastCode())
	}
	task := m.Task()
	if task.Provider != p || task.Requester != r || task.Payload != Item("X", 64) {
		t.Fatalf("unexpected task %v", task)
	}
	if m.State() != StateExecuting || m.Phase() != PhaseImportItem {
		t.Fatalf("state=%s phase=%s", m.State(), m.Phase())
	}
	if r.incoming != Item("X", 64) {
		t.Fatalf("requester not informed: %v", r.incoming)
	}

	if !m.Tick() {
		t.Fatalf("import should still be running")
	}
	if !m.Tick() {
		t.Fatalf("completed import should resume the task as an export")
	}
	if env.item != Item("X", 64) {
		t.Fatalf("drone should hold X after import, got %v", env.item)
	}
	if r.clearCalls != 1 {
		t.Fatalf("import completion should clear the reservation once, got %d", r.clearCalls)
	}
	if m.Phase() != PhaseExportItem || m.Task() != task {
		t.Fatalf("expected same task in export phase, got phase=%s task=%v", m.Phase(), m.Task())
	}
	if env.drivers[1].target.EndpointID != "B" {
		t.Fatalf("export should target the requester, got %s", env.drivers[1].target.EndpointID)
	}

	m.Tick()
	if m.Tick() {
		t.Fatalf("machine should go idle after the export phase stops")
	}
	if m.State() != StateIdle || m.Task() != nil {
		t.Fatalf("expected idle with no task, state=%s", m.State())
	}
	if !r.incoming.IsEmpty() {
		t.Fatalf("reservation leaked after delivery: %v", r.incoming)
	}
	if got := r.AvailableAmount(Item("X", 0)); got != 64 {
		t.Fatalf("requester stock=%d want=64", got)
	}
	if evs.count(EventDone) != 1 || evs.count(EventResume) != 1 {
		t.Fatalf("unexpected events: %+v", evs.events)
	}
}

func TestMachinePriorityThenNextRequester(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	low := newRequester("R1", grid.Vec3i{X: 1}, 1, Item("X", 8))
	high := newRequester("R5", grid.Vec3i{X: 2}, 5, Item("X", 8))
	env := newStubEnv(p, low, high)
	m := NewMachine("D1", env, nil, nil)

	if !m.Start() {
		t.Fatalf("expected start")
	}
	if m.Task().Requester != high {
		t.Fatalf("expected priority-5 requester first, got %s", m.Task().Requester.ID())
	}
	next, ok := NewSelector("").Select(m.Registry(), Empty())
	if !ok || next.Requester != low {
		t.Fatalf("expected priority-1 requester while R5 is reserved, got %v", next)
	}
}

func TestMachineUnreachableTargetGoesIdle(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8))
	env := newStubEnv(p, r)
	env.unreachable = true
	var evs eventLog
	m := NewMachine("D1", env, nil, evs.sink)

	if m.Start() {
		t.Fatalf("unreachable target must not start")
	}
	if m.State() != StateIdle || m.LastCode() != protocol.ErrUnreachable {
		t.Fatalf("state=%s code=%s", m.State(), m.LastCode())
	}
	if r.reserveCalls != 0 || !r.incoming.IsEmpty() {
		t.Fatalf("reservation must never be set: calls=%d slot=%v", r.reserveCalls, r.incoming)
	}
	if len(env.drivers) != 0 {
		t.Fatalf("no driver should be created for an unreachable target")
	}
	if ev, ok := evs.last(EventDiscard); !ok || ev.Code != protocol.ErrUnreachable {
		t.Fatalf("expected discard event with E_UNREACHABLE, got %+v", ev)
	}
}

func TestMachineHeldFluidBlocksItemRequests(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("Y", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("Y", 8))
	env := newStubEnv(p, r)
	env.fluid = Fluid("F", 1000)
	m := NewMachine("D1", env, nil, nil)

	if m.Start() {
		t.Fatalf("held fluid must be exported before items are fetched")
	}
	if m.LastCode() != protocol.ErrNoTask {
		t.Fatalf("code=%s want %s", m.LastCode(), protocol.ErrNoTask)
	}
}

func TestMachineHeldCargoExportsFirst(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 64))
	env := newStubEnv(p, r)
	env.item = Item("X", 10)
	m := NewMachine("D1", env, nil, nil)

	if !m.Start() {
		t.Fatalf("expected export task for held cargo")
	}
	if m.Phase() != PhaseExportItem || m.Task().Provider != nil {
		t.Fatalf("phase=%s provider=%v", m.Phase(), m.Task().Provider)
	}
	if m.Task().Payload != Item("X", 10) {
		t.Fatalf("payload=%v want X x10", m.Task().Payload)
	}
}

func TestMachineRetriesTransientImportFailure(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8))
	env := newStubEnv(p, r)
	env.ticks = 0 // driver stops on first poll without moving anything
	m := NewMachine("D1", env, nil, nil)

	if !m.Start() {
		t.Fatalf("expected start")
	}
	task := m.Task()
	if !m.Tick() {
		t.Fatalf("still-valid task should be relaunched")
	}
	if m.Task() != task || m.Phase() != PhaseImportItem {
		t.Fatalf("expected same task re-importing, got %v phase=%s", m.Task(), m.Phase())
	}
	if len(env.drivers) != 2 {
		t.Fatalf("drivers=%d want=2", len(env.drivers))
	}
	if r.incoming != Item("X", 8) {
		t.Fatalf("relaunch should re-inform the requester, slot=%v", r.incoming)
	}
}

func TestMachineDiscardsInvalidTaskAndReselects(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8))
	env := newStubEnv(p, r)
	var evs eventLog
	m := NewMachine("D1", env, nil, evs.sink)

	if !m.Start() {
		t.Fatalf("expected start")
	}
	m.Tick()
	// Someone else empties the provider while the drone is on its way.
	p.stock[stockKey(Item("X", 0))] = Item("X", 0)

	if m.Tick() {
		t.Fatalf("nothing left to do; machine should go idle")
	}
	if !r.incoming.IsEmpty() {
		t.Fatalf("discard leaked reservation %v", r.incoming)
	}
	if ev, ok := evs.last(EventDiscard); !ok || ev.Code != protocol.ErrStale {
		t.Fatalf("expected stale discard, got %+v", ev)
	}
	if m.LastCode() != protocol.ErrNoTask {
		t.Fatalf("reselection should end with no task, code=%s", m.LastCode())
	}
}

func TestMachineReselectsAnotherTaskAfterDiscard(t *testing.T) {
	p1 := newProvider("P1", grid.Vec3i{}, Item("X", 64))
	p2 := newProvider("P2", grid.Vec3i{Z: 3}, Item("Z", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8), Item("Z", 8))
	env := newStubEnv(p1, p2, r)
	m := NewMachine("D1", env, nil, nil)

	if !m.Start() || m.Task().Provider != p1 {
		t.Fatalf("expected P1 first")
	}
	p1.stock[stockKey(Item("X", 0))] = Item("X", 0)
	m.Tick()
	if !m.Tick() {
		t.Fatalf("expected immediate reselection")
	}
	if m.Task().Provider != p2 {
		t.Fatalf("expected P2 after P1 ran dry, got %v", m.Task())
	}
	if r.incoming != Item("Z", 8) {
		t.Fatalf("slot=%v want Z x8", r.incoming)
	}
}

func TestMachinePrecheckFailureOnRetryReleases(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8))
	env := newStubEnv(p, r)
	env.ticks = 0
	m := NewMachine("D1", env, nil, nil)

	if !m.Start() {
		t.Fatalf("expected start")
	}
	env.startOK = false
	if m.Tick() {
		t.Fatalf("failing pre-checks should end idle")
	}
	if m.LastCode() != protocol.ErrPrecheck {
		t.Fatalf("code=%s", m.LastCode())
	}
	if !r.incoming.IsEmpty() {
		t.Fatalf("reservation leaked: %v", r.incoming)
	}
}

func TestMachineAbortAndRestartRelease(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8))
	env := newStubEnv(p, r)
	env.ticks = 100
	var evs eventLog
	m := NewMachine("D1", env, nil, evs.sink)

	if !m.Start() {
		t.Fatalf("expected start")
	}
	m.Abort()
	if !r.incoming.IsEmpty() || m.State() != StateIdle {
		t.Fatalf("abort must release and idle: slot=%v state=%s", r.incoming, m.State())
	}

	if !m.Start() {
		t.Fatalf("expected restart")
	}
	first := m.Task()
	if !m.Start() {
		t.Fatalf("expected second restart")
	}
	if m.Task() == first {
		t.Fatalf("restart should supersede the running task")
	}
	if ev, ok := evs.last(EventDiscard); !ok || ev.Code != protocol.ErrSuperseded || ev.TaskID != first.ID {
		t.Fatalf("expected superseded discard for %s, got %+v", first.ID, ev)
	}
	if r.incoming != Item("X", 8) {
		t.Fatalf("new task should hold the slot, got %v", r.incoming)
	}
}

func TestMachineReinformsWhileRunning(t *testing.T) {
	p := newProvider("P", grid.Vec3i{}, Item("X", 64))
	r := newRequester("R", grid.Vec3i{X: 2}, 1, Item("X", 8))
	env := newStubEnv(p, r)
	env.ticks = 5
	m := NewMachine("D1", env, nil, nil)

	if !m.Start() {
		t.Fatalf("expected start")
	}
	r.incoming = Empty()
	if !m.Tick() {
		t.Fatalf("driver still running")
	}
	if r.incoming != Item("X", 8) {
		t.Fatalf("running tick should restore the reservation, got %v", r.incoming)
	}
}

func TestMachineEmptyAreaCannotStart(t *testing.T) {
	env := newStubEnv(newProvider("P", grid.Vec3i{}, Item("X", 1)))
	env.area = grid.NewArea()
	m := NewMachine("D1", env, nil, nil)
	if m.Start() {
		t.Fatalf("empty area must not start")
	}
	if m.LastCode() != protocol.ErrEmptyArea || len(env.scanBoxes) != 0 {
		t.Fatalf("code=%s scans=%d", m.LastCode(), len(env.scanBoxes))
	}
}

func TestMachineScansAreaBounds(t *testing.T) {
	p := newProvider("P", grid.Vec3i{X: 1}, Item("X", 1))
	r := newRequester("R", grid.Vec3i{X: 5}, 1, Item("X", 1))
	env := newStubEnv(p, r)
	env.area = grid.NewArea(grid.Vec3i{X: 1}, grid.Vec3i{X: 6, Y: 2})
	m := NewMachine("D1", env, nil, nil)

	if m.Start() {
		t.Fatalf("requester outside the area must not be matched")
	}
	want := grid.NewAABB(grid.Vec3i{X: 1}, grid.Vec3i{X: 6, Y: 2})
	if len(env.scanBoxes) != 1 || env.scanBoxes[0] != want {
		t.Fatalf("scan box=%v want %v", env.scanBoxes, want)
	}
	if m.Registry().Len() != 1 {
		t.Fatalf("registry should hold only the provider, len=%d", m.Registry().Len())
	}
}
