package logistics

import (
	"testing"

	"dronelogistics.ai/internal/sim/grid"
)

func TestInformRequesterIdempotent(t *testing.T) {
	r := newRequester("R1", grid.Vec3i{}, 1, Item("X", 8))
	task := &Task{ID: "T1", Requester: r, Payload: Item("X", 8)}

	if !task.InformRequester() {
		t.Fatalf("first inform failed")
	}
	once := r.incoming
	for i := 0; i < 5; i++ {
		if !task.InformRequester() {
			t.Fatalf("repeat inform %d failed", i)
		}
	}
	if r.incoming != once {
		t.Fatalf("reservation changed after repeated inform: %v vs %v", r.incoming, once)
	}

	task.ReleaseReservation()
	if !r.incoming.IsEmpty() {
		t.Fatalf("release should clear the slot, got %v", r.incoming)
	}
	task.ReleaseReservation()
	if r.clearCalls != 1 {
		t.Fatalf("second release should be a no-op, clearCalls=%d", r.clearCalls)
	}
}

func TestInformRequesterRespectsOtherClaim(t *testing.T) {
	r := newRequester("R1", grid.Vec3i{}, 1, Item("X", 8), Fluid("W", 1000))
	r.incoming = Fluid("W", 1000)
	task := &Task{ID: "T1", Requester: r, Payload: Item("X", 8)}

	if task.InformRequester() {
		t.Fatalf("inform must fail while another kind holds the slot")
	}
	task.ReleaseReservation()
	if r.incoming != Fluid("W", 1000) {
		t.Fatalf("release must not clear a slot this task never set, got %v", r.incoming)
	}
}

func TestTaskIsStillValid(t *testing.T) {
	p := newProvider("P1", grid.Vec3i{}, Item("X", 4))
	r := newRequester("R1", grid.Vec3i{X: 1}, 1, Item("X", 8))
	task := &Task{ID: "T1", Provider: p, Requester: r, Payload: Item("X", 4)}

	if !task.IsStillValid(Empty()) {
		t.Fatalf("fresh task should be valid")
	}
	if !task.IsStillValid(Item("X", 4)) {
		t.Fatalf("carrying the payload keeps the task valid")
	}
	if task.IsStillValid(Fluid("W", 100)) {
		t.Fatalf("carrying a different resource invalidates the task")
	}

	p.stock[stockKey(Item("X", 0))] = Item("X", 0)
	if task.IsStillValid(Empty()) {
		t.Fatalf("emptied provider must invalidate the task")
	}

	p.stock[stockKey(Item("X", 0))] = Item("X", 4)
	r.removed = true
	if task.IsStillValid(Empty()) {
		t.Fatalf("removed requester must invalidate the task")
	}

	cargoOnly := &Task{ID: "T2", Requester: newRequester("R2", grid.Vec3i{}, 1, Item("X", 8)), Payload: Item("X", 4)}
	if cargoOnly.IsStillValid(Empty()) {
		t.Fatalf("provider-less task is invalid once the cargo is gone")
	}
}

func TestTaskAccessorsAreExclusive(t *testing.T) {
	it := &Task{Payload: Item("X", 1)}
	fl := &Task{Payload: Fluid("W", 1)}
	if it.Fluid() != Empty() || it.Item().IsEmpty() {
		t.Fatalf("item task accessors wrong: item=%v fluid=%v", it.Item(), it.Fluid())
	}
	if fl.Item() != Empty() || fl.Fluid().IsEmpty() {
		t.Fatalf("fluid task accessors wrong: item=%v fluid=%v", fl.Item(), fl.Fluid())
	}
}
