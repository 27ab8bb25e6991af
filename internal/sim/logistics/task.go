package logistics

import "fmt"

// Task is a proposed transport of one payload to a requester. It is a proposal
// until InformRequester sets the requester's incoming slot.
type Task struct {
	ID        string
	Provider  Provider // nil when the drone already carries the payload
	Requester Requester
	Payload   Resource
	Seq       int

	reserved bool
}

// Item is the item payload, or empty for a fluid task.
func (t *Task) Item() Resource {
	if t.Payload.Kind == KindItem {
		return t.Payload
	}
	return Empty()
}

// Fluid is the fluid payload, or empty for an item task.
func (t *Task) Fluid() Resource {
	if t.Payload.Kind == KindFluid {
		return t.Payload
	}
	return Empty()
}

// IsStillValid re-checks the task against live endpoint state and the drone's current cargo.
func (t *Task) IsStillValid(held Resource) bool {
	if t == nil || t.Requester == nil || t.Payload.IsEmpty() {
		return false
	}
	if !t.Requester.Valid() || !t.Requester.FilterMatches(t.Payload) {
		return false
	}
	if !held.IsEmpty() {
		return held.SameKind(t.Payload)
	}
	if t.Provider == nil || !t.Provider.Valid() {
		return false
	}
	return t.Provider.CanSupply(t.Payload) && t.Provider.AvailableAmount(t.Payload) > 0
}

// InformRequester claims the requester's incoming slot for this payload.
// Repeated calls are harmless; false means another claim holds the slot.
func (t *Task) InformRequester() bool {
	if t == nil || t.Requester == nil || !t.Requester.Valid() {
		return false
	}
	if !t.Requester.ReserveIncoming(t.Payload) {
		return false
	}
	t.reserved = true
	return true
}

// ReleaseReservation clears the incoming slot if this task set it.
func (t *Task) ReleaseReservation() {
	if t == nil || !t.reserved {
		return
	}
	t.reserved = false
	if t.Requester != nil {
		t.Requester.ClearIncoming(t.Payload)
	}
}

func (t *Task) Reserved() bool { return t != nil && t.reserved }

func (t *Task) String() string {
	from := "cargo"
	if t.Provider != nil {
		from = t.Provider.ID()
	}
	return fmt.Sprintf("%s[%s -> %s %s]", t.ID, from, t.Requester.ID(), t.Payload)
}
