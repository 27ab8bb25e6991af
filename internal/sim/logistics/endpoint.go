package logistics

import "dronelogistics.ai/internal/sim/grid"

type Roles uint8

const (
	RoleProvider Roles = 1 << iota
	RoleRequester

	// RoleStorage both provides and requests.
	RoleStorage = RoleProvider | RoleRequester
)

func (r Roles) Has(o Roles) bool { return r&o == o }

// Endpoint is a fixed logistics attachment in the world. Identity is (ID, Pos, Side).
type Endpoint interface {
	ID() string
	Pos() grid.Vec3i
	Side() grid.Face
	Roles() Roles
	// Valid is false once the endpoint was removed from the world.
	Valid() bool
}

type Provider interface {
	Endpoint
	// Offers lists what the provider currently holds, in a stable order.
	Offers() []Resource
	CanSupply(r Resource) bool
	AvailableAmount(r Resource) int
}

// Requester demands filtered resources and owns a single incoming-reservation
// slot. The slot is advisory: two drones may both observe it empty in the same
// tick and both start towards it; the loser's provider runs dry and it reselects.
type Requester interface {
	Endpoint
	Priority() int
	FilterMatches(r Resource) bool
	// RequestedAmount is the outstanding demand for r's kind.
	RequestedAmount(r Resource) int

	IncomingReservation() Resource
	// ReserveIncoming sets the slot when it is empty or already holds r's kind.
	// A same-kind claim is shared: the second claimant joins it, and either
	// claimant's release empties the slot until a running task claims it again.
	ReserveIncoming(r Resource) bool
	// ClearIncoming empties the slot only if it holds r's kind.
	ClearIncoming(r Resource)
}
