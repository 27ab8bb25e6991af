package world

import "dronelogistics.ai/internal/sim/logistics"

// TickLogEntry is the per-tick record written to the event log, the index and observers.
type TickLogEntry struct {
	Tick      uint64            `json:"tick"`
	Events    []logistics.Event `json:"events,omitempty"`
	Transfers []TransferRecord  `json:"transfers,omitempty"`
	Drones    []DroneState      `json:"drones"`
	Digest    string            `json:"digest"`
}

// TransferRecord is one completed pick-up or delivery.
type TransferRecord struct {
	Drone    string `json:"drone"`
	Frame    string `json:"frame"`
	Phase    string `json:"phase"`
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

type DroneState struct {
	ID     string `json:"id"`
	Pos    [3]int `json:"pos"`
	State  string `json:"state"`
	Phase  string `json:"phase,omitempty"`
	TaskID string `json:"task_id,omitempty"`
	Item   string `json:"item,omitempty"`
	Fluid  string `json:"fluid,omitempty"`
	Code   string `json:"code,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Drones    int `json:"drones"`
	Frames    int `json:"frames"`
	Executing int `json:"executing"`
	Observers int `json:"observers"`

	StepMS float64 `json:"step_ms"`

	TasksStarted   uint64 `json:"tasks_started"`
	TasksDone      uint64 `json:"tasks_done"`
	TasksDiscarded uint64 `json:"tasks_discarded"`
	Transferred    uint64 `json:"transferred"`
}
