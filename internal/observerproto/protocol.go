package observerproto

import "dronelogistics.ai/internal/sim/logistics"

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: only stream these drones (and their events). Empty means all.
	Drones []string `json:"drones,omitempty"`
	// Optional: omit per-tick digests.
	NoDigest bool `json:"no_digest,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Frames          []FrameInfo `json:"frames"`
	Drones          []string    `json:"drones"`
}

type WorldParams struct {
	TickRateHz           int       `json:"tick_rate_hz"`
	Bounds               [2][3]int `json:"bounds"`
	RestartCooldownTicks int       `json:"restart_cooldown_ticks"`
}

type FrameInfo struct {
	ID       string `json:"id"`
	Pos      [3]int `json:"pos"`
	Side     string `json:"side"`
	Roles    string `json:"roles"`
	Priority int    `json:"priority"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Drones    []DroneState      `json:"drones"`
	Events    []logistics.Event `json:"events,omitempty"`
	Transfers []Transfer        `json:"transfers,omitempty"`
	Digest    string            `json:"digest,omitempty"`
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

type Transfer struct {
	Drone    string `json:"drone"`
	Frame    string `json:"frame"`
	Phase    string `json:"phase"`
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}
