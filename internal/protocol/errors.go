package protocol

const (
	// Config/transport validation.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrBadConfig  = "E_BAD_CONFIG"

	// Selection.
	ErrEmptyArea = "E_EMPTY_AREA"
	ErrNoTask    = "E_NO_TASK"

	// Execution.
	ErrUnreachable   = "E_UNREACHABLE"
	ErrPrecheck      = "E_PRECHECK"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrNoCapacity    = "E_NO_CAPACITY"
	ErrBlocked       = "E_BLOCKED"
	ErrStale         = "E_STALE"
	ErrConflict      = "E_CONFLICT"
	ErrSuperseded    = "E_SUPERSEDED"
	ErrAborted       = "E_ABORTED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrBadConfig:     {},
	ErrEmptyArea:     {},
	ErrNoTask:        {},
	ErrUnreachable:   {},
	ErrPrecheck:      {},
	ErrInvalidTarget: {},
	ErrNoResource:    {},
	ErrNoCapacity:    {},
	ErrBlocked:       {},
	ErrStale:         {},
	ErrConflict:      {},
	ErrSuperseded:    {},
	ErrAborted:       {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
