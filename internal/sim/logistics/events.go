package logistics

type EventType string

const (
	EventRescan  EventType = "RESCAN"
	EventSelect  EventType = "TASK_SELECT"
	EventStart   EventType = "TASK_START"
	EventResume  EventType = "TASK_RESUME"
	EventDone    EventType = "TASK_DONE"
	EventDiscard EventType = "TASK_DISCARD"
	EventIdle    EventType = "IDLE"
)

// Event records one state-machine transition of a drone.
type Event struct {
	Type      EventType `json:"type"`
	Drone     string    `json:"drone"`
	TaskID    string    `json:"task_id,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Requester string    `json:"requester,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Amount    int       `json:"amount,omitempty"`
	Code      string    `json:"code,omitempty"`
	Endpoints int       `json:"endpoints,omitempty"`
}

// EventSink receives machine events synchronously, inside the tick.
type EventSink func(Event)

func taskEvent(typ EventType, drone string, t *Task) Event {
	ev := Event{Type: typ, Drone: drone}
	if t == nil {
		return ev
	}
	ev.TaskID = t.ID
	if t.Provider != nil {
		ev.Provider = t.Provider.ID()
	}
	if t.Requester != nil {
		ev.Requester = t.Requester.ID()
	}
	ev.Kind = t.Payload.Kind.String()
	ev.Resource = t.Payload.ID
	ev.Amount = t.Payload.Amount
	return ev
}
