package world

import (
	"encoding/json"

	"dronelogistics.ai/internal/observerproto"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one TICK message per tick on TickOut.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte

	// Empty means every drone.
	Drones   []string
	NoDigest bool
}

// ObserverSubscribeRequest replaces the filter of an existing session.
type ObserverSubscribeRequest struct {
	SessionID string
	Drones    []string
	NoDigest  bool
}

type observerClient struct {
	id       string
	tickOut  chan []byte
	drones   map[string]bool
	noDigest bool
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest {
	return w.observerSub
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	c := &observerClient{id: req.SessionID, tickOut: req.TickOut}
	c.setFilter(req.Drones, req.NoDigest)
	w.observers[req.SessionID] = c
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if c := w.observers[req.SessionID]; c != nil {
		c.setFilter(req.Drones, req.NoDigest)
	}
}

func (c *observerClient) setFilter(drones []string, noDigest bool) {
	c.noDigest = noDigest
	c.drones = nil
	if len(drones) > 0 {
		c.drones = map[string]bool{}
		for _, id := range drones {
			c.drones[id] = true
		}
	}
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (w *World) stepObservers(entry TickLogEntry) {
	for _, c := range w.observers {
		b, err := json.Marshal(c.tickMsg(entry))
		if err != nil {
			continue
		}
		sendLatest(c.tickOut, b)
	}
}

func (c *observerClient) wants(droneID string) bool {
	return c.drones == nil || c.drones[droneID]
}

func (c *observerClient) tickMsg(entry TickLogEntry) observerproto.TickMsg {
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            entry.Tick,
		Drones:          make([]observerproto.DroneState, 0, len(entry.Drones)),
	}
	if !c.noDigest {
		msg.Digest = entry.Digest
	}
	for _, d := range entry.Drones {
		if !c.wants(d.ID) {
			continue
		}
		msg.Drones = append(msg.Drones, observerproto.DroneState(d))
	}
	for _, ev := range entry.Events {
		if c.wants(ev.Drone) {
			msg.Events = append(msg.Events, ev)
		}
	}
	for _, tr := range entry.Transfers {
		if !c.wants(tr.Drone) {
			continue
		}
		msg.Transfers = append(msg.Transfers, observerproto.Transfer{
			Drone:    tr.Drone,
			Frame:    tr.Frame,
			Phase:    tr.Phase,
			Resource: tr.Resource,
			Amount:   tr.Amount,
		})
	}
	return msg
}
