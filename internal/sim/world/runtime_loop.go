package world

import (
	"context"
	"time"

	"dronelogistics.ai/internal/sim/logistics"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		pendingAdmin   []snapshotReq
		pendingRemoves []string
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case id := <-w.removeFrame:
			pendingRemoves = append(pendingRemoves, id)
		case <-ticker.C:
			for _, id := range pendingRemoves {
				w.RemoveFrame(id)
			}
			w.step()
			w.answerSnapshotRequests(pendingAdmin)
			pendingAdmin = pendingAdmin[:0]
			pendingRemoves = pendingRemoves[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick using the same ordering as Run.
// It is intended for offline runs and tests.
func (w *World) StepOnce() TickLogEntry { return w.step() }

func (w *World) step() TickLogEntry {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	w.events = w.events[:0]
	w.transfers = w.transfers[:0]

	// Drones act in id order; each drone's machine runs to completion for this
	// tick before the next drone looks at the (possibly changed) frames.
	cooldown := uint64(w.cfg.RestartCooldownTicks)
	for _, id := range w.order {
		d := w.drones[id]
		m := d.machine
		if m.State() == logistics.StateExecuting {
			if !m.Tick() {
				d.nextStartTick = nowTick + cooldown
			}
			continue
		}
		if nowTick < d.nextStartTick {
			continue
		}
		if !m.Start() {
			d.nextStartTick = nowTick + cooldown
		}
	}

	entry := TickLogEntry{
		Tick:      nowTick,
		Events:    append([]logistics.Event(nil), w.events...),
		Transfers: append([]TransferRecord(nil), w.transfers...),
		Drones:    w.droneStates(),
		Digest:    w.stateDigest(nowTick),
	}

	w.stepObservers(entry)

	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Printf("tick log: %v", err)
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	nextTick := w.tick.Add(1)

	m := w.totals
	m.Tick = nextTick
	m.Drones = len(w.drones)
	m.Frames = len(w.frames)
	m.Observers = len(w.observers)
	for _, d := range w.drones {
		if d.machine.State() == logistics.StateExecuting {
			m.Executing++
		}
	}
	m.StepMS = float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.metrics.Store(m)

	return entry
}

func (w *World) droneStates() []DroneState {
	out := make([]DroneState, 0, len(w.order))
	for _, id := range w.order {
		d := w.drones[id]
		m := d.machine
		st := DroneState{
			ID:    d.id,
			Pos:   d.pos.ToArray(),
			State: m.State().String(),
			Code:  m.LastCode(),
		}
		if m.State() == logistics.StateExecuting {
			st.Phase = m.Phase().String()
			st.Code = ""
		}
		if t := m.Task(); t != nil {
			st.TaskID = t.ID
		}
		if !d.item.IsEmpty() {
			st.Item = d.item.String()
		}
		if !d.fluid.IsEmpty() {
			st.Fluid = d.fluid.String()
		}
		out = append(out, st)
	}
	return out
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
