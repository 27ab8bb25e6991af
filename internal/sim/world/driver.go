package world

import (
	"dronelogistics.ai/internal/protocol"
	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
	"dronelogistics.ai/internal/sim/world/pathing"
)

// phaseDriver flies a drone next to the target frame, one cell per tick, and
// performs the transfer once adjacent.
type phaseDriver struct {
	w      *World
	d      *Drone
	phase  logistics.Phase
	target logistics.Target
	walk   pathing.Walker

	running bool
	code    string
}

func (p *phaseDriver) Start() bool {
	f := p.w.frames[p.target.EndpointID]
	if !f.Valid() {
		return p.fail(protocol.ErrInvalidTarget)
	}
	payload := p.target.Payload
	switch {
	case p.phase.IsImport():
		if f.AvailableAmount(payload) <= 0 {
			return p.fail(protocol.ErrNoResource)
		}
		if p.d.room(payload) <= 0 {
			return p.fail(protocol.ErrNoCapacity)
		}
	case p.phase.IsExport():
		if !p.d.cargo(payload.Kind).SameKind(payload) {
			return p.fail(protocol.ErrNoResource)
		}
	default:
		return p.fail(protocol.ErrInternal)
	}
	p.walk = pathing.Walker{Target: f.pos, MaxDepth: p.w.cfg.DetourMaxDepth}
	p.running = true
	p.code = ""
	return true
}

func (p *phaseDriver) IsRunning() bool {
	if !p.running {
		return false
	}
	f := p.w.frames[p.target.EndpointID]
	if !f.Valid() {
		p.stop(protocol.ErrInvalidTarget)
		return false
	}
	if grid.Manhattan(p.d.pos, f.pos) <= 1 {
		p.transfer(f)
		return false
	}
	next, ok := p.walk.Next(p.d.pos, p.w.Passable)
	if !ok {
		p.stop(protocol.ErrBlocked)
		return false
	}
	p.d.pos = next
	return true
}

func (p *phaseDriver) transfer(f *Frame) {
	payload := p.target.Payload
	var moved int
	if p.phase.IsImport() {
		n := min(payload.Amount, f.Stock(payload), p.d.room(payload))
		moved = f.take(payload, n)
		p.d.load(payload.WithAmount(moved))
	} else {
		held := p.d.cargo(payload.Kind)
		if held.SameKind(payload) {
			moved = min(held.Amount, payload.Amount)
			f.put(held, moved)
			p.d.unload(payload.Kind, moved)
		}
	}
	if moved <= 0 {
		p.stop(protocol.ErrNoResource)
		return
	}
	p.w.recordTransfer(TransferRecord{
		Drone:    p.d.id,
		Frame:    f.id,
		Phase:    p.phase.String(),
		Kind:     payload.Kind.String(),
		Resource: payload.ID,
		Amount:   moved,
	})
	p.stop("")
}

func (p *phaseDriver) fail(code string) bool {
	p.stop(code)
	return false
}

func (p *phaseDriver) stop(code string) {
	p.running = false
	p.code = code
	p.d.lastCode = code
	if code != "" {
		p.w.log.Printf("drone %s %s %s: %s", p.d.id, p.phase, p.target.EndpointID, code)
	}
}
