package world

import (
	"context"
	"errors"
)

// SnapshotInfo summarizes a snapshot handed to the sink on request.
type SnapshotInfo struct {
	Tick   uint64 `json:"tick"`
	Frames int    `json:"frames"`
	Drones int    `json:"drones"`
}

type snapshotReq struct {
	resp chan snapshotResp
}

type snapshotResp struct {
	info SnapshotInfo
	err  error
}

var (
	errNoSnapshotSink       = errors.New("snapshot sink not configured")
	errSnapshotBackpressure = errors.New("snapshot sink backpressure")
)

// RequestSnapshot asks the world loop to export a snapshot of the last
// completed tick at the next tick boundary. Safe to call from other goroutines.
func (w *World) RequestSnapshot(ctx context.Context) (SnapshotInfo, error) {
	if w == nil || w.admin == nil {
		return SnapshotInfo{}, errors.New("snapshot requests not available")
	}
	req := snapshotReq{resp: make(chan snapshotResp, 1)}

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return SnapshotInfo{}, ctx.Err()
	}

	select {
	case r := <-req.resp:
		return r.info, r.err
	case <-ctx.Done():
		return SnapshotInfo{}, ctx.Err()
	}
}

// answerSnapshotRequests exports at most one snapshot for all pending requests.
func (w *World) answerSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	var r snapshotResp
	cur := w.tick.Load()
	if cur > 0 {
		r.info.Tick = cur - 1
	}

	if w.snapshotSink == nil {
		r.err = errNoSnapshotSink
	} else {
		snap := w.ExportSnapshot(r.info.Tick)
		r.info.Frames = len(snap.Frames)
		r.info.Drones = len(snap.Drones)
		select {
		case w.snapshotSink <- snap:
		default:
			r.err = errSnapshotBackpressure
		}
	}

	for _, req := range reqs {
		select {
		case req.resp <- r:
		default:
			// Caller gave up; never block the tick loop.
		}
	}
}
