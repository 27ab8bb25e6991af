package world

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dronelogistics.ai/internal/observerproto"
	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/grid"
)

func TestAnswerSnapshotRequestsSharesOneExport(t *testing.T) {
	w := newTestWorld(t)
	ironLine(t, w)
	mustDrone(t, w, DroneConfig{ID: "D1", Pos: grid.Vec3i{X: 1}})
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)
	runTicks(w, 3)

	a := snapshotReq{resp: make(chan snapshotResp, 1)}
	b := snapshotReq{resp: make(chan snapshotResp, 1)}
	w.answerSnapshotRequests([]snapshotReq{a, b})

	for _, req := range []snapshotReq{a, b} {
		r := <-req.resp
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.info != (SnapshotInfo{Tick: 2, Frames: 2, Drones: 1}) {
			t.Fatalf("info=%+v", r.info)
		}
	}
	if snap := <-sink; snap.Header.Tick != 2 || len(snap.Frames) != 2 {
		t.Fatalf("sink got %+v", snap.Header)
	}

	// Sink still full from the previous request.
	sink <- snapshot.SnapshotV1{}
	c := snapshotReq{resp: make(chan snapshotResp, 1)}
	w.answerSnapshotRequests([]snapshotReq{c})
	if r := <-c.resp; !errors.Is(r.err, errSnapshotBackpressure) {
		t.Fatalf("err=%v want backpressure", r.err)
	}
}

func TestAnswerSnapshotRequestsWithoutSink(t *testing.T) {
	w := newTestWorld(t)
	req := snapshotReq{resp: make(chan snapshotResp, 1)}
	w.answerSnapshotRequests([]snapshotReq{req})
	if r := <-req.resp; !errors.Is(r.err, errNoSnapshotSink) {
		t.Fatalf("err=%v want no sink", r.err)
	}
}

func TestRequestSnapshotThroughRunLoop(t *testing.T) {
	w := New(WorldConfig{ID: "loop", TickRateHz: 50}, nil)
	ironLine(t, w)
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(ctx, 2*time.Second)
	defer reqCancel()
	info, err := w.RequestSnapshot(reqCtx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	if info.Frames != 2 || info.Drones != 0 {
		t.Fatalf("info=%+v", info)
	}
	if snap := <-sink; snap.Header.Tick != info.Tick {
		t.Fatalf("sink tick=%d info tick=%d", snap.Header.Tick, info.Tick)
	}
}

func TestRequestSnapshotHonorsContext(t *testing.T) {
	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.RequestSnapshot(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestObserverSubscribeReplacesFilter(t *testing.T) {
	w := newTestWorld(t)
	ironLine(t, w)
	mustDrone(t, w, DroneConfig{ID: "D1", Pos: grid.Vec3i{X: 3, Y: 2}})
	mustDrone(t, w, DroneConfig{ID: "D2", Pos: grid.Vec3i{X: 5, Y: 2}})

	out := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", TickOut: out, Drones: []string{"D2"}})
	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "O1", NoDigest: true})
	// Unknown sessions are ignored.
	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "nope", Drones: []string{"D1"}})
	w.StepOnce()

	var msg observerproto.TickMsg
	if err := json.Unmarshal(<-out, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(msg.Drones) != 2 {
		t.Fatalf("empty filter should include every drone, got %+v", msg.Drones)
	}
	if msg.Digest != "" {
		t.Fatalf("digest sent despite NoDigest")
	}
}
