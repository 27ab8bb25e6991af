package indexdb

import (
	"testing"

	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/logistics"
	"dronelogistics.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.runID.Store("")
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2, Events: []logistics.Event{{Type: logistics.EventIdle, Drone: "D1"}}})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_SkipsQuietTicks(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.runID.Store("")
	_ = s.WriteTick(world.TickLogEntry{Tick: 7, Digest: "abc"})
	if st := s.Stats(); st.QueueDepth != 0 || st.DropTickTotal != 0 {
		t.Fatalf("quiet tick should not be queued: %+v", st)
	}
}
