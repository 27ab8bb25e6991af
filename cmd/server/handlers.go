package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"dronelogistics.ai/internal/persistence/indexdb"
	"dronelogistics.ai/internal/sim/world"
	"dronelogistics.ai/internal/transport/observer"
)

type muxConfig struct {
	WorldID     string
	EnableAdmin bool
	EnablePprof bool
}

func buildMux(cfg muxConfig, w *world.World, idx runtimeIndex, obs *observer.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		if m.Tick == 0 {
			m.Tick = w.CurrentTick()
		}
		var st *indexdb.Stats
		if idx != nil {
			s := idx.Stats()
			st = &s
		}
		writeMetrics(rw, cfg.WorldID, m, obs.Sessions(), st)
	})

	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())

	if cfg.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
				Layout  world.Layout       `json:"layout"`
			}{
				WorldID: cfg.WorldID,
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
				Layout:  w.Layout(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			info, err := w.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": info.Tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": info.Tick, "frames": info.Frames, "drones": info.Drones})
		})
		mux.HandleFunc("/admin/v1/frames/remove", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			id := strings.TrimSpace(r.URL.Query().Get("id"))
			if id == "" {
				http.Error(rw, "missing id", http.StatusBadRequest)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			if !w.RequestRemoveFrame(id) {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": "remove queue full"})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "id": id})
		})
	}
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// writeMetrics emits the minimal Prometheus exposition format.
func writeMetrics(out io.Writer, worldID string, m world.WorldMetrics, observers int, idx *indexdb.Stats) {
	fmt.Fprintf(out, "# HELP dronelogistics_world_tick Current world tick.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_world_tick gauge\n")
	fmt.Fprintf(out, "dronelogistics_world_tick{world=%q} %d\n", worldID, m.Tick)

	fmt.Fprintf(out, "# HELP dronelogistics_world_drones Drones in the world.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_world_drones gauge\n")
	fmt.Fprintf(out, "dronelogistics_world_drones{world=%q} %d\n", worldID, m.Drones)

	fmt.Fprintf(out, "# HELP dronelogistics_world_drones_executing Drones currently executing a task.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_world_drones_executing gauge\n")
	fmt.Fprintf(out, "dronelogistics_world_drones_executing{world=%q} %d\n", worldID, m.Executing)

	fmt.Fprintf(out, "# HELP dronelogistics_world_frames Attached logistics frames.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_world_frames gauge\n")
	fmt.Fprintf(out, "dronelogistics_world_frames{world=%q} %d\n", worldID, m.Frames)

	fmt.Fprintf(out, "# HELP dronelogistics_observers Connected observer sessions.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_observers gauge\n")
	fmt.Fprintf(out, "dronelogistics_observers{world=%q} %d\n", worldID, observers)

	fmt.Fprintf(out, "# HELP dronelogistics_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_world_step_ms gauge\n")
	fmt.Fprintf(out, "dronelogistics_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(out, "# HELP dronelogistics_tasks_total Task lifecycle events since start.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_tasks_total counter\n")
	fmt.Fprintf(out, "dronelogistics_tasks_total{world=%q,event=%q} %d\n", worldID, "started", m.TasksStarted)
	fmt.Fprintf(out, "dronelogistics_tasks_total{world=%q,event=%q} %d\n", worldID, "done", m.TasksDone)
	fmt.Fprintf(out, "dronelogistics_tasks_total{world=%q,event=%q} %d\n", worldID, "discarded", m.TasksDiscarded)

	fmt.Fprintf(out, "# HELP dronelogistics_transferred_total Units moved by drones (items and millibuckets).\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_transferred_total counter\n")
	fmt.Fprintf(out, "dronelogistics_transferred_total{world=%q} %d\n", worldID, m.Transferred)

	if idx == nil {
		return
	}
	fmt.Fprintf(out, "# HELP dronelogistics_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_index_queue_depth gauge\n")
	fmt.Fprintf(out, "dronelogistics_index_queue_depth{world=%q} %d\n", worldID, idx.QueueDepth)
	fmt.Fprintf(out, "dronelogistics_index_queue_capacity{world=%q} %d\n", worldID, idx.QueueCapacity)

	fmt.Fprintf(out, "# HELP dronelogistics_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(out, "# TYPE dronelogistics_index_dropped_total counter\n")
	fmt.Fprintf(out, "dronelogistics_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", idx.DropTickTotal)
	fmt.Fprintf(out, "dronelogistics_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", idx.DropSnapshotTotal)
	fmt.Fprintf(out, "dronelogistics_index_write_errors_total{world=%q} %d\n", worldID, idx.WriteErrorTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
