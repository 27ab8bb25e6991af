package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read-model of the tick log. Writes are queued and
// applied by a single goroutine; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	runID  atomic.Value // string

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind  reqKind
	runID string

	tick     world.TickLogEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick   uint64
	Path   string
	Frames int
	Drones int
}

// RunInfo describes one server or CLI run; rows written afterwards carry its id.
type RunInfo struct {
	WorldID  string
	Scenario string
	Tuning   any
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	WriteErrorTotal   uint64 `json:"write_error_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.runID.Store("")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			scenario TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS task_events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			drone TEXT NOT NULL,
			type TEXT NOT NULL,
			task_id TEXT,
			phase TEXT,
			provider TEXT,
			requester TEXT,
			kind TEXT,
			resource TEXT,
			amount INTEGER NOT NULL,
			code TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(run_id, task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_drone_tick ON task_events(drone, tick);`,
		`CREATE TABLE IF NOT EXISTS transfers (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			drone TEXT NOT NULL,
			frame TEXT NOT NULL,
			phase TEXT NOT NULL,
			kind TEXT NOT NULL,
			resource TEXT NOT NULL,
			amount INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			frames INTEGER NOT NULL,
			drones INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// StartRun records a new run and tags every later row with its id.
func (s *SQLiteIndex) StartRun(info RunInfo) (string, error) {
	if s == nil {
		return "", nil
	}
	id := uuid.NewString()
	tb, err := json.Marshal(info.Tuning)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT INTO runs(run_id,world_id,scenario,tuning_json,started_at) VALUES(?,?,?,?,?)`,
		id, info.WorldID, info.Scenario, string(tb), now); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	s.runID.Store(id)
	return id, nil
}

func (s *SQLiteIndex) RunID() string {
	if s == nil {
		return ""
	}
	id, _ := s.runID.Load().(string)
	return id
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if len(entry.Events) == 0 && len(entry.Transfers) == 0 {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, runID: s.RunID(), tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:   snap.Header.Tick,
		Path:   path,
		Frames: len(snap.Frames),
		Drones: len(snap.Drones),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, runID: s.RunID(), snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO task_events(run_id,tick,seq,drone,type,task_id,phase,provider,requester,kind,resource,amount,code) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertTransfer, _ := s.db.Prepare(`INSERT OR REPLACE INTO transfers(run_id,tick,seq,drone,frame,phase,kind,resource,amount) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(run_id,tick,path,frames,drones) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, insertTransfer, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			tick := int64(r.tick.Tick)
			for i, ev := range r.tick.Events {
				if !exec(insertEvent, r.runID, tick, i, ev.Drone, string(ev.Type), ev.TaskID, ev.Phase,
					ev.Provider, ev.Requester, ev.Kind, ev.Resource, ev.Amount, ev.Code) {
					break
				}
			}
			for i, tr := range r.tick.Transfers {
				if !exec(insertTransfer, r.runID, tick, i, tr.Drone, tr.Frame, tr.Phase, tr.Kind, tr.Resource, tr.Amount) {
					break
				}
			}
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, r.runID, int64(sn.Tick), sn.Path, sn.Frames, sn.Drones)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
