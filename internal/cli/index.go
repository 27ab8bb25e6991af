package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

type indexOptions struct {
	dbPath   string
	worldDir string
	runID    string
	task     string
	drone    string
	limit    int
}

func newIndexCmd() *cobra.Command {
	opts := indexOptions{}

	cmd := &cobra.Command{
		Use:       "index [runs|tasks|transfers|snapshots]",
		Short:     "Query the sqlite task-event index",
		Long:      "index reads the read-model database written by the server (or run --index). Rows are printed as one JSON object per line; tasks, transfers and snapshots default to the most recent run.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"runs", "tasks", "transfers", "snapshots"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q := "runs"
			if len(args) > 0 {
				q = strings.TrimSpace(args[0])
			}
			return queryIndex(cmd.OutOrStdout(), q, opts)
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "sqlite db path")
	cmd.Flags().StringVar(&opts.worldDir, "world-dir", "", "world directory (uses <dir>/index/world.sqlite)")
	cmd.Flags().StringVar(&opts.runID, "run", "", "run id (default: latest run)")
	cmd.Flags().StringVar(&opts.task, "task", "", "task id filter (tasks)")
	cmd.Flags().StringVar(&opts.drone, "drone", "", "drone filter (tasks, transfers)")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "result limit")
	return cmd
}

func queryIndex(out io.Writer, q string, opts indexOptions) error {
	path := strings.TrimSpace(opts.dbPath)
	if path == "" {
		if strings.TrimSpace(opts.worldDir) == "" {
			return errors.New("missing --db or --world-dir")
		}
		path = filepath.Join(opts.worldDir, "index", "world.sqlite")
	}
	if opts.limit <= 0 {
		opts.limit = 50
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	if q == "runs" {
		return queryRuns(out, db, opts.limit)
	}

	runID := opts.runID
	if runID == "" {
		runID, err = latestRun(db)
		if err != nil {
			return err
		}
	}

	switch q {
	case "tasks":
		return queryTaskEvents(out, db, runID, opts)
	case "transfers":
		return queryTransfers(out, db, runID, opts)
	case "snapshots":
		return querySnapshots(out, db, runID, opts.limit)
	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func latestRun(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("no runs recorded")
	}
	return id, err
}

func queryRuns(out io.Writer, db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT run_id, world_id, scenario, started_at FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	enc := json.NewEncoder(out)
	for rows.Next() {
		var r struct {
			RunID     string `json:"run_id"`
			WorldID   string `json:"world_id"`
			Scenario  string `json:"scenario"`
			StartedAt string `json:"started_at"`
		}
		if err := rows.Scan(&r.RunID, &r.WorldID, &r.Scenario, &r.StartedAt); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryTaskEvents(out io.Writer, db *sql.DB, runID string, opts indexOptions) error {
	query := `SELECT tick, drone, type, COALESCE(task_id,''), COALESCE(phase,''), COALESCE(provider,''), COALESCE(requester,''),
		COALESCE(kind,''), COALESCE(resource,''), amount, COALESCE(code,'')
		FROM task_events WHERE run_id = ?`
	args := []any{runID}
	if opts.task != "" {
		query += ` AND task_id = ?`
		args = append(args, opts.task)
	}
	if opts.drone != "" {
		query += ` AND drone = ?`
		args = append(args, opts.drone)
	}
	query += ` ORDER BY tick, seq LIMIT ?`
	args = append(args, opts.limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	enc := json.NewEncoder(out)
	for rows.Next() {
		var r struct {
			Tick      uint64 `json:"tick"`
			Drone     string `json:"drone"`
			Type      string `json:"type"`
			TaskID    string `json:"task_id,omitempty"`
			Phase     string `json:"phase,omitempty"`
			Provider  string `json:"provider,omitempty"`
			Requester string `json:"requester,omitempty"`
			Kind      string `json:"kind,omitempty"`
			Resource  string `json:"resource,omitempty"`
			Amount    int    `json:"amount,omitempty"`
			Code      string `json:"code,omitempty"`
		}
		if err := rows.Scan(&r.Tick, &r.Drone, &r.Type, &r.TaskID, &r.Phase, &r.Provider, &r.Requester, &r.Kind, &r.Resource, &r.Amount, &r.Code); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryTransfers(out io.Writer, db *sql.DB, runID string, opts indexOptions) error {
	query := `SELECT tick, drone, frame, phase, kind, resource, amount FROM transfers WHERE run_id = ?`
	args := []any{runID}
	if opts.drone != "" {
		query += ` AND drone = ?`
		args = append(args, opts.drone)
	}
	query += ` ORDER BY tick, seq LIMIT ?`
	args = append(args, opts.limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	enc := json.NewEncoder(out)
	for rows.Next() {
		var r struct {
			Tick     uint64 `json:"tick"`
			Drone    string `json:"drone"`
			Frame    string `json:"frame"`
			Phase    string `json:"phase"`
			Kind     string `json:"kind"`
			Resource string `json:"resource"`
			Amount   int    `json:"amount"`
		}
		if err := rows.Scan(&r.Tick, &r.Drone, &r.Frame, &r.Phase, &r.Kind, &r.Resource, &r.Amount); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func querySnapshots(out io.Writer, db *sql.DB, runID string, limit int) error {
	rows, err := db.Query(`SELECT tick, path, frames, drones FROM snapshots WHERE run_id = ? ORDER BY tick DESC LIMIT ?`, runID, limit)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	enc := json.NewEncoder(out)
	for rows.Next() {
		var r struct {
			Tick   uint64 `json:"tick"`
			Path   string `json:"path"`
			Frames int    `json:"frames"`
			Drones int    `json:"drones"`
		}
		if err := rows.Scan(&r.Tick, &r.Path, &r.Frames, &r.Drones); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
