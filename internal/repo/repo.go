package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"officesim/internal/domain"
)

// Repo reads and writes the run journal.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// EventFilter narrows event queries. Zero fields do not filter.
type EventFilter struct {
	RunID      string
	Type       string
	EntityKind string
	EntityID   string
	Day        int
}

func (f EventFilter) clauses() ([]string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.RunID != "" {
		clauses = append(clauses, "run_id=?")
		args = append(args, f.RunID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Day > 0 {
		clauses = append(clauses, "day=?")
		args = append(args, f.Day)
	}
	return clauses, args
}

func (r Repo) InsertRun(ctx context.Context, run domain.Run) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO runs(id,seed,workers,label,started_at) VALUES (?,?,?,?,?)`,
		run.ID, int64(run.Seed), run.Workers, nullable(run.Label), run.StartedAt)
	return err
}

func scanRun(scan func(dest ...any) error) (domain.Run, error) {
	var run domain.Run
	var seed int64
	var label sql.NullString
	if err := scan(&run.ID, &seed, &run.Workers, &label, &run.StartedAt); err != nil {
		return run, err
	}
	run.Seed = uint64(seed)
	run.Label = label.String
	return run, nil
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,seed,workers,label,started_at FROM runs WHERE id=?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (r Repo) LatestRun(ctx context.Context) (domain.Run, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,seed,workers,label,started_at FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	return run, err
}

func (r Repo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,seed,workers,label,started_at FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

const eventColumns = `id,ts,run_id,day,minute,type,entity_kind,COALESCE(entity_id,''),payload_json`

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.RunID, &e.Day, &e.Minute, &e.Type, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvents returns the newest events first.
func (r Repo) LatestEvents(ctx context.Context, limit int, f EventFilter) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, f)
}

// LatestEventsFrom pages backwards from cursor (exclusive).
func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, f EventFilter) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses, args := f.clauses()
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id DESC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, f EventFilter) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses, args := f.clauses()
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id ASC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// LatestEventID returns the most recent event ID for a run, or across runs
// when runID is empty.
func (r Repo) LatestEventID(ctx context.Context, runID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if runID != "" {
		query += ` WHERE run_id=?`
		args = append(args, runID)
	}
	var id int64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// CountEventsByType tallies a run's events per type.
func (r Repo) CountEventsByType(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT type, count(*) FROM events WHERE run_id=? GROUP BY type`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		res[typ] = count
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
