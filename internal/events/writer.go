package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"officesim/internal/domain"
)

// Writer appends simulation events to the journal.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Append inserts e within tx, stamping the timestamp and run when unset,
// and returns the stored row.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, runID string, e domain.Event) (domain.Event, error) {
	if e.TS == "" {
		e.TS = w.now().UTC().Format(time.RFC3339)
	}
	if e.RunID == "" {
		e.RunID = runID
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO events(ts,run_id,day,minute,type,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?,?,?)`,
		e.TS, e.RunID, e.Day, e.Minute, e.Type, e.EntityKind, nullable(e.EntityID), e.Payload)
	if err != nil {
		return e, fmt.Errorf("insert event %s: %w", e.Type, err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return e, err
	}
	return e, nil
}

// AppendBatch stores evts in one transaction.
func (w Writer) AppendBatch(ctx context.Context, runID string, evts []domain.Event) ([]domain.Event, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	stored := make([]domain.Event, 0, len(evts))
	for _, e := range evts {
		saved, err := w.Append(ctx, tx, runID, e)
		if err != nil {
			return nil, err
		}
		stored = append(stored, saved)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
