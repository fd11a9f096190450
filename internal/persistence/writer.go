package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"YieldLedger/internal/event"
)

// EventLogWriter appends domain events to event_log.events with multi-row
// INSERT. ON CONFLICT DO NOTHING keeps replays idempotent: a re-sent sequence
// is silently skipped.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row in event_log.events.
type EventRow struct {
	Sequence  int64
	EventType string
	Owner     string
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowFromEnvelope flattens an envelope into its storage row.
func RowFromEnvelope(env event.Envelope) (EventRow, error) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal %s payload: %w", env.EventType, err)
	}
	return EventRow{
		Sequence:  env.Sequence,
		EventType: env.EventType.Subject(),
		Owner:     env.Owner,
		Payload:   payload,
		Timestamp: env.Timestamp,
	}, nil
}

// WriteEventBatch writes a batch inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, owner, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.Sequence, e.EventType, e.Owner, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest persisted sequence, 0 for an empty log.
func (w *EventLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM event_log.events`,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
