package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"YieldLedger/internal/event"
	"YieldLedger/internal/persistence"
	"YieldLedger/internal/testutil"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func depositEnvelope(seq int64, owner string) event.Envelope {
	return event.Envelope{
		Sequence:  seq,
		EventType: event.EventTypeCollateralDeposited,
		Owner:     owner,
		Timestamp: t0.Add(time.Duration(seq) * time.Second),
		Payload: &event.CollateralDeposited{
			CollateralID:    uuid.New(),
			Owner:           owner,
			Contract:        "0xnft",
			TokenID:         "1",
			Protocol:        "aave",
			CollateralValue: 100_000_000_000,
		},
	}
}

// ============================================================================
// Test: event log writer (integration)
// ============================================================================

func TestEventLogWriter_BatchAndResume(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)

	if seq, err := writer.LastSequence(ctx); err != nil || seq != 0 {
		t.Fatalf("empty log LastSequence = %d, %v; want 0, nil", seq, err)
	}

	rows := make([]persistence.EventRow, 0, 3)
	for seq := int64(1); seq <= 3; seq++ {
		row, err := persistence.RowFromEnvelope(depositEnvelope(seq, "alice"))
		if err != nil {
			t.Fatalf("row from envelope: %v", err)
		}
		rows = append(rows, row)
	}

	writeBatch := func() {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		if err := writer.WriteEventBatch(ctx, tx, rows); err != nil {
			t.Fatalf("write batch: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	writeBatch()
	// Re-sending the same sequences must be a no-op.
	writeBatch()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM event_log.events`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 3 {
		t.Errorf("row count = %d, want 3 (duplicate batch must not insert)", count)
	}

	if seq, err := writer.LastSequence(ctx); err != nil || seq != 3 {
		t.Errorf("LastSequence = %d, %v; want 3, nil", seq, err)
	}

	var eventType string
	if err := db.QueryRow(
		`SELECT event_type FROM event_log.events WHERE sequence = 1`,
	).Scan(&eventType); err != nil {
		t.Fatalf("read event_type: %v", err)
	}
	if eventType != "collateral_deposited" {
		t.Errorf("event_type = %q, want collateral_deposited", eventType)
	}
}

// ============================================================================
// Test: batching worker (integration)
// ============================================================================

func TestWorker_DrainsChannelOnClose(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	input := make(chan event.Envelope, 16)
	worker := persistence.NewWorker(db, input, 4, 10*time.Millisecond, nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	// 10 events against a batch size of 4 forces two full batches plus a
	// partial flush on close.
	for seq := int64(1); seq <= 10; seq++ {
		input <- depositEnvelope(seq, "bob")
	}
	close(input)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("worker returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after channel close")
	}

	if seq, err := worker.Writer().LastSequence(ctx); err != nil || seq != 10 {
		t.Errorf("LastSequence = %d, %v; want 10, nil", seq, err)
	}
}
