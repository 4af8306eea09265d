package notify

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE TABLE notifications"); err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

// flakySender fails every delivery to one phone and records the rest.
type flakySender struct {
	failFor string
	sent    []Outgoing
}

func (f *flakySender) Send(_ context.Context, out Outgoing) error {
	if out.ToPhone == f.failFor {
		return errors.New("network down")
	}
	f.sent = append(f.sent, out)
	return nil
}

func newTestDispatcher(pool *pgxpool.Pool, sender Sender) *Dispatcher {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Dispatcher{Pool: pool, Sender: sender, Log: log, BatchSize: 10}
}

func notificationState(t *testing.T, pool *pgxpool.Pool, phone string) (status string, attempts int) {
	t.Helper()
	err := pool.QueryRow(context.Background(),
		"SELECT status, attempts FROM notifications WHERE to_phone = $1", phone,
	).Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("fetching notification for %s: %v", phone, err)
	}
	return status, attempts
}

func TestDispatcherDeliversAndRetries(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ob := NewOutbox()
	if err := ob.Enqueue(ctx, pool, Outgoing{ToPhone: "573001234567", Body: "hola"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := ob.Enqueue(ctx, pool, Outgoing{ToPhone: "573009998877", Body: "se pierde"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	sender := &flakySender{failFor: "573009998877"}
	d := newTestDispatcher(pool, sender)

	if err := d.dispatchBatch(ctx); err != nil {
		t.Fatalf("dispatchBatch failed: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].Body != "hola" {
		t.Fatalf("expected the deliverable row to be sent once, got %+v", sender.sent)
	}
	if status, attempts := notificationState(t, pool, "573001234567"); status != "SENT" || attempts != 1 {
		t.Errorf("delivered row should be SENT/1, got %s/%d", status, attempts)
	}
	// The failed row goes back to PENDING for the next pass.
	if status, attempts := notificationState(t, pool, "573009998877"); status != "PENDING" || attempts != 1 {
		t.Errorf("failed row should be PENDING/1, got %s/%d", status, attempts)
	}

	// Keep failing until the row is parked.
	for i := 0; i < maxAttempts-1; i++ {
		if err := d.dispatchBatch(ctx); err != nil {
			t.Fatalf("dispatchBatch failed: %v", err)
		}
	}
	if status, attempts := notificationState(t, pool, "573009998877"); status != "FAILED" || attempts != maxAttempts {
		t.Errorf("row should be parked FAILED after %d attempts, got %s/%d", maxAttempts, status, attempts)
	}
	// Parked rows are never claimed again.
	if err := d.dispatchBatch(ctx); err != nil {
		t.Fatalf("dispatchBatch failed: %v", err)
	}
	if status, attempts := notificationState(t, pool, "573009998877"); attempts != maxAttempts {
		t.Errorf("FAILED row must not be retried, got %s/%d", status, attempts)
	}
}

func TestDispatcherReclaimsStaleSending(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ob := NewOutbox()
	if err := ob.Enqueue(ctx, pool, Outgoing{ToPhone: "573001234567", Body: "hola"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// A dispatcher died mid-send: the row sits in SENDING with an old claim.
	if _, err := pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'SENDING', claimed_at = NOW() - INTERVAL '10 minutes'
		WHERE to_phone = '573001234567'`); err != nil {
		t.Fatal(err)
	}

	sender := &flakySender{}
	d := newTestDispatcher(pool, sender)
	if err := d.dispatchBatch(ctx); err != nil {
		t.Fatalf("dispatchBatch failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("stale SENDING row should be reclaimed and sent, got %d sends", len(sender.sent))
	}
	if status, _ := notificationState(t, pool, "573001234567"); status != "SENT" {
		t.Errorf("reclaimed row should end SENT, got %s", status)
	}
}

func TestDispatcherSkipsFreshClaims(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ob := NewOutbox()
	if err := ob.Enqueue(ctx, pool, Outgoing{ToPhone: "573001234567", Body: "hola"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	// Another dispatcher claimed it moments ago.
	if _, err := pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'SENDING', claimed_at = NOW()
		WHERE to_phone = '573001234567'`); err != nil {
		t.Fatal(err)
	}

	sender := &flakySender{}
	d := newTestDispatcher(pool, sender)
	if err := d.dispatchBatch(ctx); err != nil {
		t.Fatalf("dispatchBatch failed: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("freshly claimed row must not be double-sent, got %d sends", len(sender.sent))
	}
}
