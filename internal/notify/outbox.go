package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx, so callers can enqueue
// either standalone or inside an existing transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Outbox writes pending notifications for the dispatcher to drain.
type Outbox struct{}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Enqueue(ctx context.Context, q Execer, out Outgoing) error {
	_, err := q.Exec(ctx,
		`INSERT INTO notifications (to_phone, body, status) VALUES ($1, $2, 'PENDING')`,
		out.ToPhone, out.Body)
	if err != nil {
		return fmt.Errorf("enqueueing notification: %w", err)
	}
	return nil
}

// maxAttempts bounds retries before a notification is parked as FAILED.
const maxAttempts = 5

// staleClaim is how long a SENDING row may sit unclaimed before another
// dispatcher may take it over (covers a dispatcher crashing mid-send).
const staleClaim = 2 * time.Minute

// Dispatcher polls the notifications table and delivers pending rows.
// Rows are claimed with FOR UPDATE SKIP LOCKED so several dispatchers can
// run without double-sending.
type Dispatcher struct {
	Pool      *pgxpool.Pool
	Sender    Sender
	Log       *logrus.Logger
	BatchSize int
	Interval  time.Duration
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if err := d.dispatchBatch(ctx); err != nil {
				d.Log.WithError(err).Error("notification batch failed")
			}
		}
	}
}

type outboxRow struct {
	id       int64
	toPhone  string
	body     string
	attempts int
}

// dispatchBatch claims a batch in a short transaction, then sends outside
// it so slow deliveries never hold row locks or a pool connection.
func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	claimed, err := d.claimBatch(ctx)
	if err != nil {
		return err
	}

	for _, r := range claimed {
		if sendErr := d.Sender.Send(ctx, Outgoing{ToPhone: r.toPhone, Body: r.body}); sendErr != nil {
			d.Log.WithError(sendErr).WithField("notification_id", r.id).Warn("delivery failed")
			status := "PENDING"
			if r.attempts+1 >= maxAttempts {
				status = "FAILED"
			}
			if _, err := d.Pool.Exec(ctx, `
				UPDATE notifications
				SET attempts = attempts + 1, last_error = $2, status = $3
				WHERE id = $1`, r.id, sendErr.Error(), status); err != nil {
				return fmt.Errorf("recording delivery failure: %w", err)
			}
			continue
		}
		if _, err := d.Pool.Exec(ctx, `
			UPDATE notifications
			SET status = 'SENT', attempts = attempts + 1, sent_at = NOW()
			WHERE id = $1`, r.id); err != nil {
			return fmt.Errorf("marking notification sent: %w", err)
		}
	}
	return nil
}

// claimBatch marks up to BatchSize rows SENDING and returns them. SENDING
// rows whose claim went stale are picked up again.
func (d *Dispatcher) claimBatch(ctx context.Context) ([]outboxRow, error) {
	batch := d.BatchSize
	if batch <= 0 {
		batch = 20
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, to_phone, body, attempts
		FROM notifications
		WHERE status = 'PENDING'
		   OR (status = 'SENDING' AND claimed_at < NOW() - make_interval(secs => $2))
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batch, staleClaim.Seconds())
	if err != nil {
		return nil, fmt.Errorf("selecting pending notifications: %w", err)
	}
	var claimed []outboxRow
	var ids []int64
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.toPhone, &r.body, &r.attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		claimed = append(claimed, r)
		ids = append(ids, r.id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading notifications: %w", err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE notifications
		SET status = 'SENDING', claimed_at = NOW()
		WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("claiming notifications: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return claimed, nil
}
