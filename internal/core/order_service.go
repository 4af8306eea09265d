package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderService owns the customer order ledger: creation, advance payments,
// cancellation, delivery flags, and lookups. Every mutation runs its
// read-validate-write sequence inside one transaction with the order row
// locked, so concurrent advances on the same code serialize instead of both
// passing a stale balance check.
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	// ApplyAdvance adds a payment to the order. The first advance fixes the
	// estimated delivery date at creation + DeliveryLeadDays.
	ApplyAdvance(ctx context.Context, orderCode string, amount decimal.Decimal) (*Order, error)
	// CancelOrder is terminal. Re-invoking on a cancelled order fails with
	// ErrAlreadyCancelled rather than silently no-opping.
	CancelOrder(ctx context.Context, orderCode string) (*Order, error)
	MarkReady(ctx context.Context, orderCode string) (*Order, error)
	MarkDelivered(ctx context.Context, orderCode string) (*Order, error)

	GetByCode(ctx context.Context, orderCode string) (*Order, error)
	GetByID(ctx context.Context, id int) (*Order, error)
	// GetByPhone returns the client's orders, newest first. With activeOnly,
	// cancelled orders and orders both delivered and fully paid are excluded.
	GetByPhone(ctx context.Context, phone string, activeOnly bool) ([]Order, error)
}

type orderService struct {
	pool *pgxpool.Pool
}

func NewOrderService(pool *pgxpool.Pool) OrderService {
	return &orderService{pool: pool}
}

const orderColumns = `
	o.id, o.order_code, o.client_id, c.name, c.phone,
	o.description, o.total_value, o.amount_paid, o.pending_balance,
	o.status, o.cancelled, o.cancelled_at, o.delivered,
	o.estimated_delivery_date, o.created_at`

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if !in.TotalValue.IsPositive() {
		return nil, fmt.Errorf("create order: %w", ErrInvalidTotal)
	}

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Upsert the client by phone; a blank stored name is backfilled from the
	// flow input, an existing name is kept.
	var clientID int
	err = tx.QueryRow(ctx, `
		INSERT INTO clients (phone, name)
		VALUES ($1, $2)
		ON CONFLICT (phone)
		DO UPDATE SET name = COALESCE(NULLIF(clients.name, ''), EXCLUDED.name)
		RETURNING id
	`, phone, in.ClientName).Scan(&clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert client %s: %w", phone, err)
	}

	code, err := NextCode(ctx, tx, OrderCodePrefix, time.Now().Year())
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_code, client_id, description, total_value, amount_paid, pending_balance, status)
		VALUES ($1, $2, $3, $4, 0, $4, $5)
	`, code, clientID, in.Description, in.TotalValue, string(StatusPendienteAbono))
	if err != nil {
		return nil, fmt.Errorf("failed to insert order %s: %w", code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}

	return s.GetByCode(ctx, code)
}

func (s *orderService) ApplyAdvance(ctx context.Context, orderCode string, amount decimal.Decimal) (*Order, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("advance on %s: %w", orderCode, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id             int
		totalValue     decimal.Decimal
		amountPaid     decimal.Decimal
		pendingBalance decimal.Decimal
		cancelled      bool
		estimated      *time.Time
		createdAt      time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT id, total_value, amount_paid, pending_balance, cancelled, estimated_delivery_date, created_at
		FROM orders
		WHERE order_code = $1
		FOR UPDATE
	`, orderCode).Scan(&id, &totalValue, &amountPaid, &pendingBalance, &cancelled, &estimated, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("advance on %s: %w", orderCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderCode, err)
	}

	if cancelled {
		return nil, fmt.Errorf("advance on %s: %w", orderCode, ErrAlreadyCancelled)
	}
	if amount.GreaterThan(pendingBalance) {
		return nil, &ExceedsBalanceError{Balance: pendingBalance}
	}

	newPaid := amountPaid.Add(amount)
	newBalance := totalValue.Sub(newPaid)

	status := StatusEnFabricacion
	if newBalance.IsZero() {
		status = StatusPagado
	}

	// First advance fixes the estimated delivery date; later advances never
	// recompute it.
	if estimated == nil && amountPaid.IsZero() {
		d := createdAt.AddDate(0, 0, DeliveryLeadDays)
		estimated = &d
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET amount_paid = $1, pending_balance = $2, status = $3, estimated_delivery_date = $4
		WHERE id = $5
	`, newPaid, newBalance, string(status), estimated, id)
	if err != nil {
		return nil, fmt.Errorf("failed to apply advance to %s: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit advance on %s: %w", orderCode, err)
	}

	return s.GetByID(ctx, id)
}

func (s *orderService) CancelOrder(ctx context.Context, orderCode string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id             int
		pendingBalance decimal.Decimal
		cancelled      bool
		delivered      bool
	)
	err = tx.QueryRow(ctx, `
		SELECT id, pending_balance, cancelled, delivered
		FROM orders
		WHERE order_code = $1
		FOR UPDATE
	`, orderCode).Scan(&id, &pendingBalance, &cancelled, &delivered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cancel %s: %w", orderCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderCode, err)
	}

	if cancelled {
		return nil, fmt.Errorf("cancel %s: %w", orderCode, ErrAlreadyCancelled)
	}
	if delivered && pendingBalance.IsZero() {
		return nil, fmt.Errorf("cancel %s: %w", orderCode, ErrAlreadyCompleted)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET cancelled = true, status = $1, cancelled_at = NOW()
		WHERE id = $2
	`, string(StatusCancelado), id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation of %s: %w", orderCode, err)
	}

	return s.GetByID(ctx, id)
}

func (s *orderService) MarkReady(ctx context.Context, orderCode string) (*Order, error) {
	return s.setPipelineStatus(ctx, orderCode, StatusListo, false)
}

func (s *orderService) MarkDelivered(ctx context.Context, orderCode string) (*Order, error) {
	return s.setPipelineStatus(ctx, orderCode, StatusEntregado, true)
}

func (s *orderService) setPipelineStatus(ctx context.Context, orderCode string, status OrderStatus, delivered bool) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int
	var cancelled bool
	err = tx.QueryRow(ctx,
		"SELECT id, cancelled FROM orders WHERE order_code = $1 FOR UPDATE",
		orderCode,
	).Scan(&id, &cancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update %s: %w", orderCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderCode, err)
	}
	if cancelled {
		return nil, fmt.Errorf("update %s: %w", orderCode, ErrAlreadyCancelled)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1, delivered = delivered OR $2 WHERE id = $3
	`, string(status), delivered, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update of %s: %w", orderCode, err)
	}

	return s.GetByID(ctx, id)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetByCode(ctx context.Context, orderCode string) (*Order, error) {
	return s.getOne(ctx, "o.order_code = $1", orderCode)
}

func (s *orderService) GetByID(ctx context.Context, id int) (*Order, error) {
	return s.getOne(ctx, "o.id = $1", id)
}

func (s *orderService) getOne(ctx context.Context, where string, arg any) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE `+where,
		arg,
	).Scan(
		&o.ID, &o.OrderCode, &o.ClientID, &o.ClientName, &o.ClientPhone,
		&o.Description, &o.TotalValue, &o.AmountPaid, &o.PendingBalance,
		&o.Status, &o.Cancelled, &o.CancelledAt, &o.Delivered,
		&o.EstimatedDeliveryDate, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &o, nil
}

func (s *orderService) GetByPhone(ctx context.Context, phone string, activeOnly bool) ([]Order, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE c.phone = $1`
	if activeOnly {
		query += " AND NOT o.cancelled AND NOT (o.delivered AND o.pending_balance = 0)"
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := s.pool.Query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for %s: %w", normalized, err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.OrderCode, &o.ClientID, &o.ClientName, &o.ClientPhone,
			&o.Description, &o.TotalValue, &o.AmountPaid, &o.PendingBalance,
			&o.Status, &o.Cancelled, &o.CancelledAt, &o.Delivered,
			&o.EstimatedDeliveryDate, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
