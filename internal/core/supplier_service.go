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

// SupplierService owns the supplier master data and the supplier order
// ledger. Supplier orders share the balance invariant of customer orders but
// diverge on completion: full payment never auto-completes, an admin must
// call Complete, and Complete requires a zero pending balance.
type SupplierService interface {
	// FindSupplierByPhone returns ErrNotFound when no supplier has the phone.
	FindSupplierByPhone(ctx context.Context, phone string) (*Supplier, error)

	CreateSupplierOrder(ctx context.Context, in CreateSupplierOrderInput) (*SupplierOrder, error)
	// ApplyAbono records a payment toward the supplier. Same guards as the
	// customer ledger; the status stays EN_PROCESO even at zero balance.
	ApplyAbono(ctx context.Context, orderCode string, amount decimal.Decimal) (*SupplierOrder, error)
	// Complete requires saldo_pendiente == 0 and fails on cancelled orders.
	Complete(ctx context.Context, orderCode string) (*SupplierOrder, error)
	// Cancel is forbidden once the order is completed, and vice versa.
	Cancel(ctx context.Context, orderCode string) (*SupplierOrder, error)

	GetByCode(ctx context.Context, orderCode string) (*SupplierOrder, error)
	GetByID(ctx context.Context, id int) (*SupplierOrder, error)
}

type supplierService struct {
	pool *pgxpool.Pool
}

func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

const supplierOrderColumns = `
	so.id, so.order_code, so.supplier_id, s.name, s.phone,
	so.description, so.valor_total, so.valor_abonado, so.saldo_pendiente,
	so.status, so.completado, so.completado_at, so.cancelado, so.cancelado_at,
	so.created_at`

func (s *supplierService) FindSupplierByPhone(ctx context.Context, phone string) (*Supplier, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	var sup Supplier
	err = s.pool.QueryRow(ctx,
		"SELECT id, phone, name, created_at FROM suppliers WHERE phone = $1",
		normalized,
	).Scan(&sup.ID, &sup.Phone, &sup.Name, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch supplier %s: %w", normalized, err)
	}
	return &sup, nil
}

func (s *supplierService) CreateSupplierOrder(ctx context.Context, in CreateSupplierOrderInput) (*SupplierOrder, error) {
	if !in.ValorTotal.IsPositive() {
		return nil, fmt.Errorf("create supplier order: %w", ErrInvalidTotal)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	supplierID := in.SupplierID
	if supplierID == 0 {
		phone, err := NormalizePhone(in.Phone)
		if err != nil {
			return nil, fmt.Errorf("create supplier order: %w", err)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO suppliers (phone, name)
			VALUES ($1, $2)
			ON CONFLICT (phone)
			DO UPDATE SET name = COALESCE(NULLIF(suppliers.name, ''), EXCLUDED.name)
			RETURNING id
		`, phone, in.SupplierName).Scan(&supplierID)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert supplier %s: %w", phone, err)
		}
	}

	code, err := NextCode(ctx, tx, SupplierOrderCodePrefix, time.Now().Year())
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO supplier_orders (order_code, supplier_id, description, valor_total, valor_abonado, saldo_pendiente, status)
		VALUES ($1, $2, $3, $4, 0, $4, $5)
	`, code, supplierID, in.Description, in.ValorTotal, string(SupplierStatusEnProceso))
	if err != nil {
		return nil, fmt.Errorf("failed to insert supplier order %s: %w", code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier order creation: %w", err)
	}

	return s.GetByCode(ctx, code)
}

func (s *supplierService) ApplyAbono(ctx context.Context, orderCode string, amount decimal.Decimal) (*SupplierOrder, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("abono on %s: %w", orderCode, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id        int
		total     decimal.Decimal
		abonado   decimal.Decimal
		saldo     decimal.Decimal
		cancelado bool
	)
	err = tx.QueryRow(ctx, `
		SELECT id, valor_total, valor_abonado, saldo_pendiente, cancelado
		FROM supplier_orders
		WHERE order_code = $1
		FOR UPDATE
	`, orderCode).Scan(&id, &total, &abonado, &saldo, &cancelado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("abono on %s: %w", orderCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch supplier order %s: %w", orderCode, err)
	}

	if cancelado {
		return nil, fmt.Errorf("abono on %s: %w", orderCode, ErrAlreadyCancelled)
	}
	if amount.GreaterThan(saldo) {
		return nil, &ExceedsBalanceError{Balance: saldo}
	}

	newAbonado := abonado.Add(amount)
	newSaldo := total.Sub(newAbonado)

	_, err = tx.Exec(ctx, `
		UPDATE supplier_orders SET valor_abonado = $1, saldo_pendiente = $2 WHERE id = $3
	`, newAbonado, newSaldo, id)
	if err != nil {
		return nil, fmt.Errorf("failed to apply abono to %s: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit abono on %s: %w", orderCode, err)
	}

	return s.GetByID(ctx, id)
}

func (s *supplierService) Complete(ctx context.Context, orderCode string) (*SupplierOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id         int
		saldo      decimal.Decimal
		completado bool
		cancelado  bool
	)
	err = tx.QueryRow(ctx, `
		SELECT id, saldo_pendiente, completado, cancelado
		FROM supplier_orders
		WHERE order_code = $1
		FOR UPDATE
	`, orderCode).Scan(&id, &saldo, &completado, &cancelado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("complete %s: %w", orderCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch supplier order %s: %w", orderCode, err)
	}

	if cancelado {
		return nil, fmt.Errorf("complete %s: %w", orderCode, ErrAlreadyCancelled)
	}
	if completado {
		return nil, fmt.Errorf("complete %s: %w", orderCode, ErrAlreadyCompleted)
	}
	if !saldo.IsZero() {
		return nil, fmt.Errorf("complete %s: %w", orderCode, ErrBalanceNotZero)
	}

	_, err = tx.Exec(ctx, `
		UPDATE supplier_orders SET completado = true, status = $1, completado_at = NOW() WHERE id = $2
	`, string(SupplierStatusCompletado), id)
	if err != nil {
		return nil, fmt.Errorf("failed to complete supplier order %s: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit completion of %s: %w", orderCode, err)
	}

	return s.GetByID(ctx, id)
}

func (s *supplierService) Cancel(ctx context.Context, orderCode string) (*SupplierOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id         int
		completado bool
		cancelado  bool
	)
	err = tx.QueryRow(ctx, `
		SELECT id, completado, cancelado
		FROM supplier_orders
		WHERE order_code = $1
		FOR UPDATE
	`, orderCode).Scan(&id, &completado, &cancelado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cancel %s: %w", orderCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch supplier order %s: %w", orderCode, err)
	}

	if cancelado {
		return nil, fmt.Errorf("cancel %s: %w", orderCode, ErrAlreadyCancelled)
	}
	if completado {
		return nil, fmt.Errorf("cancel %s: %w", orderCode, ErrAlreadyCompleted)
	}

	_, err = tx.Exec(ctx, `
		UPDATE supplier_orders SET cancelado = true, status = $1, cancelado_at = NOW() WHERE id = $2
	`, string(SupplierStatusCancelado), id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel supplier order %s: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation of %s: %w", orderCode, err)
	}

	return s.GetByID(ctx, id)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *supplierService) GetByCode(ctx context.Context, orderCode string) (*SupplierOrder, error) {
	return s.getOne(ctx, "so.order_code = $1", orderCode)
}

func (s *supplierService) GetByID(ctx context.Context, id int) (*SupplierOrder, error) {
	return s.getOne(ctx, "so.id = $1", id)
}

func (s *supplierService) getOne(ctx context.Context, where string, arg any) (*SupplierOrder, error) {
	var so SupplierOrder
	err := s.pool.QueryRow(ctx, `
		SELECT `+supplierOrderColumns+`
		FROM supplier_orders so
		JOIN suppliers s ON s.id = so.supplier_id
		WHERE `+where,
		arg,
	).Scan(
		&so.ID, &so.OrderCode, &so.SupplierID, &so.SupplierName, &so.SupplierPhone,
		&so.Description, &so.ValorTotal, &so.ValorAbonado, &so.SaldoPendiente,
		&so.Status, &so.Completado, &so.CompletadoAt, &so.Cancelado, &so.CanceladoAt,
		&so.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch supplier order: %w", err)
	}
	return &so, nil
}
