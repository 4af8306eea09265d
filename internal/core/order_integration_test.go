package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
)

func TestOrderLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, core.CreateOrderInput{
		ClientName:  "Juan Pérez",
		Phone:       "+57 300 123 4567",
		Description: "Mesa de comedor",
		TotalValue:  decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if o.OrderCode == "" || o.Status != core.StatusPendienteAbono {
		t.Fatalf("unexpected new order: %+v", o)
	}
	if o.ClientPhone != "3001234567" {
		t.Errorf("phone should be normalized to national digits, got %q", o.ClientPhone)
	}
	if !o.PendingBalance.Equal(decimal.NewFromInt(100000)) || !o.AmountPaid.IsZero() {
		t.Errorf("new order must start unpaid: paid=%s balance=%s", o.AmountPaid, o.PendingBalance)
	}
	if o.EstimatedDeliveryDate != nil {
		t.Error("estimated delivery must not be set before the first advance")
	}

	// First advance: status moves, the delivery estimate is fixed.
	o, err = svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(40000))
	if err != nil {
		t.Fatalf("first advance failed: %v", err)
	}
	if o.Status != core.StatusEnFabricacion {
		t.Errorf("expected EN_FABRICACION, got %s", o.Status)
	}
	if !o.PendingBalance.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("balance after 40000 should be 60000, got %s", o.PendingBalance)
	}
	if o.EstimatedDeliveryDate == nil {
		t.Fatal("first advance must set the estimated delivery date")
	}
	wantDate := o.CreatedAt.AddDate(0, 0, core.DeliveryLeadDays)
	if o.EstimatedDeliveryDate.Format("2006-01-02") != wantDate.Format("2006-01-02") {
		t.Errorf("estimate %s, want creation + %d days (%s)",
			o.EstimatedDeliveryDate.Format("2006-01-02"), core.DeliveryLeadDays, wantDate.Format("2006-01-02"))
	}
	firstEstimate := *o.EstimatedDeliveryDate

	// Overpayment is rejected with the current balance.
	_, err = svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(60001))
	var exceeds *core.ExceedsBalanceError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected ExceedsBalanceError, got %v", err)
	}
	if !exceeds.Balance.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("error should carry balance 60000, got %s", exceeds.Balance)
	}

	// Second advance pays it off; the estimate does not move.
	o, err = svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(60000))
	if err != nil {
		t.Fatalf("second advance failed: %v", err)
	}
	if o.Status != core.StatusPagado {
		t.Errorf("fully paid order should be PAGADO, got %s", o.Status)
	}
	if !o.PendingBalance.IsZero() || !o.AmountPaid.Equal(o.TotalValue) {
		t.Errorf("invariant broken: paid=%s balance=%s total=%s", o.AmountPaid, o.PendingBalance, o.TotalValue)
	}
	if !o.EstimatedDeliveryDate.Equal(firstEstimate) {
		t.Errorf("estimate must never be recomputed: %s vs %s", o.EstimatedDeliveryDate, firstEstimate)
	}

	// One more peso on a zero balance is still an overpayment.
	if _, err = svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(1)); !errors.As(err, &exceeds) {
		t.Fatalf("advance on zero balance should exceed, got %v", err)
	}

	// Pipeline: listo, entregado.
	o, err = svc.MarkReady(ctx, o.OrderCode)
	if err != nil || o.Status != core.StatusListo {
		t.Fatalf("MarkReady: %v, status %s", err, o.Status)
	}
	o, err = svc.MarkDelivered(ctx, o.OrderCode)
	if err != nil || o.Status != core.StatusEntregado || !o.Delivered {
		t.Fatalf("MarkDelivered: %v, status %s", err, o.Status)
	}

	// Delivered and fully paid means closed: cancellation is refused.
	if _, err = svc.CancelOrder(ctx, o.OrderCode); !errors.Is(err, core.ErrAlreadyCompleted) {
		t.Fatalf("cancelling a closed order should fail with ErrAlreadyCompleted, got %v", err)
	}
}

func TestOrderCancellation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, core.CreateOrderInput{
		ClientName:  "Ana",
		Phone:       "3015550000",
		Description: "Silla",
		TotalValue:  decimal.NewFromInt(80000),
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(30000)); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	o, err = svc.CancelOrder(ctx, o.OrderCode)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if !o.Cancelled || o.Status != core.StatusCancelado || o.CancelledAt == nil {
		t.Fatalf("cancellation not recorded: %+v", o)
	}
	// Balances are preserved as a record of what was paid.
	if !o.AmountPaid.Equal(decimal.NewFromInt(30000)) || !o.PendingBalance.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("cancellation must not touch balances: paid=%s balance=%s", o.AmountPaid, o.PendingBalance)
	}

	// Terminal: everything else is refused now.
	if _, err := svc.CancelOrder(ctx, o.OrderCode); !errors.Is(err, core.ErrAlreadyCancelled) {
		t.Errorf("double cancel should fail with ErrAlreadyCancelled, got %v", err)
	}
	if _, err := svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(1000)); !errors.Is(err, core.ErrAlreadyCancelled) {
		t.Errorf("advance on cancelled should fail, got %v", err)
	}
	if _, err := svc.MarkReady(ctx, o.OrderCode); !errors.Is(err, core.ErrAlreadyCancelled) {
		t.Errorf("MarkReady on cancelled should fail, got %v", err)
	}
}

func TestOrderInvalidInputs(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool)
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, core.CreateOrderInput{
		ClientName: "X", Phone: "3001234567", Description: "Mesa",
		TotalValue: decimal.Zero,
	}); !errors.Is(err, core.ErrInvalidTotal) {
		t.Errorf("zero total should fail, got %v", err)
	}

	o, err := svc.CreateOrder(ctx, core.CreateOrderInput{
		ClientName: "X", Phone: "3001234567", Description: "Mesa",
		TotalValue: decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.ApplyAdvance(ctx, o.OrderCode, decimal.Zero); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero advance should fail, got %v", err)
	}
	if _, err := svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(-5)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative advance should fail, got %v", err)
	}
	if _, err := svc.ApplyAdvance(ctx, "MN-2099-9999", decimal.NewFromInt(5)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown code should fail with ErrNotFound, got %v", err)
	}
}

func TestGetByPhoneActiveFilter(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool)
	ctx := context.Background()
	phone := "3001234567"

	mk := func(desc string, total int64) *core.Order {
		t.Helper()
		o, err := svc.CreateOrder(ctx, core.CreateOrderInput{
			ClientName: "Juan", Phone: phone, Description: desc,
			TotalValue: decimal.NewFromInt(total),
		})
		if err != nil {
			t.Fatalf("CreateOrder(%s): %v", desc, err)
		}
		return o
	}

	open := mk("abierta", 50000)
	cancelled := mk("cancelada", 60000)
	closed := mk("cerrada", 70000)
	deliveredUnpaid := mk("entregada con saldo", 80000)

	if _, err := svc.CancelOrder(ctx, cancelled.OrderCode); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApplyAdvance(ctx, closed.OrderCode, decimal.NewFromInt(70000)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.MarkDelivered(ctx, closed.OrderCode); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.MarkDelivered(ctx, deliveredUnpaid.OrderCode); err != nil {
		t.Fatal(err)
	}

	active, err := svc.GetByPhone(ctx, phone, true)
	if err != nil {
		t.Fatalf("GetByPhone failed: %v", err)
	}
	got := map[string]bool{}
	for _, o := range active {
		got[o.OrderCode] = true
	}
	if len(active) != 2 || !got[open.OrderCode] || !got[deliveredUnpaid.OrderCode] {
		t.Errorf("active filter should keep the open order and the delivered-but-unpaid order, got %v", got)
	}

	all, err := svc.GetByPhone(ctx, phone, false)
	if err != nil {
		t.Fatalf("GetByPhone(all) failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected all 4 orders without the filter, got %d", len(all))
	}
}
