package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
)

func TestNextCodeSequence(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	year := time.Now().Year()

	next := func(prefix string) string {
		t.Helper()
		tx, err := pool.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		defer tx.Rollback(ctx)
		code, err := core.NextCode(ctx, tx, prefix, year)
		if err != nil {
			t.Fatalf("NextCode(%s): %v", prefix, err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		return code
	}

	if got := next("MN"); got != core.FormatCode("MN", year, 1) {
		t.Errorf("first MN code = %s", got)
	}
	if got := next("MN"); got != core.FormatCode("MN", year, 2) {
		t.Errorf("second MN code = %s", got)
	}
	// Prefixes count independently.
	if got := next("PROV"); got != core.FormatCode("PROV", year, 1) {
		t.Errorf("first PROV code = %s", got)
	}
	// So do years.
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(ctx)
	code, err := core.NextCode(ctx, tx, "MN", year+1)
	if err != nil {
		t.Fatal(err)
	}
	if code != core.FormatCode("MN", year+1, 1) {
		t.Errorf("next year should restart at 1, got %s", code)
	}
	_ = tx.Commit(ctx)
}

func TestNextCodeConcurrent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	year := time.Now().Year()
	const workers = 20

	var (
		mu    sync.Mutex
		codes = make(map[string]bool)
		wg    sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := pool.Begin(ctx)
			if err != nil {
				t.Errorf("begin: %v", err)
				return
			}
			defer tx.Rollback(ctx)
			code, err := core.NextCode(ctx, tx, "MN", year)
			if err != nil {
				t.Errorf("NextCode: %v", err)
				return
			}
			if err := tx.Commit(ctx); err != nil {
				t.Errorf("commit: %v", err)
				return
			}
			mu.Lock()
			codes[code] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(codes) != workers {
		t.Fatalf("expected %d unique codes, got %d", workers, len(codes))
	}
	for i := 1; i <= workers; i++ {
		if !codes[core.FormatCode("MN", year, int64(i))] {
			t.Errorf("missing code %s: sequence must be gapless", core.FormatCode("MN", year, int64(i)))
		}
	}
}

// Concurrent advances on the same order must serialize on the row lock and
// keep paid + balance == total.
func TestConcurrentAdvances(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, core.CreateOrderInput{
		ClientName: "Juan", Phone: "3001234567", Description: "Comedor completo",
		TotalValue: decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 10 x 10000 pays it off exactly; any double-spend would make a
			// later advance exceed the balance.
			if _, err := svc.ApplyAdvance(ctx, o.OrderCode, decimal.NewFromInt(10000)); err != nil {
				t.Errorf("advance failed: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := svc.GetByCode(ctx, o.OrderCode)
	if err != nil {
		t.Fatal(err)
	}
	if !final.AmountPaid.Equal(final.TotalValue) || !final.PendingBalance.IsZero() {
		t.Fatalf("invariant broken after concurrent advances: paid=%s balance=%s",
			final.AmountPaid, final.PendingBalance)
	}
	if final.Status != core.StatusPagado {
		t.Errorf("expected PAGADO, got %s", final.Status)
	}
}
