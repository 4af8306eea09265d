package messages

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "$0"},
		{500, "$500"},
		{850000, "$850.000"},
		{1234567, "$1.234.567"},
		{-40000, "-$40.000"},
	}
	for _, tt := range tests {
		if got := Money(decimal.NewFromInt(tt.in)); got != tt.want {
			t.Errorf("Money(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if got := StatusLabel(string(core.StatusEnFabricacion)); got != "En fabricación" {
		t.Errorf("StatusLabel = %q", got)
	}
	if got := StatusLabel("RARO"); got != "RARO" {
		t.Errorf("unknown status should pass through, got %q", got)
	}
}

func TestBalanceSummary(t *testing.T) {
	got := BalanceSummary([]core.OrderSummary{
		{
			OrderCode:   "MN-2025-0001",
			Name:        "Juan",
			Description: "Mesa de comedor",
			Total:       decimal.NewFromInt(100000),
			Paid:        decimal.NewFromInt(40000),
			Balance:     decimal.NewFromInt(60000),
			Status:      string(core.StatusEnFabricacion),
		},
		{
			OrderCode:   "MN-2025-0002",
			Name:        "Juan",
			Description: "Silla",
			Total:       decimal.NewFromInt(50000),
			Paid:        decimal.Zero,
			Balance:     decimal.NewFromInt(50000),
			Status:      string(core.StatusPendienteAbono),
		},
	})
	for _, want := range []string{"MN-2025-0001", "MN-2025-0002", "$60.000", "En fabricación", "Pendiente de abono"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestConfirmOrder(t *testing.T) {
	got := ConfirmOrder("Juan", "3001234567", "Mesa", decimal.NewFromInt(50000))
	for _, want := range []string{"Juan", "3001234567", "Mesa", "$50.000", "SI", "/no"} {
		if !strings.Contains(got, want) {
			t.Errorf("confirmation missing %q:\n%s", want, got)
		}
	}
}
