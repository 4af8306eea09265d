package core_test

import (
	"testing"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
)

func TestClassifyToken(t *testing.T) {
	tests := []struct {
		token    string
		kind     core.TokenKind
		resolved string
	}{
		{"MN-2025-0001", core.TokenOrderCode, "MN-2025-0001"},
		{"mn-2025-0001", core.TokenOrderCode, "MN-2025-0001"},
		{"PROV-2025-0042", core.TokenOrderCode, "PROV-2025-0042"},
		{" MN-2025-0001 ", core.TokenOrderCode, "MN-2025-0001"},
		{"7", core.TokenOrderID, "7"},
		{"123456", core.TokenOrderID, "123456"},
		{"1234567", core.TokenPhone, "1234567"},
		{"3001234567", core.TokenPhone, "3001234567"},
		{"30012345678", core.TokenInvalid, ""},
		{"MN-25-0001", core.TokenInvalid, ""},
		{"MN-2025-1", core.TokenInvalid, ""},
		{"XXXXX-2025-0001", core.TokenInvalid, ""},
		{"hola", core.TokenInvalid, ""},
		{"", core.TokenInvalid, ""},
		{"300 123 4567", core.TokenInvalid, ""},
	}
	for _, tt := range tests {
		kind, resolved := core.ClassifyToken(tt.token)
		if kind != tt.kind || resolved != tt.resolved {
			t.Errorf("ClassifyToken(%q) = (%v, %q), want (%v, %q)",
				tt.token, kind, resolved, tt.kind, tt.resolved)
		}
	}
}

func TestFormatCode(t *testing.T) {
	if got := core.FormatCode("MN", 2025, 1); got != "MN-2025-0001" {
		t.Errorf("FormatCode = %q", got)
	}
	if got := core.FormatCode("PROV", 2026, 123); got != "PROV-2026-0123" {
		t.Errorf("FormatCode = %q", got)
	}
	if got := core.FormatCode("MN", 2025, 10000); got != "MN-2025-10000" {
		t.Errorf("sequence past 9999 should widen, got %q", got)
	}
}
