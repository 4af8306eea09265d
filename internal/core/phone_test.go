package core_test

import (
	"errors"
	"testing"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare national", "3001234567", "3001234567", true},
		{"with spaces and dashes", "300 123-45-67", "3001234567", true},
		{"colombian international", "573001234567", "3001234567", true},
		{"plus prefix", "+573001234567", "3001234567", true},
		{"wa format with parens", "(+57) 300 1234567", "3001234567", true},
		{"too short", "300123", "", false},
		{"landline length", "6015551234", "6015551234", true},
		{"garbage", "not-a-phone", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.NormalizePhone(tt.input)
			if tt.ok && err != nil {
				t.Fatalf("NormalizePhone(%q) failed: %v", tt.input, err)
			}
			if !tt.ok {
				var invalid *core.InvalidPhoneError
				if !errors.As(err, &invalid) {
					t.Fatalf("NormalizePhone(%q) should fail with InvalidPhoneError, got %v", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsTenDigitPhone(t *testing.T) {
	for input, want := range map[string]bool{
		"3001234567":   true,
		"300123456":    false,
		"30012345678":  false,
		"300123456a":   false,
		"":             false,
		"573001234567": false,
	} {
		if got := core.IsTenDigitPhone(input); got != want {
			t.Errorf("IsTenDigitPhone(%q) = %v, want %v", input, got, want)
		}
	}
}
