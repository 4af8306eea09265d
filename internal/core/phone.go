package core

import (
	"strconv"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// phoneDigits is the length of a bare national number (Colombian mobile).
const phoneDigits = 10

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// NormalizePhone reduces a phone number in any common inbound format
// ("+57 300 123 4567", "573001234567", "300-123-4567") to its bare national
// digits. Ten bare digits pass through untouched; longer inputs are parsed
// with libphonenumber and reduced to their national significant number.
func NormalizePhone(input string) (string, error) {
	digits := DigitsOnly(input)
	if len(digits) == phoneDigits {
		return digits, nil
	}
	if len(digits) > phoneDigits {
		p, err := libphonenumber.Parse("+"+digits, "")
		if err == nil {
			national := strconv.FormatUint(p.GetNationalNumber(), 10)
			if len(national) == phoneDigits {
				return national, nil
			}
		}
	}
	return "", &InvalidPhoneError{Input: input}
}

// IsTenDigitPhone reports whether the text contains exactly ten digits once
// separators are stripped. The admin flows re-prompt on anything else.
func IsTenDigitPhone(text string) bool {
	return len(DigitsOnly(text)) == phoneDigits
}
