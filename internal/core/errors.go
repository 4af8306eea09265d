package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Operation error kinds. Callers branch with errors.Is / errors.As instead of
// string-matching; every ledger mutation that returns one of these rolled its
// transaction back with no state change.
var (
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyCancelled = errors.New("order already cancelled")
	ErrAlreadyCompleted = errors.New("order already completed")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidTotal     = errors.New("total value must be greater than zero")
	ErrBalanceNotZero   = errors.New("order still has a pending balance")
	ErrNoResults        = errors.New("no active orders found")
)

// ExceedsBalanceError is returned when an advance is larger than the pending
// balance. It carries the current balance so the conversational surface can
// tell the admin how much is actually owed.
type ExceedsBalanceError struct {
	Balance decimal.Decimal
}

func (e *ExceedsBalanceError) Error() string {
	return fmt.Sprintf("amount exceeds pending balance of %s", e.Balance.StringFixed(0))
}

// InvalidFormatError is returned by balance lookups when the token matches no
// known shape. Hint is a user-facing explanation of the accepted formats.
type InvalidFormatError struct {
	Token string
	Hint  string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("unrecognized lookup token %q", e.Token)
}

// InvalidPhoneError is returned when a phone number does not normalize to the
// expected 10 national digits.
type InvalidPhoneError struct {
	Input string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf("phone %q is not a valid 10-digit number", e.Input)
}
