package core

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// TokenKind classifies a balance-lookup token by shape.
type TokenKind int

const (
	TokenInvalid TokenKind = iota
	TokenOrderID           // pure integer, up to 6 digits
	TokenOrderCode         // PREFIX-YYYY-NNNN, case-insensitive
	TokenPhone             // 7 to 10 digits
)

var codePattern = regexp.MustCompile(`^([A-Za-z]{2,4})-(\d{4})-(\d{4})$`)

// lookupHint is the user-facing explanation attached to InvalidFormatError.
const lookupHint = "Envía el número de pedido (ej. MN-2025-0001), el ID, o tu número de celular."

// ClassifyToken decides how a lookup token should be resolved and returns the
// normalized form: order codes are uppercased, id/phone tokens reduced to
// their digits.
func ClassifyToken(token string) (TokenKind, string) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return TokenInvalid, ""
	}

	if codePattern.MatchString(trimmed) {
		return TokenOrderCode, strings.ToUpper(trimmed)
	}

	if digits := DigitsOnly(trimmed); digits == trimmed {
		switch {
		case len(digits) <= 6:
			return TokenOrderID, digits
		case len(digits) <= 10:
			return TokenPhone, digits
		}
	}

	return TokenInvalid, ""
}

// BalanceService resolves balance queries across both ledgers. Lookups never
// mutate; cancelled orders and orders that are both delivered and fully paid
// are filtered out of every result.
type BalanceService struct {
	orders    OrderService
	suppliers SupplierService
}

func NewBalanceService(orders OrderService, suppliers SupplierService) *BalanceService {
	return &BalanceService{orders: orders, suppliers: suppliers}
}

// Lookup classifies the token and resolves it: id and phone tokens search
// customer orders (phone may yield several, newest first), code tokens go to
// the ledger named by their prefix. Returns InvalidFormatError for unknown
// shapes and ErrNoResults when nothing survives the active filter.
func (b *BalanceService) Lookup(ctx context.Context, token string) ([]OrderSummary, error) {
	kind, normalized := ClassifyToken(token)

	switch kind {
	case TokenOrderID:
		id, err := strconv.Atoi(normalized)
		if err != nil {
			return nil, &InvalidFormatError{Token: token, Hint: lookupHint}
		}
		o, err := b.orders.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNoResults
			}
			return nil, err
		}
		return nonEmpty(b.filterOrders(*o))

	case TokenOrderCode:
		return b.lookupByCode(ctx, normalized)

	case TokenPhone:
		orders, err := b.orders.GetByPhone(ctx, normalized, true)
		if err != nil {
			var invalid *InvalidPhoneError
			if errors.As(err, &invalid) {
				return nil, &InvalidFormatError{Token: token, Hint: lookupHint}
			}
			return nil, err
		}
		summaries := b.filterOrders(orders...)
		if len(summaries) == 0 {
			return nil, ErrNoResults
		}
		return summaries, nil

	default:
		return nil, &InvalidFormatError{Token: token, Hint: lookupHint}
	}
}

func (b *BalanceService) lookupByCode(ctx context.Context, code string) ([]OrderSummary, error) {
	switch {
	case strings.HasPrefix(code, OrderCodePrefix+"-"):
		o, err := b.orders.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNoResults
			}
			return nil, err
		}
		return nonEmpty(b.filterOrders(*o))

	case strings.HasPrefix(code, SupplierOrderCodePrefix+"-"):
		so, err := b.suppliers.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNoResults
			}
			return nil, err
		}
		if so.Cancelado || so.Completado {
			return nil, ErrNoResults
		}
		return []OrderSummary{supplierSummary(so)}, nil

	default:
		return nil, &InvalidFormatError{Token: code, Hint: lookupHint}
	}
}

// filterOrders drops closed orders and flattens the rest, newest first. The
// input is assumed already sorted by the query for multi-row lookups.
func (b *BalanceService) filterOrders(orders ...Order) []OrderSummary {
	var out []OrderSummary
	for i := range orders {
		o := &orders[i]
		if o.Closed() {
			continue
		}
		out = append(out, OrderSummary{
			OrderCode:         o.OrderCode,
			Name:              o.ClientName,
			Description:       o.Description,
			Total:             o.TotalValue,
			Paid:              o.AmountPaid,
			Balance:           o.PendingBalance,
			Status:            string(o.Status),
			EstimatedDelivery: o.EstimatedDeliveryDate,
			CreatedAt:         o.CreatedAt,
		})
	}
	return out
}

// nonEmpty maps an empty filtered result to ErrNoResults.
func nonEmpty(summaries []OrderSummary) ([]OrderSummary, error) {
	if len(summaries) == 0 {
		return nil, ErrNoResults
	}
	return summaries, nil
}

func supplierSummary(so *SupplierOrder) OrderSummary {
	return OrderSummary{
		OrderCode:   so.OrderCode,
		Name:        so.SupplierName,
		Description: so.Description,
		Total:       so.ValorTotal,
		Paid:        so.ValorAbonado,
		Balance:     so.SaldoPendiente,
		Status:      string(so.Status),
		CreatedAt:   so.CreatedAt,
	}
}
