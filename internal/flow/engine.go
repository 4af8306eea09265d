// Package flow drives the multi-step admin conversations that create
// customer and supplier orders. Each step consumes one inbound message and
// produces the prompt for the next step; nothing touches the database until
// the admin confirms.
package flow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/messages"
)

// AbortToken cancels any flow from any step.
const AbortToken = "/no"

// milesFactor converts the admin's shorthand amount into pesos: 850 means
// $850.000.
const milesFactor = 1000

// ErrNoActiveFlow is returned by Handle when the admin has no in-progress
// conversation.
var ErrNoActiveFlow = errors.New("no active flow")

// Reply is one outbound message the caller should deliver.
type Reply struct {
	To   string
	Body string
}

// OrderLedger is the slice of the order service the engine commits through.
type OrderLedger interface {
	CreateOrder(ctx context.Context, in core.CreateOrderInput) (*core.Order, error)
}

// SupplierLedger covers supplier lookup and supplier-order creation.
type SupplierLedger interface {
	FindSupplierByPhone(ctx context.Context, phone string) (*core.Supplier, error)
	CreateSupplierOrder(ctx context.Context, in core.CreateSupplierOrderInput) (*core.SupplierOrder, error)
}

// Engine owns the per-admin conversation states.
type Engine struct {
	flows     *store
	orders    OrderLedger
	suppliers SupplierLedger
	log       *logrus.Logger
}

func NewEngine(orders OrderLedger, suppliers SupplierLedger, log *logrus.Logger) *Engine {
	return &Engine{
		flows:     newStore(),
		orders:    orders,
		suppliers: suppliers,
		log:       log,
	}
}

// StartPurge evicts expired conversations in the background until ctx is
// cancelled.
func (e *Engine) StartPurge(ctx context.Context) {
	go e.flows.purge(ctx)
}

// Active reports whether the admin has an in-progress conversation.
func (e *Engine) Active(adminPhone string) bool {
	_, ok := e.flows.get(adminPhone)
	return ok
}

// Start begins a new conversation for the admin, replacing any previous one,
// and returns the first prompt.
func (e *Engine) Start(adminPhone string, kind Kind) Reply {
	st := &state{kind: kind}
	if kind == KindSupplierOrder {
		// Suppliers are looked up by phone, so the phone comes first and
		// the name step may be skipped entirely.
		st.step = stepPhone
		e.flows.put(adminPhone, st)
		return Reply{To: adminPhone, Body: messages.PromptSupplierPhone}
	}
	st.step = stepName
	e.flows.put(adminPhone, st)
	return Reply{To: adminPhone, Body: messages.PromptClientName}
}

// Handle consumes one inbound message for the admin's active conversation.
// Invalid input re-prompts without advancing; the abort token and terminal
// errors both clear the state.
func (e *Engine) Handle(ctx context.Context, adminPhone, text string) ([]Reply, error) {
	st, ok := e.flows.get(adminPhone)
	if !ok {
		return nil, ErrNoActiveFlow
	}
	trimmed := strings.TrimSpace(text)

	if strings.EqualFold(trimmed, AbortToken) {
		e.flows.delete(adminPhone)
		return []Reply{{To: adminPhone, Body: messages.FlowCancelled}}, nil
	}

	switch st.step {
	case stepName:
		return e.handleName(adminPhone, st, trimmed), nil
	case stepPhone:
		return e.handlePhone(ctx, adminPhone, st, trimmed), nil
	case stepDescription:
		return e.handleDescription(adminPhone, st, trimmed), nil
	case stepAmount:
		return e.handleAmount(adminPhone, st, trimmed), nil
	case stepConfirm:
		return e.handleConfirm(ctx, adminPhone, st, trimmed)
	}
	e.flows.delete(adminPhone)
	return nil, ErrNoActiveFlow
}

func (e *Engine) handleName(adminPhone string, st *state, text string) []Reply {
	if text == "" {
		prompt := messages.PromptClientName
		if st.kind == KindSupplierOrder {
			prompt = messages.PromptSupplierName
		}
		return []Reply{{To: adminPhone, Body: prompt}}
	}
	st.name = text
	if st.kind == KindSupplierOrder {
		// Supplier flow already collected the phone.
		st.step = stepDescription
		e.flows.put(adminPhone, st)
		return []Reply{{To: adminPhone, Body: messages.PromptDescription}}
	}
	st.step = stepPhone
	e.flows.put(adminPhone, st)
	return []Reply{{To: adminPhone, Body: messages.PromptClientPhone}}
}

func (e *Engine) handlePhone(ctx context.Context, adminPhone string, st *state, text string) []Reply {
	if !core.IsTenDigitPhone(text) {
		return []Reply{{To: adminPhone, Body: messages.InvalidPhone}}
	}
	st.phone = text

	if st.kind == KindSupplierOrder {
		sup, err := e.suppliers.FindSupplierByPhone(ctx, st.phone)
		switch {
		case err == nil:
			st.supplierID = sup.ID
			st.name = sup.Name
			st.step = stepDescription
			e.flows.put(adminPhone, st)
			return []Reply{{To: adminPhone, Body: messages.SupplierKnown(sup.Name)}}
		case errors.Is(err, core.ErrNotFound):
			st.step = stepName
			e.flows.put(adminPhone, st)
			return []Reply{{To: adminPhone, Body: messages.PromptSupplierName}}
		default:
			e.log.WithError(err).Error("supplier lookup failed")
			return []Reply{{To: adminPhone, Body: messages.GenericError}}
		}
	}

	st.step = stepDescription
	e.flows.put(adminPhone, st)
	return []Reply{{To: adminPhone, Body: messages.PromptDescription}}
}

func (e *Engine) handleDescription(adminPhone string, st *state, text string) []Reply {
	if text == "" {
		return []Reply{{To: adminPhone, Body: messages.PromptDescription}}
	}
	st.description = text
	st.step = stepAmount
	e.flows.put(adminPhone, st)
	return []Reply{{To: adminPhone, Body: messages.PromptAmount}}
}

func (e *Engine) handleAmount(adminPhone string, st *state, text string) []Reply {
	// Currency decoration is tolerated: "$850" and "850" both mean 850 miles.
	miles, err := strconv.ParseInt(core.DigitsOnly(text), 10, 64)
	if err != nil || miles <= 0 {
		return []Reply{{To: adminPhone, Body: messages.InvalidAmount}}
	}
	st.amountMiles = miles
	st.step = stepConfirm
	e.flows.put(adminPhone, st)

	amount := totalPesos(miles)
	body := messages.ConfirmOrder(st.name, st.phone, st.description, amount)
	if st.kind == KindSupplierOrder {
		body = messages.ConfirmSupplierOrder(st.name, st.phone, st.description, amount)
	}
	return []Reply{{To: adminPhone, Body: body}}
}

func (e *Engine) handleConfirm(ctx context.Context, adminPhone string, st *state, text string) ([]Reply, error) {
	if !isYes(text) {
		return []Reply{{To: adminPhone, Body: messages.ConfirmReprompt}}, nil
	}
	e.flows.delete(adminPhone)

	if st.kind == KindSupplierOrder {
		so, err := e.suppliers.CreateSupplierOrder(ctx, core.CreateSupplierOrderInput{
			SupplierID:   st.supplierID,
			SupplierName: st.name,
			Phone:        st.phone,
			Description:  st.description,
			ValorTotal:   totalPesos(st.amountMiles),
		})
		if err != nil {
			e.log.WithError(err).Error("supplier order creation failed")
			return []Reply{{To: adminPhone, Body: messages.GenericError}}, nil
		}
		return []Reply{{To: adminPhone, Body: messages.SupplierOrderCreated(so)}}, nil
	}

	o, err := e.orders.CreateOrder(ctx, core.CreateOrderInput{
		ClientName:  st.name,
		Phone:       st.phone,
		Description: st.description,
		TotalValue:  totalPesos(st.amountMiles),
	})
	if err != nil {
		e.log.WithError(err).Error("order creation failed")
		return []Reply{{To: adminPhone, Body: messages.GenericError}}, nil
	}
	return []Reply{
		{To: adminPhone, Body: messages.OrderCreatedAdmin(o)},
		{To: o.ClientPhone, Body: messages.OrderCreatedClient(o)},
	}, nil
}

func isYes(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "si", "sí":
		return true
	}
	return false
}

func totalPesos(miles int64) decimal.Decimal {
	return decimal.NewFromInt(miles).Mul(decimal.NewFromInt(milesFactor))
}
