// Package app routes inbound messages to the right handler: menu options,
// multi-step flows, admin text commands, or customer balance lookups. All
// replies go through the notification outbox; nothing is sent inline.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/flow"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/messages"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/notify"
)

// Interactive menu option ids. The bare option number works too.
const (
	optionNewOrder      = "new_order"
	optionSupplierOrder = "supplier_order"
	optionCheckBalance  = "check_balance"
)

// Outbox is the slice of the notification layer the router writes to.
type Outbox interface {
	Enqueue(ctx context.Context, q notify.Execer, out notify.Outgoing) error
}

// Deps wires the router. AdminPhones are national 10-digit numbers;
// CountryCode is prepended when addressing bare national numbers.
type Deps struct {
	AdminPhones []string
	CountryCode string
	Engine      *flow.Engine
	Orders      core.OrderService
	Suppliers   core.SupplierService
	Balance     *core.BalanceService
	Outbox      Outbox
	DB          notify.Execer
	Log         *logrus.Logger
}

type Router struct {
	admins      map[string]struct{}
	countryCode string
	engine      *flow.Engine
	orders      core.OrderService
	suppliers   core.SupplierService
	balance     *core.BalanceService
	outbox      Outbox
	db          notify.Execer
	log         *logrus.Logger
}

func NewRouter(d Deps) *Router {
	admins := make(map[string]struct{}, len(d.AdminPhones))
	for _, p := range d.AdminPhones {
		if national, err := core.NormalizePhone(p); err == nil {
			admins[national] = struct{}{}
		} else {
			admins[strings.TrimSpace(p)] = struct{}{}
		}
	}
	return &Router{
		admins:      admins,
		countryCode: d.CountryCode,
		engine:      d.Engine,
		orders:      d.Orders,
		suppliers:   d.Suppliers,
		balance:     d.Balance,
		outbox:      d.Outbox,
		db:          d.DB,
		log:         d.Log,
	}
}

// HandleInbound processes one message and enqueues every reply. It only
// returns an error when the outbox itself fails; handler errors become
// user-facing messages instead.
func (r *Router) HandleInbound(ctx context.Context, msg InboundMessage) error {
	from := strings.TrimSpace(msg.FromPhone)
	if from == "" {
		return nil
	}
	if r.isAdmin(from) {
		return r.handleAdmin(ctx, from, msg)
	}
	return r.handleCustomer(ctx, from, msg)
}

func (r *Router) isAdmin(from string) bool {
	national, err := core.NormalizePhone(from)
	if err != nil {
		national = from
	}
	_, ok := r.admins[national]
	return ok
}

func (r *Router) handleAdmin(ctx context.Context, from string, msg InboundMessage) error {
	text := strings.TrimSpace(msg.Text)

	// An active flow consumes everything, including its own abort token.
	if r.engine.Active(from) {
		replies, err := r.engine.Handle(ctx, from, text)
		if err != nil && !errors.Is(err, flow.ErrNoActiveFlow) {
			r.log.WithError(err).Error("flow handling failed")
			replies = []flow.Reply{{To: from, Body: messages.GenericError}}
		}
		return r.deliver(ctx, replies...)
	}

	option := msg.InteractiveReplyID
	if option == "" {
		option = strings.ToLower(text)
	}
	switch option {
	case "1", optionNewOrder:
		return r.deliver(ctx, r.engine.Start(from, flow.KindCustomerOrder))
	case "2", optionSupplierOrder:
		return r.deliver(ctx, r.engine.Start(from, flow.KindSupplierOrder))
	case "3", optionCheckBalance:
		return r.reply(ctx, from, messages.BalancePrompt)
	case "menu", "hola", "inicio", "buenas":
		return r.reply(ctx, from, messages.Menu)
	}

	fields := strings.Fields(text)
	if len(fields) > 0 {
		switch strings.ToLower(fields[0]) {
		case "abono":
			return r.handleAbono(ctx, from, fields)
		case "cancelar", "completar", "listo", "entregado":
			return r.handleCodeCommand(ctx, from, strings.ToLower(fields[0]), fields)
		case "saldo":
			if len(fields) != 2 {
				return r.reply(ctx, from, messages.BalancePrompt)
			}
			return r.reply(ctx, from, r.lookup(ctx, fields[1]))
		}
	}

	// A bare token (code, id, phone) is treated as a lookup.
	if kind, _ := core.ClassifyToken(text); kind != core.TokenInvalid {
		return r.reply(ctx, from, r.lookup(ctx, text))
	}
	return r.reply(ctx, from, messages.UnknownOption)
}

func (r *Router) handleCustomer(ctx context.Context, from string, msg InboundMessage) error {
	text := strings.TrimSpace(msg.Text)
	if kind, _ := core.ClassifyToken(text); kind != core.TokenInvalid {
		return r.reply(ctx, from, r.lookup(ctx, text))
	}
	return r.reply(ctx, from, messages.CustomerGreeting)
}

func (r *Router) handleAbono(ctx context.Context, from string, fields []string) error {
	if len(fields) != 3 {
		return r.reply(ctx, from, messages.AbonoUsage)
	}
	miles, err := strconv.ParseInt(core.DigitsOnly(fields[2]), 10, 64)
	if err != nil || miles <= 0 {
		return r.reply(ctx, from, messages.InvalidAbonoAmount)
	}
	amount := decimal.NewFromInt(miles).Mul(decimal.NewFromInt(1000))
	code := strings.ToUpper(fields[1])

	if strings.HasPrefix(code, core.SupplierOrderCodePrefix+"-") {
		so, err := r.suppliers.ApplyAbono(ctx, code, amount)
		if err != nil {
			return r.reply(ctx, from, r.ledgerErrMessage(err))
		}
		return r.reply(ctx, from, messages.AbonoApplied(so))
	}

	o, err := r.orders.ApplyAdvance(ctx, code, amount)
	if err != nil {
		return r.reply(ctx, from, r.ledgerErrMessage(err))
	}
	return r.deliver(ctx,
		flow.Reply{To: from, Body: messages.AdvanceApplied(o)},
		flow.Reply{To: o.ClientPhone, Body: messages.PaymentReceiptClient(o)},
	)
}

func (r *Router) handleCodeCommand(ctx context.Context, from, cmd string, fields []string) error {
	if len(fields) != 2 {
		return r.reply(ctx, from, fmt.Sprintf(messages.CodeCommandUsage, cmd, cmd))
	}
	code := strings.ToUpper(fields[1])
	supplier := strings.HasPrefix(code, core.SupplierOrderCodePrefix+"-")

	switch cmd {
	case "cancelar":
		if supplier {
			if _, err := r.suppliers.Cancel(ctx, code); err != nil {
				return r.reply(ctx, from, r.ledgerErrMessage(err))
			}
		} else {
			if _, err := r.orders.CancelOrder(ctx, code); err != nil {
				return r.reply(ctx, from, r.ledgerErrMessage(err))
			}
		}
		return r.reply(ctx, from, messages.OrderCancelled(code))
	case "completar":
		if !supplier {
			return r.reply(ctx, from, messages.SupplierCodeOnly)
		}
		so, err := r.suppliers.Complete(ctx, code)
		if err != nil {
			return r.reply(ctx, from, r.ledgerErrMessage(err))
		}
		return r.reply(ctx, from, messages.SupplierOrderCompleted(so))
	case "listo", "entregado":
		if supplier {
			return r.reply(ctx, from, messages.CustomerCodeOnly)
		}
		var (
			o   *core.Order
			err error
		)
		if cmd == "listo" {
			o, err = r.orders.MarkReady(ctx, code)
		} else {
			o, err = r.orders.MarkDelivered(ctx, code)
		}
		if err != nil {
			return r.reply(ctx, from, r.ledgerErrMessage(err))
		}
		return r.reply(ctx, from, messages.StatusChanged(o))
	}
	return r.reply(ctx, from, messages.UnknownOption)
}

func (r *Router) lookup(ctx context.Context, token string) string {
	summaries, err := r.balance.Lookup(ctx, token)
	if err != nil {
		var invalid *core.InvalidFormatError
		switch {
		case errors.Is(err, core.ErrNoResults), errors.Is(err, core.ErrNotFound):
			return messages.NoResults
		case errors.As(err, &invalid):
			return messages.LookupHint(invalid.Hint)
		default:
			r.log.WithError(err).Error("balance lookup failed")
			return messages.GenericError
		}
	}
	return messages.BalanceSummary(summaries)
}

func (r *Router) ledgerErrMessage(err error) string {
	var exceeds *core.ExceedsBalanceError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return messages.OrderNotFound
	case errors.Is(err, core.ErrAlreadyCancelled):
		return messages.AlreadyCancelled
	case errors.Is(err, core.ErrAlreadyCompleted):
		return messages.AlreadyCompleted
	case errors.Is(err, core.ErrBalanceNotZero):
		return messages.BalanceNotZero
	case errors.Is(err, core.ErrInvalidAmount):
		return messages.InvalidAbonoAmount
	case errors.As(err, &exceeds):
		return messages.ExceedsBalance(exceeds.Balance)
	}
	r.log.WithError(err).Error("ledger operation failed")
	return messages.GenericError
}

func (r *Router) reply(ctx context.Context, to, body string) error {
	return r.deliver(ctx, flow.Reply{To: to, Body: body})
}

func (r *Router) deliver(ctx context.Context, replies ...flow.Reply) error {
	var firstErr error
	for _, rep := range replies {
		out := notify.Outgoing{ToPhone: r.waRecipient(rep.To), Body: rep.Body}
		if err := r.outbox.Enqueue(ctx, r.db, out); err != nil {
			r.log.WithError(err).WithField("to", out.ToPhone).Error("enqueueing reply failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// waRecipient turns a national 10-digit number into a WhatsApp recipient id.
// Numbers already carrying a country code pass through unchanged.
func (r *Router) waRecipient(phone string) string {
	if len(phone) == 10 && r.countryCode != "" {
		return r.countryCode + phone
	}
	return phone
}
