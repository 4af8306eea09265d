// Package messages renders every user-facing text for the conversational
// surface. Services and the flow engine never embed display strings; they
// call into here so the wording lives in one place.
package messages

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
	"github.com/shopspring/decimal"
)

// Prompts for the new-customer-order flow.
const (
	PromptClientName  = "🪑 *Nuevo pedido*\n\nEscribe el nombre del cliente:"
	PromptClientPhone = "Escribe el celular del cliente (10 dígitos):"
	PromptDescription = "Describe el trabajo (ej. Mesa de comedor en roble):"
	PromptAmount      = "Escribe el valor total en miles (ej. 850 = $850.000):"
	InvalidPhone      = "⚠️ El celular debe tener exactamente 10 dígitos. Inténtalo de nuevo:"
	InvalidAmount     = "⚠️ El valor debe ser un número mayor que cero. Inténtalo de nuevo:"
	ConfirmReprompt   = "Responde *SI* para confirmar o */no* para cancelar."
	FlowCancelled     = "❌ Operación cancelada. Escribe *menu* para empezar de nuevo."
)

// Prompts specific to the supplier-order flow.
const (
	PromptSupplierPhone = "🏭 *Pedido a proveedor*\n\nEscribe el celular del proveedor (10 dígitos):"
	PromptSupplierName  = "Escribe el nombre del proveedor:"
)

// Generic outcomes.
const (
	GenericError  = "😕 Algo salió mal. Inténtalo de nuevo en unos minutos."
	NoResults     = "No encontré pedidos activos con ese dato."
	UnknownOption = "No entendí ese mensaje. Escribe *menu* para ver las opciones."
)

// Command feedback for the admin surface.
const (
	BalancePrompt       = "🔎 Envíame el código del pedido (MN-... o PROV-...), el ID o el celular del cliente."
	OrderNotFound       = "No encontré un pedido con ese código."
	AlreadyCancelled    = "⚠️ Ese pedido ya está cancelado."
	AlreadyCompleted    = "⚠️ Ese pedido ya está cerrado."
	BalanceNotZero      = "⚠️ No se puede completar: el pedido aún tiene saldo pendiente."
	InvalidAbonoAmount  = "⚠️ El valor del abono debe ser un número mayor que cero, en miles."
	AbonoUsage          = "Uso: *abono <código> <valor en miles>* (ej. abono MN-2025-0001 100)"
	CodeCommandUsage    = "Uso: *%s <código>* (ej. %s MN-2025-0001)"
	SupplierCodeOnly    = "⚠️ *completar* solo aplica a pedidos de proveedor (PROV-...)."
	CustomerCodeOnly    = "⚠️ Ese comando solo aplica a pedidos de cliente (MN-...)."
)

// Menu is the admin interactive menu. Option ids are matched against the
// interactive reply id or the bare option number.
const Menu = `🪑 *Muebles Nico* — Menú

1️⃣ Nuevo pedido
2️⃣ Pedido a proveedor
3️⃣ Consultar saldo

También puedes escribir:
• *abono <código> <valor en miles>*
• *cancelar <código>* / *completar <código>*
• *listo <código>* / *entregado <código>*
• *saldo <código | ID | celular>*`

// CustomerGreeting is sent to non-admin senders whose message is not a
// lookup token.
const CustomerGreeting = "👋 ¡Hola! Soy el asistente de *Muebles Nico*.\n\n" +
	"Para consultar el saldo de tu pedido envíame el código (ej. MN-2025-0001) o tu número de celular."

// SupplierKnown confirms reuse of an existing supplier record.
func SupplierKnown(name string) string {
	return fmt.Sprintf("Proveedor conocido: *%s*. %s", name, PromptDescription)
}

var confirmOrderTmpl = template.Must(template.New("confirmOrder").Parse(
	`📋 *Confirma el pedido*

Cliente: {{.Name}}
Celular: {{.Phone}}
Trabajo: {{.Description}}
Valor total: {{.Amount}}

Responde *SI* para confirmar o */no* para cancelar.`))

var confirmSupplierTmpl = template.Must(template.New("confirmSupplier").Parse(
	`📋 *Confirma el pedido a proveedor*

Proveedor: {{.Name}}
Celular: {{.Phone}}
Detalle: {{.Description}}
Valor total: {{.Amount}}

Responde *SI* para confirmar o */no* para cancelar.`))

type confirmData struct {
	Name        string
	Phone       string
	Description string
	Amount      string
}

// ConfirmOrder renders the confirmation card for a customer order.
func ConfirmOrder(name, phone, description string, amount decimal.Decimal) string {
	return render(confirmOrderTmpl, confirmData{name, phone, description, Money(amount)})
}

// ConfirmSupplierOrder renders the confirmation card for a supplier order.
func ConfirmSupplierOrder(name, phone, description string, amount decimal.Decimal) string {
	return render(confirmSupplierTmpl, confirmData{name, phone, description, Money(amount)})
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return GenericError
	}
	return b.String()
}

// OrderCreatedAdmin confirms creation to the admin who ran the flow.
func OrderCreatedAdmin(o *core.Order) string {
	return fmt.Sprintf("✅ Pedido *%s* creado para %s.\nValor total: %s\nEstado: %s",
		o.OrderCode, o.ClientName, Money(o.TotalValue), StatusLabel(string(o.Status)))
}

// OrderCreatedClient is the welcome notification for the customer.
func OrderCreatedClient(o *core.Order) string {
	return fmt.Sprintf("🪑 ¡Hola %s! Registramos tu pedido *%s* en Muebles Nico.\n"+
		"Valor total: %s\n\nCuando hagas tu abono inicial empezamos la fabricación. "+
		"Consulta tu saldo en cualquier momento enviando el código %s.",
		o.ClientName, o.OrderCode, Money(o.TotalValue), o.OrderCode)
}

// SupplierOrderCreated confirms supplier-order creation to the admin.
func SupplierOrderCreated(so *core.SupplierOrder) string {
	return fmt.Sprintf("✅ Pedido a proveedor *%s* creado (%s).\nValor total: %s",
		so.OrderCode, so.SupplierName, Money(so.ValorTotal))
}

// AdvanceApplied reports the new state after an advance payment.
func AdvanceApplied(o *core.Order) string {
	msg := fmt.Sprintf("💰 Abono aplicado a *%s*.\nPagado: %s\nSaldo: %s\nEstado: %s",
		o.OrderCode, Money(o.AmountPaid), Money(o.PendingBalance), StatusLabel(string(o.Status)))
	if o.EstimatedDeliveryDate != nil {
		msg += fmt.Sprintf("\nEntrega estimada: %s", o.EstimatedDeliveryDate.Format("2006-01-02"))
	}
	return msg
}

// PaymentReceiptClient is the customer-facing receipt for an advance.
func PaymentReceiptClient(o *core.Order) string {
	msg := fmt.Sprintf("💰 ¡Gracias! Recibimos tu abono para el pedido *%s*.\nSaldo pendiente: %s",
		o.OrderCode, Money(o.PendingBalance))
	if o.PendingBalance.IsZero() {
		msg += "\n🎉 ¡Tu pedido quedó totalmente pagado!"
	} else if o.EstimatedDeliveryDate != nil {
		msg += fmt.Sprintf("\nEntrega estimada: %s", o.EstimatedDeliveryDate.Format("2006-01-02"))
	}
	return msg
}

// AbonoApplied reports the new state after a supplier abono.
func AbonoApplied(so *core.SupplierOrder) string {
	return fmt.Sprintf("💰 Abono aplicado a *%s*.\nAbonado: %s\nSaldo: %s",
		so.OrderCode, Money(so.ValorAbonado), Money(so.SaldoPendiente))
}

// OrderCancelled confirms a terminal cancellation.
func OrderCancelled(code string) string {
	return fmt.Sprintf("🚫 Pedido *%s* cancelado.", code)
}

// SupplierOrderCompleted confirms an explicit completion.
func SupplierOrderCompleted(so *core.SupplierOrder) string {
	return fmt.Sprintf("🏁 Pedido a proveedor *%s* completado.", so.OrderCode)
}

// StatusChanged reports a pipeline status update (listo / entregado).
func StatusChanged(o *core.Order) string {
	return fmt.Sprintf("🔄 Pedido *%s* ahora está: %s", o.OrderCode, StatusLabel(string(o.Status)))
}

// BalanceSummary renders lookup results, one block per order.
func BalanceSummary(summaries []core.OrderSummary) string {
	var b strings.Builder
	b.WriteString("📒 *Saldo de pedidos*\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "\n*%s* — %s\n%s\nTotal: %s · Pagado: %s · Saldo: %s\nEstado: %s\n",
			s.OrderCode, s.Name, s.Description,
			Money(s.Total), Money(s.Paid), Money(s.Balance), StatusLabel(s.Status))
		if s.EstimatedDelivery != nil {
			fmt.Fprintf(&b, "Entrega estimada: %s\n", s.EstimatedDelivery.Format("2006-01-02"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// LookupHint explains the accepted token formats after an InvalidFormat error.
func LookupHint(hint string) string {
	return "🤔 No reconozco ese dato.\n" + hint
}

// ExceedsBalance tells the admin the real outstanding amount.
func ExceedsBalance(balance decimal.Decimal) string {
	return fmt.Sprintf("⚠️ El abono supera el saldo pendiente. Saldo actual: %s", Money(balance))
}

// statusLabels maps canonical status values to friendly Spanish.
var statusLabels = map[string]string{
	string(core.StatusPendienteAbono):     "Pendiente de abono",
	string(core.StatusEnFabricacion):      "En fabricación",
	string(core.StatusPagado):             "Pagado",
	string(core.StatusListo):              "Listo para entrega",
	string(core.StatusEntregado):          "Entregado",
	string(core.StatusCancelado):          "Cancelado",
	string(core.SupplierStatusEnProceso):  "En proceso",
	string(core.SupplierStatusCompletado): "Completado",
}

// StatusLabel renders a canonical status for display; unknown values pass
// through unchanged.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// Money formats a peso amount with dot thousand separators: $850.000.
func Money(d decimal.Decimal) string {
	s := d.StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := "$" + strings.Join(parts, ".")
	if neg {
		out = "-" + out
	}
	return out
}
