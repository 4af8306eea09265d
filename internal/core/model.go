package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the canonical pipeline status for customer orders.
// The legacy system mixed spellings ("PAGADO"/"pagado", "EN_FABRICACION"/
// "pendiente de inicio"); only these values are ever written.
type OrderStatus string

const (
	StatusPendienteAbono OrderStatus = "PENDIENTE_ABONO"
	StatusEnFabricacion  OrderStatus = "EN_FABRICACION"
	StatusPagado         OrderStatus = "PAGADO"
	StatusListo          OrderStatus = "LISTO"
	StatusEntregado      OrderStatus = "ENTREGADO"
	StatusCancelado      OrderStatus = "CANCELADO"
)

// SupplierOrderStatus is the canonical status for supplier orders.
type SupplierOrderStatus string

const (
	SupplierStatusEnProceso  SupplierOrderStatus = "EN_PROCESO"
	SupplierStatusCompletado SupplierOrderStatus = "COMPLETADO"
	SupplierStatusCancelado  SupplierOrderStatus = "CANCELADO"
)

// Order code prefixes. Each prefix owns its own per-year sequence namespace.
const (
	OrderCodePrefix         = "MN"
	SupplierOrderCodePrefix = "PROV"
)

// DeliveryLeadDays is added to the order creation date to compute the
// estimated delivery date on the first advance payment. Set exactly once,
// never recomputed.
const DeliveryLeadDays = 15

// Order is a customer order. At all times AmountPaid + PendingBalance equals
// TotalValue and PendingBalance is never negative.
type Order struct {
	ID                    int             `json:"id"`
	OrderCode             string          `json:"order_code"` // MN-<year>-<seq>
	ClientID              int             `json:"client_id"`
	ClientName            string          `json:"client_name"`  // joined from clients
	ClientPhone           string          `json:"client_phone"` // joined from clients
	Description           string          `json:"description"`
	TotalValue            decimal.Decimal `json:"total_value"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	PendingBalance        decimal.Decimal `json:"pending_balance"`
	Status                OrderStatus     `json:"status"`
	Cancelled             bool            `json:"cancelled"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	Delivered             bool            `json:"delivered"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// Closed reports whether the order left the active pipeline: cancelled, or
// both delivered and fully paid. Either condition alone keeps it active.
func (o *Order) Closed() bool {
	return o.Cancelled || (o.Delivered && o.PendingBalance.IsZero())
}

// SupplierOrder is an outbound obligation to a supplier. Same balance
// invariant as Order but completion is an explicit admin action requiring
// SaldoPendiente == 0; full payment alone never completes it.
type SupplierOrder struct {
	ID             int                 `json:"id"`
	OrderCode      string              `json:"order_code"` // PROV-<year>-<seq>
	SupplierID     int                 `json:"supplier_id"`
	SupplierName   string              `json:"supplier_name"`  // joined from suppliers
	SupplierPhone  string              `json:"supplier_phone"` // joined from suppliers
	Description    string              `json:"description"`
	ValorTotal     decimal.Decimal     `json:"valor_total"`
	ValorAbonado   decimal.Decimal     `json:"valor_abonado"`
	SaldoPendiente decimal.Decimal     `json:"saldo_pendiente"`
	Status         SupplierOrderStatus `json:"status"`
	Completado     bool                `json:"completado"`
	CompletadoAt   *time.Time          `json:"completado_at,omitempty"`
	Cancelado      bool                `json:"cancelado"`
	CanceladoAt    *time.Time          `json:"cancelado_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Client is a customer contact, keyed by normalized phone. Created on first
// contact; the name is backfilled once learned.
type Client struct {
	ID        int       `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier mirrors Client for the supplier side.
type Supplier struct {
	ID        int       `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOrderInput carries the fields collected by the new-order flow.
type CreateOrderInput struct {
	ClientName  string
	Phone       string // normalized to 10 national digits by the service
	Description string
	TotalValue  decimal.Decimal
}

// CreateSupplierOrderInput carries the fields collected by the supplier flow.
// SupplierID, when non-zero, reuses an existing supplier and SupplierName is
// ignored.
type CreateSupplierOrderInput struct {
	SupplierID   int
	SupplierName string
	Phone        string
	Description  string
	ValorTotal   decimal.Decimal
}

// OrderSummary is the flattened result row of a balance lookup, covering both
// ledgers.
type OrderSummary struct {
	OrderCode         string
	Name              string
	Description       string
	Total             decimal.Decimal
	Paid              decimal.Decimal
	Balance           decimal.Decimal
	Status            string
	EstimatedDelivery *time.Time
	CreatedAt         time.Time
}
