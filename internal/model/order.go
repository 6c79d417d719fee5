package model

import "time"

// OrderStatus tracks an order after finalization. ACTIVE orders still
// have gateway installments outstanding; COMPLETED orders are fully
// settled; ABANDONED is terminal and is set when the gateway reports the
// recurring schedule cancelled or lapsed before all installments were
// collected.
type OrderStatus string

const (
	OrderActive    OrderStatus = "ACTIVE"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderAbandoned OrderStatus = "ABANDONED"
)

// Order is created exactly once per successfully finalized checkout and
// carries the authoritative audited totals and installment bookkeeping.
// There are no persisted per-installment rows: the schedule exposed to
// clients is a pure projection from InstallmentsTotal, InstallmentsPaid
// and the anchor paid_at date of the checkout.
type Order struct {
	ID                  uint64      // orders.id
	CheckoutID          uint64      // orders.checkout_id (1:1)
	UserID              uint64      // orders.user_id
	EventID             uint64      // orders.event_id
	Status              OrderStatus // orders.status
	Currency            string      // orders.currency
	AmountTotalCents    int64       // orders.amount_total_cents
	RegisteredPlayerIDs []uint64    // orders.registered_player_ids (JSON)
	InstallmentsTotal   int         // orders.installments_total
	InstallmentsPaid    int         // orders.installments_paid
	InstallmentCents    int64       // orders.installment_cents
	CreatedAt           time.Time   // orders.created_at
	UpdatedAt           time.Time   // orders.updated_at
}

// InstallmentsRemaining returns how many charges are still due.
func (o Order) InstallmentsRemaining() int {
	if o.InstallmentsPaid >= o.InstallmentsTotal {
		return 0
	}
	return o.InstallmentsTotal - o.InstallmentsPaid
}
