// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderFinalizedEvent is published after a checkout is finalized into an
// order. It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type OrderFinalizedEvent struct {
	OrderID          uint64 `json:"order_id"`
	CheckoutID       uint64 `json:"checkout_id"`
	Reference        string `json:"reference"`
	UserID           uint64 `json:"user_id"`
	EventID          uint64 `json:"event_id"`
	Mode             string `json:"mode"`
	Currency         string `json:"currency"`
	AmountTotalCents int64  `json:"amount_total_cents"`
	PlayerCount      int    `json:"player_count"`
	RoomsAllocated   int    `json:"rooms_allocated"`
	RoomsFailed      int    `json:"rooms_failed"`
	FinalizedAt      string `json:"finalized_at"`
}
