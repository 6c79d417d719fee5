package model

import "time"

// Discrepancy kinds recorded by the checkout engine.
const (
	DiscrepancyRoomUnavailable  = "PAID_ROOM_UNAVAILABLE"  // paid checkout, room stock vanished
	DiscrepancyPaidAfterClose   = "PAID_AFTER_TERMINAL"    // gateway paid signal after cancel/expiry
	DiscrepancyScheduleFailed   = "SCHEDULE_CREATE_FAILED" // recurring schedule call failed post-commit
	DiscrepancyLedgerIntegrity  = "LEDGER_INTEGRITY"       // replay mismatch found by audit
	DiscrepancyUnknownReference = "UNKNOWN_REFERENCE"      // webhook referenced an unknown entity
)

// Discrepancy is an operator-visible record of a condition that needs a
// human decision: money moved externally but local state could not fully
// follow. Discrepancies are never auto-corrected; they are listed on an
// admin endpoint and resolved out of band.
type Discrepancy struct {
	ID         uint64    `json:"id"`
	Kind       string    `json:"kind"`
	CheckoutID *uint64   `json:"checkout_id,omitempty"`
	OrderID    *uint64   `json:"order_id,omitempty"`
	Detail     string    `json:"detail"`
	Resolved   bool      `json:"resolved"`
	CreatedAt  time.Time `json:"created_at"`
}
