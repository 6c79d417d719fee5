package model

import "time"

// CheckoutStatus is the state machine discriminant for a checkout.
// CREATED is the only non-terminal state; PAID, CANCELLED and EXPIRED
// are terminal and no transition is permitted out of them.
type CheckoutStatus string

const (
	CheckoutCreated   CheckoutStatus = "CREATED"
	CheckoutPaid      CheckoutStatus = "PAID"
	CheckoutCancelled CheckoutStatus = "CANCELLED"
	CheckoutExpired   CheckoutStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s CheckoutStatus) Terminal() bool {
	return s == CheckoutPaid || s == CheckoutCancelled || s == CheckoutExpired
}

// CheckoutMode selects between a single immediate payment and a monthly
// installment plan charged through the gateway's recurring schedule.
type CheckoutMode string

const (
	ModePayNow          CheckoutMode = "PAY_NOW"
	ModeInstallmentPlan CheckoutMode = "INSTALLMENT_PLAN"
)

// GuestInfo holds one hotel guest as structured data. Guests are stored
// verbatim on the reservation; nothing is reparsed from free text.
type GuestInfo struct {
	FullName string `json:"full_name"`
	Note     string `json:"note,omitempty"`
}

// RoomSelection is one requested room stay inside the checkout snapshot.
// Dates use the "2006-01-02" wire format.
type RoomSelection struct {
	RoomID    uint64      `json:"room_id"`
	CheckIn   string      `json:"check_in"`
	CheckOut  string      `json:"check_out"`
	Occupancy int         `json:"occupancy"`
	Guests    []GuestInfo `json:"guests"`
}

// BreakdownLine is one structured price component of a checkout total.
type BreakdownLine struct {
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
}

// Checkout is one attempted purchase: event registration for a set of
// players, optionally bundled with hotel rooms, paid via wallet funds
// and/or the external gateway. RoomSnapshot is an immutable copy of the
// requested rooms taken at creation time; finalization builds
// reservations from this snapshot, never from mutable cart state, so a
// later cart change cannot alter what was paid for.
type Checkout struct {
	ID                  uint64          // checkouts.id
	Reference           string          // checkouts.reference (ledger reference too)
	UserID              uint64          // checkouts.user_id
	EventID             uint64          // checkouts.event_id
	ExternalSessionID   string          // checkouts.external_session_id (unique)
	Mode                CheckoutMode    // checkouts.mode
	Status              CheckoutStatus  // checkouts.status
	Currency            string          // checkouts.currency
	AmountTotalCents    int64           // checkouts.amount_total_cents
	WalletReservedCents int64           // checkouts.wallet_reserved_cents
	Breakdown           []BreakdownLine // checkouts.breakdown (JSON)
	SelectedPlayerIDs   []uint64        // checkouts.selected_player_ids (JSON)
	RoomSnapshot        []RoomSelection // checkouts.room_selection_snapshot (JSON)
	InstallmentCount    int             // checkouts.installment_count
	InstallmentCents    int64           // checkouts.installment_cents
	ExternalSubID       *string         // checkouts.external_subscription_id (nullable)
	PaidAt              *time.Time      // checkouts.paid_at (nullable)
	CreatedAt           time.Time       // checkouts.created_at
	UpdatedAt           time.Time       // checkouts.updated_at
}
