package model

import "time"

// Event is a sports event players register for. RegistrationDue is the
// deadline used by the installment scheduler: the number of monthly
// charges is the inclusive month count between checkout creation and
// this date.
type Event struct {
	ID              uint64    // events.id
	Name            string    // events.name
	StartsOn        time.Time // events.starts_on
	RegistrationDue time.Time // events.registration_due
	FeeCents        int64     // events.fee_cents (per player)
	CreatedAt       time.Time // events.created_at
}

// Player is a roster member owned by a user. Player CRUD lives outside
// this service; checkouts only reference players by ID and validate
// ownership at creation time.
type Player struct {
	ID        uint64    // players.id
	UserID    uint64    // players.user_id
	FullName  string    // players.full_name
	CreatedAt time.Time // players.created_at
}

// Attendance registers one player for one event. The unique key on
// (event_id, player_id) makes registration naturally idempotent.
type Attendance struct {
	ID        uint64    // attendances.id
	EventID   uint64    // attendances.event_id
	PlayerID  uint64    // attendances.player_id
	OrderID   uint64    // attendances.order_id
	CreatedAt time.Time // attendances.created_at
}
