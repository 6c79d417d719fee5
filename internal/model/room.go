package model

import "time"

// Room describes a bookable hotel room type. The nightly base price
// covers IncludedGuests people; each guest beyond that up to MaxGuests
// adds ExtraGuestCents per night. NightlyTaxCents is a flat per-night
// tax line.
type Room struct {
	ID              uint64    // rooms.id
	Name            string    // rooms.name
	NightlyCents    int64     // rooms.nightly_cents
	IncludedGuests  int       // rooms.included_guests
	MaxGuests       int       // rooms.max_guests
	ExtraGuestCents int64     // rooms.extra_guest_cents
	NightlyTaxCents int64     // rooms.nightly_tax_cents
	CreatedAt       time.Time // rooms.created_at
}

// RoomReservation is a durable allocation of one inventory unit of a
// room for a date range. Once CONFIRMED it counts against room
// inventory. Reservations created during finalization reference the
// order that paid for them.
type RoomReservation struct {
	ID         uint64      // room_reservations.id
	RoomID     uint64      // room_reservations.room_id
	OrderID    *uint64     // room_reservations.order_id (nullable)
	UserID     uint64      // room_reservations.user_id
	Status     string      // CONFIRMED | CANCELLED
	CheckIn    time.Time   // room_reservations.check_in
	CheckOut   time.Time   // room_reservations.check_out
	Occupancy  int         // room_reservations.occupancy
	TotalCents int64       // room_reservations.total_cents (tax included)
	TaxCents   int64       // room_reservations.tax_cents
	Guests     []GuestInfo // room_reservation_guests rows
	CreatedAt  time.Time   // room_reservations.created_at
}
