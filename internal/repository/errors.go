// Package repository implements data access for the registration payment
// engine on top of database/sql. Sentinel errors declared here are shared
// across repositories so that higher layers can distinguish failure
// scenarios with errors.Is and map them to HTTP statuses or swallow them
// as idempotent no-ops.
package repository

import "errors"

// ErrInsufficientFunds is returned by Reserve and Withdraw when the
// account's available balance cannot cover the requested amount. This is
// a user-facing, recoverable condition.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrReservationNotFound is returned by Confirm and Release when no
// outstanding reservation exists for the given reference. It doubles as
// the idempotency guard: the second confirm or release for the same
// reference hits this error and callers treat it as a no-op.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrRoomUnavailable is returned by the allocator when room stock is
// exhausted for any night of the requested range.
var ErrRoomUnavailable = errors.New("room unavailable")

// ErrCheckoutNotFound is returned when no checkout matches the given
// identifier or external session id.
var ErrCheckoutNotFound = errors.New("checkout not found")

// ErrOrderNotFound is returned when no order matches the identifier.
var ErrOrderNotFound = errors.New("order not found")

// ErrEventNotFound is returned when an event lookup yields no rows.
var ErrEventNotFound = errors.New("event not found")

// ErrRoomNotFound is returned when a room lookup yields no rows.
var ErrRoomNotFound = errors.New("room not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as confirming a reservation with a different
// amount than was reserved. Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
