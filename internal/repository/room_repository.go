package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmhautala/sportsreg/internal/model"
	"github.com/jmhautala/sportsreg/internal/pricing"
)

// RoomRepo is the reservation allocator's storage layer: room records,
// per-night inventory counters and the reservations carved out of them.
//
// Inventory is the one resource contended across unrelated users, so
// allocation decrements stock with an atomic conditional UPDATE per
// night rather than a read-then-write pair; two concurrent allocations
// of the last unit cannot both succeed.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// Create inserts a room. On success the room's ID is populated.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	const q = `INSERT INTO rooms (name, nightly_cents, included_guests, max_guests, extra_guest_cents, nightly_tax_cents)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		room.Name, room.NightlyCents, room.IncludedGuests, room.MaxGuests,
		room.ExtraGuestCents, room.NightlyTaxCents,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	room.ID = uint64(id)
	return nil
}

// GetByID loads a room. Returns ErrRoomNotFound when absent.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, nightly_cents, included_guests, max_guests, extra_guest_cents, nightly_tax_cents, created_at
	           FROM rooms WHERE id = ?`
	var room model.Room
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Name, &room.NightlyCents, &room.IncludedGuests, &room.MaxGuests,
		&room.ExtraGuestCents, &room.NightlyTaxCents, &room.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetByIDTx is GetByID inside a transaction.
func (r *RoomRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, nightly_cents, included_guests, max_guests, extra_guest_cents, nightly_tax_cents, created_at
	           FROM rooms WHERE id = ?`
	var room model.Room
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Name, &room.NightlyCents, &room.IncludedGuests, &room.MaxGuests,
		&room.ExtraGuestCents, &room.NightlyTaxCents, &room.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns all rooms ordered by name.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, nightly_cents, included_guests, max_guests, extra_guest_cents, nightly_tax_cents, created_at
		 FROM rooms ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rooms := make([]model.Room, 0)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(
			&room.ID, &room.Name, &room.NightlyCents, &room.IncludedGuests, &room.MaxGuests,
			&room.ExtraGuestCents, &room.NightlyTaxCents, &room.CreatedAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// SetInventory upserts the available counter for a range of nights,
// night by night. Used by admin seeding, not by allocation.
func (r *RoomRepo) SetInventory(ctx context.Context, roomID uint64, from, to time.Time, available int) error {
	const q = `INSERT INTO room_inventory (room_id, night, available) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE available = VALUES(available)`
	for night := from; night.Before(to); night = night.AddDate(0, 0, 1) {
		if _, err := r.db.ExecContext(ctx, q, roomID, night.Format("2006-01-02"), available); err != nil {
			return err
		}
	}
	return nil
}

// CheckAvailability reports whether every night in [checkIn, checkOut)
// currently has stock. This is an advisory read for checkout creation;
// the authoritative check is the conditional decrement inside
// finalization.
func (r *RoomRepo) CheckAvailability(ctx context.Context, roomID uint64, checkIn, checkOut time.Time) error {
	nights := 0
	for night := checkIn; night.Before(checkOut); night = night.AddDate(0, 0, 1) {
		nights++
	}
	const q = `SELECT COUNT(*) FROM room_inventory
	           WHERE room_id = ? AND night >= ? AND night < ? AND available > 0`
	var n int
	err := r.db.QueryRowContext(ctx, q, roomID,
		checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return err
	}
	if n < nights {
		return ErrRoomUnavailable
	}
	return nil
}

// decrementNightTx takes one unit of stock for a single night. A missing
// inventory row counts as no stock.
func decrementNightTx(ctx context.Context, tx *sql.Tx, roomID uint64, night time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE room_inventory SET available = available - 1
		 WHERE room_id = ? AND night = ? AND available > 0`,
		roomID, night.Format("2006-01-02"),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomUnavailable
	}
	return nil
}

// AllocateTx durably allocates one inventory unit of the room for every
// night in [CheckIn, CheckOut) and records the reservation plus its
// guests. It validates the date range and occupancy, prices the stay via
// the pricing quote, and returns ErrRoomUnavailable when any night is
// out of stock. The caller owns the transaction; finalization wraps each
// call in a savepoint so one failed room does not undo the others.
func (r *RoomRepo) AllocateTx(ctx context.Context, tx *sql.Tx, userID uint64, orderID *uint64, sel model.RoomSelection) (*model.RoomReservation, error) {
	checkIn, err := time.Parse("2006-01-02", sel.CheckIn)
	if err != nil {
		return nil, ErrConflict
	}
	checkOut, err := time.Parse("2006-01-02", sel.CheckOut)
	if err != nil {
		return nil, ErrConflict
	}
	room, err := r.GetByIDTx(ctx, tx, sel.RoomID)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.QuoteRoom(*room, checkIn, checkOut, sel.Occupancy)
	if err != nil {
		return nil, err
	}
	for night := checkIn; night.Before(checkOut); night = night.AddDate(0, 0, 1) {
		if err := decrementNightTx(ctx, tx, room.ID, night); err != nil {
			return nil, err
		}
	}
	const insert = `INSERT INTO room_reservations
		(room_id, order_id, user_id, status, check_in, check_out, occupancy, total_cents, tax_cents)
		VALUES (?, ?, ?, 'CONFIRMED', ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insert,
		room.ID, orderID, userID, checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"),
		sel.Occupancy, quote.TotalCents, quote.TaxCents,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	resv := &model.RoomReservation{
		ID:         uint64(id),
		RoomID:     room.ID,
		OrderID:    orderID,
		UserID:     userID,
		Status:     "CONFIRMED",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Occupancy:  sel.Occupancy,
		TotalCents: quote.TotalCents,
		TaxCents:   quote.TaxCents,
		Guests:     sel.Guests,
	}
	if len(sel.Guests) > 0 {
		query := `INSERT INTO room_reservation_guests (reservation_id, full_name, note) VALUES `
		args := make([]interface{}, 0, len(sel.Guests)*3)
		for i, g := range sel.Guests {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, resv.ID, g.FullName, g.Note)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	return resv, nil
}

// ListByOrder returns the reservations attached to an order with their
// guests populated.
func (r *RoomRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.RoomReservation, error) {
	const q = `SELECT id, room_id, order_id, user_id, status, check_in, check_out, occupancy, total_cents, tax_cents, created_at
	           FROM room_reservations WHERE order_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	resvs := make([]model.RoomReservation, 0)
	for rows.Next() {
		var rr model.RoomReservation
		var oid sql.NullInt64
		if err := rows.Scan(&rr.ID, &rr.RoomID, &oid, &rr.UserID, &rr.Status,
			&rr.CheckIn, &rr.CheckOut, &rr.Occupancy, &rr.TotalCents, &rr.TaxCents, &rr.CreatedAt); err != nil {
			return nil, err
		}
		if oid.Valid {
			v := uint64(oid.Int64)
			rr.OrderID = &v
		}
		resvs = append(resvs, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range resvs {
		guests, err := r.guests(ctx, resvs[i].ID)
		if err != nil {
			return nil, err
		}
		resvs[i].Guests = guests
	}
	return resvs, nil
}

func (r *RoomRepo) guests(ctx context.Context, reservationID uint64) ([]model.GuestInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT full_name, note FROM room_reservation_guests WHERE reservation_id = ? ORDER BY id`,
		reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	guests := make([]model.GuestInfo, 0)
	for rows.Next() {
		var g model.GuestInfo
		if err := rows.Scan(&g.FullName, &g.Note); err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}
