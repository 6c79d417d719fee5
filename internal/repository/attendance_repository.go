package repository

import (
	"context"
	"database/sql"
)

// AttendanceRepo registers players for events. Registration is
// get-or-create keyed on (event_id, player_id), enforced twice: by the
// INSERT IGNORE below and by the unique index underneath it.
type AttendanceRepo struct {
	db *sql.DB
}

// NewAttendanceRepo returns an AttendanceRepo bound to the given database.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// GetOrCreateTx registers a player for an event within the transaction.
// It reports whether a new attendance row was created; a replayed
// finalization finds the existing row and creates nothing.
func (r *AttendanceRepo) GetOrCreateTx(ctx context.Context, tx *sql.Tx, eventID, playerID, orderID uint64) (created bool, err error) {
	res, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO attendances (event_id, player_id, order_id) VALUES (?, ?, ?)`,
		eventID, playerID, orderID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountByEvent returns the number of registered players for an event.
func (r *AttendanceRepo) CountByEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendances WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}
