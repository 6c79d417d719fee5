package repository

import (
	"context"
	"database/sql"

	"github.com/jmhautala/sportsreg/internal/model"
)

// DiscrepancyRepo records conditions that need operator attention:
// payments that arrived after a terminal status, rooms that vanished
// after payment, schedule calls that failed post-commit. Rows are only
// ever appended here; resolution is a manual decision.
type DiscrepancyRepo struct {
	db *sql.DB
}

// NewDiscrepancyRepo returns a DiscrepancyRepo bound to the given database.
func NewDiscrepancyRepo(db *sql.DB) *DiscrepancyRepo { return &DiscrepancyRepo{db: db} }

// Record appends a discrepancy. It deliberately uses its own connection,
// not the caller's transaction: a discrepancy observed inside a
// transaction that later rolls back still happened from the operator's
// point of view.
func (r *DiscrepancyRepo) Record(ctx context.Context, kind string, checkoutID, orderID *uint64, detail string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO discrepancies (kind, checkout_id, order_id, detail) VALUES (?, ?, ?, ?)`,
		kind, checkoutID, orderID, detail,
	)
	return err
}

// ListOpen returns unresolved discrepancies, oldest first.
func (r *DiscrepancyRepo) ListOpen(ctx context.Context) ([]model.Discrepancy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, checkout_id, order_id, detail, resolved, created_at
		 FROM discrepancies WHERE resolved = 0 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Discrepancy, 0)
	for rows.Next() {
		var d model.Discrepancy
		var checkoutID, orderID sql.NullInt64
		if err := rows.Scan(&d.ID, &d.Kind, &checkoutID, &orderID, &d.Detail, &d.Resolved, &d.CreatedAt); err != nil {
			return nil, err
		}
		if checkoutID.Valid {
			v := uint64(checkoutID.Int64)
			d.CheckoutID = &v
		}
		if orderID.Valid {
			v := uint64(orderID.Int64)
			d.OrderID = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Resolve marks a discrepancy handled after operator confirmation.
func (r *DiscrepancyRepo) Resolve(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE discrepancies SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
