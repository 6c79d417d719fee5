package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmhautala/sportsreg/internal/model"
)

// OrderRepo persists orders, the 1:1 durable result of a finalized
// checkout. Installment bookkeeping lives here; the visible payment
// schedule is projected from these counters at read time.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, checkout_id, user_id, event_id, status, currency, amount_total_cents,
	registered_player_ids, installments_total, installments_paid, installment_cents,
	created_at, updated_at`

// CreateTx inserts the order within the finalization transaction and
// populates the generated ID. The unique key on checkout_id guarantees
// at most one order per checkout even under concurrent finalization.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	players, err := json.Marshal(o.RegisteredPlayerIDs)
	if err != nil {
		return err
	}
	const q = `INSERT INTO orders
		(checkout_id, user_id, event_id, status, currency, amount_total_cents,
		 registered_player_ids, installments_total, installments_paid, installment_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		o.CheckoutID, o.UserID, o.EventID, string(o.Status), o.Currency, o.AmountTotalCents,
		players, o.InstallmentsTotal, o.InstallmentsPaid, o.InstallmentCents,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var status string
	var players []byte
	err := row.Scan(
		&o.ID, &o.CheckoutID, &o.UserID, &o.EventID, &status, &o.Currency, &o.AmountTotalCents,
		&players, &o.InstallmentsTotal, &o.InstallmentsPaid, &o.InstallmentCents,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if err := json.Unmarshal(players, &o.RegisteredPlayerIDs); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID loads an order. Returns ErrOrderNotFound when absent.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// GetByCheckoutID loads the order finalized from a checkout, if any.
func (r *OrderRepo) GetByCheckoutID(ctx context.Context, checkoutID uint64) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_id = ?`, checkoutID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// GetByCheckoutIDTx is GetByCheckoutID inside a transaction; used by the
// finalization idempotency short-circuit.
func (r *OrderRepo) GetByCheckoutIDTx(ctx context.Context, tx *sql.Tx, checkoutID uint64) (*model.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_id = ?`, checkoutID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// RecordInstallmentPaid advances the paid counter by one and flips the
// order to COMPLETED when the final installment settles. Each invoice
// is recorded in installment_payments under a unique (order, invoice)
// key, so a redelivered invoice webhook hits the duplicate key and the
// counter is never advanced twice for the same charge.
func (r *OrderRepo) RecordInstallmentPaid(ctx context.Context, orderID uint64, invoiceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO installment_payments (order_id, invoice_id) VALUES (?, ?)`,
		orderID, invoiceID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET installments_paid = installments_paid + 1,
		     status = IF(installments_paid + 1 >= installments_total, 'COMPLETED', status)
		 WHERE id = ? AND status = 'ACTIVE' AND installments_paid < installments_total`,
		orderID,
	)
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
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// MarkAbandoned sets the terminal ABANDONED status on an order whose
// recurring schedule lapsed before completion.
func (r *OrderRepo) MarkAbandoned(ctx context.Context, orderID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = 'ABANDONED' WHERE id = ? AND status = 'ACTIVE'`, orderID)
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
