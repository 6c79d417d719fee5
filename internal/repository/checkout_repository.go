package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmhautala/sportsreg/internal/model"
)

// CheckoutRepo provides persistence for checkouts. The snapshot columns
// (breakdown, selected players, room selection) are stored as JSON and
// are written once at creation; finalization only ever reads them back.
type CheckoutRepo struct {
	db *sql.DB
}

// NewCheckoutRepo returns a CheckoutRepo bound to the given database.
func NewCheckoutRepo(db *sql.DB) *CheckoutRepo { return &CheckoutRepo{db: db} }

// DB exposes the underlying handle for transaction orchestration.
func (r *CheckoutRepo) DB() *sql.DB { return r.db }

const checkoutColumns = `id, reference, user_id, event_id, external_session_id, mode, status,
	currency, amount_total_cents, wallet_reserved_cents, breakdown, selected_player_ids,
	room_selection_snapshot, installment_count, installment_cents, external_subscription_id,
	paid_at, created_at, updated_at`

// CreateTx inserts a new checkout within the given transaction and
// populates the generated ID. Duplicate external session ids fail on the
// unique index and surface as ErrConflict.
func (r *CheckoutRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Checkout) error {
	breakdown, err := json.Marshal(c.Breakdown)
	if err != nil {
		return err
	}
	players, err := json.Marshal(c.SelectedPlayerIDs)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(c.RoomSnapshot)
	if err != nil {
		return err
	}
	const q = `INSERT INTO checkouts
		(reference, user_id, event_id, external_session_id, mode, status, currency,
		 amount_total_cents, wallet_reserved_cents, breakdown, selected_player_ids,
		 room_selection_snapshot, installment_count, installment_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		c.Reference, c.UserID, c.EventID, c.ExternalSessionID, string(c.Mode), string(c.Status),
		c.Currency, c.AmountTotalCents, c.WalletReservedCents, breakdown, players, snapshot,
		c.InstallmentCount, c.InstallmentCents,
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
	c.ID = uint64(id)
	return nil
}

func scanCheckout(row interface{ Scan(...any) error }) (*model.Checkout, error) {
	var c model.Checkout
	var mode, status string
	var breakdown, players, snapshot []byte
	var subID sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.Reference, &c.UserID, &c.EventID, &c.ExternalSessionID, &mode, &status,
		&c.Currency, &c.AmountTotalCents, &c.WalletReservedCents, &breakdown, &players,
		&snapshot, &c.InstallmentCount, &c.InstallmentCents, &subID, &paidAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Mode = model.CheckoutMode(mode)
	c.Status = model.CheckoutStatus(status)
	if err := json.Unmarshal(breakdown, &c.Breakdown); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(players, &c.SelectedPlayerIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &c.RoomSnapshot); err != nil {
		return nil, err
	}
	if subID.Valid {
		s := subID.String
		c.ExternalSubID = &s
	}
	if paidAt.Valid {
		t := paidAt.Time
		c.PaidAt = &t
	}
	return &c, nil
}

// GetByID loads a checkout. Returns ErrCheckoutNotFound when absent.
func (r *CheckoutRepo) GetByID(ctx context.Context, id uint64) (*model.Checkout, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkouts WHERE id = ?`, id)
	c, err := scanCheckout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	return c, err
}

// LockByIDTx loads and row-locks a checkout for the duration of the
// transaction. Finalization and compensation both go through this lock so
// a checkout can only ever reach one terminal status.
func (r *CheckoutRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Checkout, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkouts WHERE id = ? FOR UPDATE`, id)
	c, err := scanCheckout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	return c, err
}

// LockBySessionTx is LockByIDTx keyed by the gateway's session id, the
// lookup used by webhook delivery.
func (r *CheckoutRepo) LockBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.Checkout, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+checkoutColumns+` FROM checkouts WHERE external_session_id = ? FOR UPDATE`, sessionID)
	c, err := scanCheckout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	return c, err
}

// MarkPaidTx transitions a locked checkout into PAID. The WHERE clause
// re-checks the current status so a racing terminal transition can never
// be overwritten.
func (r *CheckoutRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, paidAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE checkouts SET status = 'PAID', paid_at = ? WHERE id = ? AND status = 'CREATED'`,
		paidAt.UTC(), id,
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
	return nil
}

// SetTerminalTx transitions a locked checkout from CREATED into
// CANCELLED or EXPIRED.
func (r *CheckoutRepo) SetTerminalTx(ctx context.Context, tx *sql.Tx, id uint64, status model.CheckoutStatus) error {
	if !status.Terminal() {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE checkouts SET status = ? WHERE id = ? AND status = 'CREATED'`,
		string(status), id,
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
	return nil
}

// SetSubscriptionID persists the gateway's recurring-schedule identifier.
// Called after the finalization transaction commits, because the schedule
// is created outside the lock.
func (r *CheckoutRepo) SetSubscriptionID(ctx context.Context, id uint64, subscriptionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE checkouts SET external_subscription_id = ? WHERE id = ?`, subscriptionID, id)
	return err
}

// FindBySubscriptionID resolves the checkout carrying a gateway
// subscription id, used when installment webhooks arrive.
func (r *CheckoutRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Checkout, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+checkoutColumns+` FROM checkouts WHERE external_subscription_id = ?`, subscriptionID)
	c, err := scanCheckout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	return c, err
}
