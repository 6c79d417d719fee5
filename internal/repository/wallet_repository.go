package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmhautala/sportsreg/internal/model"
)

// WalletRepo implements the prepaid-wallet ledger: an append-only
// ledger_entries log plus materialized balance/pending columns on the
// accounts row. Every mutating operation runs inside a single
// transaction that locks the account row (SELECT ... FOR UPDATE) so that
// concurrent reserve/confirm/release calls for the same user serialize
// instead of losing updates. Each operation appends exactly one entry.
//
// The unique key on (account_id, reference, kind) backs the idempotency
// guarantees at the storage layer: a duplicate confirm for a reference
// fails on the index even if the application-level outstanding-
// reservation check were ever bypassed.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo returns a WalletRepo bound to the given database.
func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// DB exposes the underlying handle so orchestrating code can open a
// transaction spanning wallet and checkout state.
func (r *WalletRepo) DB() *sql.DB { return r.db }

// GetOrCreate returns the account for a user, creating an empty one on
// first touch.
func (r *WalletRepo) GetOrCreate(ctx context.Context, userID uint64) (*model.Account, error) {
	acc, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id) VALUES (?) ON DUPLICATE KEY UPDATE user_id = user_id`,
		userID,
	); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

// GetByUserID loads an account by its owner. Returns sql.ErrNoRows when
// the user has no wallet yet.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Account, error) {
	const q = `SELECT id, user_id, balance_cents, pending_cents, created_at, updated_at
	           FROM accounts WHERE user_id = ?`
	var a model.Account
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&a.ID, &a.UserID, &a.BalanceCents, &a.PendingCents, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// lockAccountTx loads and row-locks the account for the duration of the
// surrounding transaction.
func lockAccountTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Account, error) {
	const q = `SELECT id, user_id, balance_cents, pending_cents, created_at, updated_at
	           FROM accounts WHERE user_id = ? FOR UPDATE`
	var a model.Account
	err := tx.QueryRowContext(ctx, q, userID).Scan(
		&a.ID, &a.UserID, &a.BalanceCents, &a.PendingCents, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// appendEntryTx updates the materialized balances and writes the ledger
// entry mirroring them. The two statements always travel together; they
// are the only writers of accounts.balance_cents/pending_cents.
func appendEntryTx(ctx context.Context, tx *sql.Tx, acc *model.Account, kind model.EntryKind, amount int64, newBalance, newPending int64, reference string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ?, pending_cents = ? WHERE id = ?`,
		newBalance, newPending, acc.ID,
	); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (account_id, kind, amount_cents, balance_after, pending_after, reference)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		acc.ID, string(kind), amount, newBalance, newPending, reference,
	)
	if isDuplicateKey(err) {
		// Same (account, reference, kind) already applied.
		return ErrConflict
	}
	return err
}

// outstandingReserveTx returns the amount of the open reservation for a
// reference, or ErrReservationNotFound when the reference was never
// reserved or has already been confirmed or released.
func outstandingReserveTx(ctx context.Context, tx *sql.Tx, accountID uint64, reference string) (int64, error) {
	const q = `SELECT amount_cents FROM ledger_entries
	           WHERE account_id = ? AND reference = ? AND kind = 'RESERVE'`
	var reserved int64
	err := tx.QueryRowContext(ctx, q, accountID, reference).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrReservationNotFound
	}
	if err != nil {
		return 0, err
	}
	const settled = `SELECT COUNT(*) FROM ledger_entries
	                 WHERE account_id = ? AND reference = ? AND kind IN ('CONFIRM','RELEASE')`
	var n int
	if err := tx.QueryRowContext(ctx, settled, accountID, reference).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, ErrReservationNotFound
	}
	return reserved, nil
}

// ReserveTx earmarks amount cents of available balance for reference.
// Requires available >= amount, otherwise ErrInsufficientFunds.
func (r *WalletRepo) ReserveTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, reference string) error {
	if amount <= 0 {
		return ErrConflict
	}
	acc, err := lockAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if acc.AvailableCents() < amount {
		return ErrInsufficientFunds
	}
	return appendEntryTx(ctx, tx, acc, model.EntryReserve, amount,
		acc.BalanceCents, acc.PendingCents+amount, reference)
}

// ConfirmTx spends a previously reserved amount: balance and pending both
// drop by the reserved amount. The amount must match what was reserved.
func (r *WalletRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, reference string) error {
	acc, err := lockAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	reserved, err := outstandingReserveTx(ctx, tx, acc.ID, reference)
	if err != nil {
		return err
	}
	if reserved != amount {
		return ErrConflict
	}
	return appendEntryTx(ctx, tx, acc, model.EntryConfirm, amount,
		acc.BalanceCents-amount, acc.PendingCents-amount, reference)
}

// ReleaseTx cancels a reservation without spending it, returning the
// amount to available balance.
func (r *WalletRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, reference string) error {
	acc, err := lockAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	reserved, err := outstandingReserveTx(ctx, tx, acc.ID, reference)
	if err != nil {
		return err
	}
	if reserved != amount {
		return ErrConflict
	}
	return appendEntryTx(ctx, tx, acc, model.EntryRelease, amount,
		acc.BalanceCents, acc.PendingCents-amount, reference)
}

// DepositTx credits settled funds directly, independent of pending.
func (r *WalletRepo) DepositTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, reference string) error {
	if amount <= 0 {
		return ErrConflict
	}
	acc, err := lockAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	return appendEntryTx(ctx, tx, acc, model.EntryDeposit, amount,
		acc.BalanceCents+amount, acc.PendingCents, reference)
}

// RefundTx credits settled funds back after an external refund.
func (r *WalletRepo) RefundTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, reference string) error {
	if amount <= 0 {
		return ErrConflict
	}
	acc, err := lockAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	return appendEntryTx(ctx, tx, acc, model.EntryRefund, amount,
		acc.BalanceCents+amount, acc.PendingCents, reference)
}

// WithdrawTx debits settled funds. Withdrawals are limited to the
// available balance, never the reserved portion; this keeps
// pending <= balance by construction.
func (r *WalletRepo) WithdrawTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, reference string) error {
	if amount <= 0 {
		return ErrConflict
	}
	acc, err := lockAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if acc.AvailableCents() < amount {
		return ErrInsufficientFunds
	}
	return appendEntryTx(ctx, tx, acc, model.EntryWithdrawal, amount,
		acc.BalanceCents-amount, acc.PendingCents, reference)
}

// withTx runs fn in its own transaction. The non-Tx wrappers below use it
// so that standalone ledger calls get the same locking discipline as
// calls embedded in a larger finalization transaction.
func (r *WalletRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Reserve, Confirm, Release, Deposit, Refund and Withdraw are the
// standalone forms of the Tx operations above.

func (r *WalletRepo) Reserve(ctx context.Context, userID uint64, amount int64, reference string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error { return r.ReserveTx(ctx, tx, userID, amount, reference) })
}

func (r *WalletRepo) Confirm(ctx context.Context, userID uint64, amount int64, reference string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error { return r.ConfirmTx(ctx, tx, userID, amount, reference) })
}

func (r *WalletRepo) Release(ctx context.Context, userID uint64, amount int64, reference string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error { return r.ReleaseTx(ctx, tx, userID, amount, reference) })
}

func (r *WalletRepo) Deposit(ctx context.Context, userID uint64, amount int64, reference string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error { return r.DepositTx(ctx, tx, userID, amount, reference) })
}

func (r *WalletRepo) Refund(ctx context.Context, userID uint64, amount int64, reference string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error { return r.RefundTx(ctx, tx, userID, amount, reference) })
}

func (r *WalletRepo) Withdraw(ctx context.Context, userID uint64, amount int64, reference string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error { return r.WithdrawTx(ctx, tx, userID, amount, reference) })
}

// Entries returns all ledger entries for an account in append order.
func (r *WalletRepo) Entries(ctx context.Context, accountID uint64) ([]model.LedgerEntry, error) {
	const q = `SELECT id, account_id, kind, amount_cents, balance_after, pending_after, reference, created_at
	           FROM ledger_entries WHERE account_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.AccountID, &kind, &e.AmountCents, &e.BalanceAfter, &e.PendingAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = model.EntryKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// IntegrityReport is the result of replaying an account's ledger. It is
// a read-only audit: a mismatch is reported, never auto-corrected.
type IntegrityReport struct {
	AccountID       uint64    `json:"account_id"`
	EntryCount      int       `json:"entry_count"`
	StoredBalance   int64     `json:"stored_balance_cents"`
	StoredPending   int64     `json:"stored_pending_cents"`
	ReplayedBalance int64     `json:"replayed_balance_cents"`
	ReplayedPending int64     `json:"replayed_pending_cents"`
	CheckedAt       time.Time `json:"checked_at"`
}

// OK reports whether the replayed balances match the stored columns.
func (rep IntegrityReport) OK() bool {
	return rep.StoredBalance == rep.ReplayedBalance && rep.StoredPending == rep.ReplayedPending
}

// ReplayEntries folds a ledger entry sequence into the balance/pending
// pair it should produce. Exposed as a pure function so audits and tests
// share one implementation of the ledger arithmetic.
func ReplayEntries(entries []model.LedgerEntry) (balance, pending int64) {
	for _, e := range entries {
		switch e.Kind {
		case model.EntryDeposit, model.EntryRefund:
			balance += e.AmountCents
		case model.EntryWithdrawal:
			balance -= e.AmountCents
		case model.EntryReserve:
			pending += e.AmountCents
		case model.EntryConfirm:
			balance -= e.AmountCents
			pending -= e.AmountCents
		case model.EntryRelease:
			pending -= e.AmountCents
		}
	}
	return balance, pending
}

// VerifyIntegrity replays every ledger entry for the user's account and
// compares the result against the stored balances, returning a
// structured report rather than an error so it can serve as a read-only
// audit endpoint.
func (r *WalletRepo) VerifyIntegrity(ctx context.Context, userID uint64) (*IntegrityReport, error) {
	acc, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := r.Entries(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	balance, pending := ReplayEntries(entries)
	return &IntegrityReport{
		AccountID:       acc.ID,
		EntryCount:      len(entries),
		StoredBalance:   acc.BalanceCents,
		StoredPending:   acc.PendingCents,
		ReplayedBalance: balance,
		ReplayedPending: pending,
		CheckedAt:       time.Now().UTC(),
	}, nil
}
