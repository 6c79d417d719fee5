package model

import "time"

// EntryKind enumerates the ledger entry kinds. RESERVE moves funds from
// available to pending; CONFIRM spends a reservation; RELEASE returns it.
// DEPOSIT, WITHDRAWAL and REFUND adjust the settled balance directly and
// are independent of pending funds.
type EntryKind string

const (
	EntryDeposit    EntryKind = "DEPOSIT"
	EntryReserve    EntryKind = "RESERVE"
	EntryConfirm    EntryKind = "CONFIRM"
	EntryRelease    EntryKind = "RELEASE"
	EntryRefund     EntryKind = "REFUND"
	EntryWithdrawal EntryKind = "WITHDRAWAL"
)

// Account is the prepaid wallet for a single user. BalanceCents holds
// settled funds; PendingCents holds funds earmarked for in-flight
// checkouts. The spendable amount is AvailableCents(). Both columns are
// mutated exclusively by ledger operations, never directly.
type Account struct {
	ID           uint64    // accounts.id
	UserID       uint64    // accounts.user_id
	BalanceCents int64     // accounts.balance_cents
	PendingCents int64     // accounts.pending_cents
	CreatedAt    time.Time // accounts.created_at
	UpdatedAt    time.Time // accounts.updated_at
}

// AvailableCents returns the funds a new reservation may draw on.
func (a Account) AvailableCents() int64 {
	return a.BalanceCents - a.PendingCents
}

// LedgerEntry is one immutable row of the append-only wallet log. The
// running replay of all entries for an account must reproduce the stored
// balance and pending columns at all times; VerifyLedger checks exactly
// that.
type LedgerEntry struct {
	ID           uint64    // ledger_entries.id
	AccountID    uint64    // ledger_entries.account_id
	Kind         EntryKind // ledger_entries.kind
	AmountCents  int64     // ledger_entries.amount_cents (always > 0)
	BalanceAfter int64     // ledger_entries.balance_after
	PendingAfter int64     // ledger_entries.pending_after
	Reference    string    // ledger_entries.reference (checkout or operator ref)
	CreatedAt    time.Time // ledger_entries.created_at
}
