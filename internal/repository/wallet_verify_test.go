package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmhautala/sportsreg/internal/model"
	"github.com/jmhautala/sportsreg/internal/repository"
)

func entry(kind model.EntryKind, amount int64, ref string) model.LedgerEntry {
	return model.LedgerEntry{Kind: kind, AmountCents: amount, Reference: ref}
}

func TestReplayEntries_Conservation(t *testing.T) {
	tests := []struct {
		name        string
		entries     []model.LedgerEntry
		wantBalance int64
		wantPending int64
	}{
		{
			name:        "empty ledger",
			entries:     nil,
			wantBalance: 0,
			wantPending: 0,
		},
		{
			name: "deposit only",
			entries: []model.LedgerEntry{
				entry(model.EntryDeposit, 10000, "top-up-1"),
			},
			wantBalance: 10000,
			wantPending: 0,
		},
		{
			name: "reserve moves funds to pending without touching balance",
			entries: []model.LedgerEntry{
				entry(model.EntryDeposit, 10000, "top-up-1"),
				entry(model.EntryReserve, 4000, "chk-1"),
			},
			wantBalance: 10000,
			wantPending: 4000,
		},
		{
			name: "confirm spends the reservation",
			entries: []model.LedgerEntry{
				entry(model.EntryDeposit, 10000, "top-up-1"),
				entry(model.EntryReserve, 4000, "chk-1"),
				entry(model.EntryConfirm, 4000, "chk-1"),
			},
			wantBalance: 6000,
			wantPending: 0,
		},
		{
			name: "release restores available funds in full",
			entries: []model.LedgerEntry{
				entry(model.EntryDeposit, 10000, "top-up-1"),
				entry(model.EntryReserve, 4000, "chk-1"),
				entry(model.EntryRelease, 4000, "chk-1"),
			},
			wantBalance: 10000,
			wantPending: 0,
		},
		{
			name: "mixed history with refund and withdrawal",
			entries: []model.LedgerEntry{
				entry(model.EntryDeposit, 20000, "top-up-1"),
				entry(model.EntryReserve, 5000, "chk-1"),
				entry(model.EntryConfirm, 5000, "chk-1"),
				entry(model.EntryRefund, 2500, "refund-chk-1"),
				entry(model.EntryWithdrawal, 1000, "payout-1"),
				entry(model.EntryReserve, 3000, "chk-2"),
			},
			wantBalance: 16500,
			wantPending: 3000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, pending := repository.ReplayEntries(tt.entries)
			assert.Equal(t, tt.wantBalance, balance)
			assert.Equal(t, tt.wantPending, pending)
		})
	}
}

func TestReplayEntries_CancelScenario(t *testing.T) {
	// Wallet $100, reserve $40 for a checkout, gateway cancels, release.
	history := []model.LedgerEntry{
		entry(model.EntryDeposit, 10000, "top-up-1"),
		entry(model.EntryReserve, 4000, "chk-9"),
	}
	balance, pending := repository.ReplayEntries(history)
	assert.Equal(t, int64(10000), balance)
	assert.Equal(t, int64(4000), pending)
	assert.Equal(t, int64(6000), balance-pending, "available while reserved")

	history = append(history, entry(model.EntryRelease, 4000, "chk-9"))
	balance, pending = repository.ReplayEntries(history)
	assert.Equal(t, int64(10000), balance)
	assert.Equal(t, int64(0), pending)
}

func TestIntegrityReport_OK(t *testing.T) {
	rep := repository.IntegrityReport{
		StoredBalance: 500, ReplayedBalance: 500,
		StoredPending: 200, ReplayedPending: 200,
	}
	assert.True(t, rep.OK())

	rep.ReplayedPending = 100
	assert.False(t, rep.OK(), "pending drift must be reported")
}
