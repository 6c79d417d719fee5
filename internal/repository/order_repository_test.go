package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhautala/sportsreg/internal/repository"
)

func newOrderRepo(t *testing.T) (*repository.OrderRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewOrderRepo(db), mock
}

func TestRecordInstallmentPaid(t *testing.T) {
	r, mock := newOrderRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO installment_payments").
		WithArgs(uint64(42), "inv-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders").
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, r.RecordInstallmentPaid(context.Background(), 42, "inv-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInstallmentPaid_ReplayedInvoiceIsConflict(t *testing.T) {
	r, mock := newOrderRepo(t)

	// A redelivered invoice hits the unique (order_id, invoice_id) key
	// before the counter update runs, so the counter cannot advance twice.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO installment_payments").
		WithArgs(uint64(42), "inv-1").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "duplicate entry"})
	mock.ExpectRollback()

	err := r.RecordInstallmentPaid(context.Background(), 42, "inv-1")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInstallmentPaid_CompletedOrderIsConflict(t *testing.T) {
	r, mock := newOrderRepo(t)

	// A fresh invoice against an order whose counter is already full
	// passes the insert but the capped update matches no row.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO installment_payments").
		WithArgs(uint64(42), "inv-9").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE orders").
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := r.RecordInstallmentPaid(context.Background(), 42, "inv-9")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
