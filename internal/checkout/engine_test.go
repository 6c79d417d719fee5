package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhautala/sportsreg/internal/checkout"
	"github.com/jmhautala/sportsreg/internal/config"
	"github.com/jmhautala/sportsreg/internal/gateway"
	"github.com/jmhautala/sportsreg/internal/repository"
)

// stubGateway satisfies gateway.Gateway for paths that never reach the
// processor.
type stubGateway struct{}

func (stubGateway) OpenSession(context.Context, gateway.SessionRequest) (*gateway.Session, error) {
	return &gateway.Session{ID: "sess-stub", RedirectURL: "https://pay.example/sess-stub"}, nil
}

func (stubGateway) RetrieveSession(context.Context, string) (*gateway.SessionState, error) {
	return &gateway.SessionState{}, nil
}

func (stubGateway) CancelSession(context.Context, string) error { return nil }

func (stubGateway) CreateRecurringSchedule(context.Context, string, int64, int) (string, error) {
	return "sched-stub", nil
}

func newMockEngine(t *testing.T) (*checkout.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := checkout.NewEngine(
		config.Config{Currency: "EUR", CheckoutTTLMin: 30},
		db,
		repository.NewWalletRepo(db),
		repository.NewCheckoutRepo(db),
		repository.NewOrderRepo(db),
		repository.NewRoomRepo(db),
		repository.NewAttendanceRepo(db),
		repository.NewEventRepo(db),
		repository.NewDiscrepancyRepo(db),
		stubGateway{},
		nil,
	)
	return e, mock
}

func checkoutRow(status string, paidAt any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "reference", "user_id", "event_id", "external_session_id", "mode", "status",
		"currency", "amount_total_cents", "wallet_reserved_cents", "breakdown",
		"selected_player_ids", "room_selection_snapshot", "installment_count",
		"installment_cents", "external_subscription_id", "paid_at", "created_at", "updated_at",
	}).AddRow(
		7, "chk-abc", 3, 5, "sess-1", "PAY_NOW", status,
		"EUR", 24840, 0, []byte(`[]`),
		[]byte(`[11]`), []byte(`[]`), 1,
		24840, nil, paidAt, now, now,
	)
}

func orderRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "checkout_id", "user_id", "event_id", "status", "currency",
		"amount_total_cents", "registered_player_ids", "installments_total",
		"installments_paid", "installment_cents", "created_at", "updated_at",
	}).AddRow(
		42, 7, 3, 5, "COMPLETED", "EUR",
		24840, []byte(`[11]`), 1,
		1, 24840, now, now,
	)
}

func TestMarkPaidDuplicateDeliveryReturnsExistingOrder(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM checkouts WHERE external_session_id").
		WithArgs("sess-1").
		WillReturnRows(checkoutRow("PAID", time.Now()))
	mock.ExpectQuery("FROM orders WHERE checkout_id").
		WithArgs(uint64(7)).
		WillReturnRows(orderRow())
	mock.ExpectRollback()

	order, err := e.MarkPaid(context.Background(), "sess-1", "")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, uint64(42), order.ID)
	assert.NoError(t, mock.ExpectationsWereMet(), "a duplicate delivery must not write anything")
}

func TestMarkPaidAfterTerminalRecordsDiscrepancy(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM checkouts WHERE external_session_id").
		WithArgs("sess-1").
		WillReturnRows(checkoutRow("CANCELLED", nil))
	mock.ExpectExec("INSERT INTO discrepancies").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	order, err := e.MarkPaid(context.Background(), "sess-1", "")
	require.NoError(t, err)
	assert.Nil(t, order, "a paid signal after cancellation must not produce an order")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidUnknownSessionRecordsDiscrepancy(t *testing.T) {
	e, mock := newMockEngine(t)

	empty := sqlmock.NewRows([]string{"id"})
	mock.ExpectBegin()
	mock.ExpectQuery("FROM checkouts WHERE external_session_id").
		WithArgs("sess-missing").
		WillReturnRows(empty)
	mock.ExpectExec("INSERT INTO discrepancies").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	order, err := e.MarkPaid(context.Background(), "sess-missing", "")
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}
