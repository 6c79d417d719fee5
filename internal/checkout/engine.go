// Package checkout implements the checkout state machine and its
// finalization algorithm: the single linearization point that turns an
// asynchronously confirmed gateway payment into a durable order,
// confirmed wallet spend, room reservations and event attendances,
// exactly once under at-least-once webhook delivery.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmhautala/sportsreg/internal/config"
	"github.com/jmhautala/sportsreg/internal/gateway"
	"github.com/jmhautala/sportsreg/internal/model"
	"github.com/jmhautala/sportsreg/internal/plan"
	"github.com/jmhautala/sportsreg/internal/pricing"
	"github.com/jmhautala/sportsreg/internal/queue"
	"github.com/jmhautala/sportsreg/internal/repository"
)

// Publisher delivers domain events to the message broker. Failures are
// logged and ignored; the broker is not part of the consistency core.
type Publisher interface {
	PublishOrderFinalized(ctx context.Context, ev queue.OrderFinalizedEvent) error
}

// Engine orchestrates checkouts across the wallet ledger, the room
// allocator, the plan scheduler and the payment gateway. All gateway
// calls happen outside database locks: before the transaction at
// creation time, or after commit for the recurring schedule.
type Engine struct {
	cfg           config.Config
	db            *sql.DB
	wallets       *repository.WalletRepo
	checkouts     *repository.CheckoutRepo
	orders        *repository.OrderRepo
	rooms         *repository.RoomRepo
	attendance    *repository.AttendanceRepo
	events        *repository.EventRepo
	discrepancies *repository.DiscrepancyRepo
	gw            gateway.Gateway
	publisher     Publisher
	log           *logrus.Entry
	now           func() time.Time
}

// NewEngine wires the engine. The publisher may be nil when no broker is
// configured.
func NewEngine(
	cfg config.Config,
	db *sql.DB,
	wallets *repository.WalletRepo,
	checkouts *repository.CheckoutRepo,
	orders *repository.OrderRepo,
	rooms *repository.RoomRepo,
	attendance *repository.AttendanceRepo,
	events *repository.EventRepo,
	discrepancies *repository.DiscrepancyRepo,
	gw gateway.Gateway,
	publisher Publisher,
) *Engine {
	return &Engine{
		cfg:           cfg,
		db:            db,
		wallets:       wallets,
		checkouts:     checkouts,
		orders:        orders,
		rooms:         rooms,
		attendance:    attendance,
		events:        events,
		discrepancies: discrepancies,
		gw:            gw,
		publisher:     publisher,
		log:           logrus.WithField("component", "checkout"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput is the request to open a checkout.
type CreateInput struct {
	UserID      uint64
	EventID     uint64
	Mode        model.CheckoutMode
	PlayerIDs   []uint64
	Rooms       []model.RoomSelection
	WalletCents int64 // portion of the total to fund from the prepaid wallet
}

// CreateResult carries the created checkout and where to send the customer.
type CreateResult struct {
	Checkout    *model.Checkout
	RedirectURL string
}

// Create validates the selection, prices it, reserves any wallet-funded
// portion and opens the gateway session. The room selection is frozen
// into the checkout as an immutable snapshot; finalization reads only
// that snapshot. Insufficient wallet funds abort before any gateway call.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.Mode != model.ModePayNow && in.Mode != model.ModeInstallmentPlan {
		return nil, repository.ErrConflict
	}
	event, err := e.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if err := e.events.ValidatePlayers(ctx, in.UserID, in.PlayerIDs); err != nil {
		return nil, err
	}
	quotes := make([]pricing.RoomQuote, 0, len(in.Rooms))
	for _, sel := range in.Rooms {
		checkIn, err1 := time.Parse("2006-01-02", sel.CheckIn)
		checkOut, err2 := time.Parse("2006-01-02", sel.CheckOut)
		if err1 != nil || err2 != nil {
			return nil, pricing.ErrInvalidStay
		}
		room, err := e.rooms.GetByID(ctx, sel.RoomID)
		if err != nil {
			return nil, err
		}
		q, err := pricing.QuoteRoom(*room, checkIn, checkOut, sel.Occupancy)
		if err != nil {
			return nil, err
		}
		// Advisory stock check so an obviously unfillable selection
		// fails here instead of after payment.
		if err := e.rooms.CheckAvailability(ctx, room.ID, checkIn, checkOut); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	breakdown := pricing.ComputeCheckout(event.FeeCents, len(in.PlayerIDs), quotes, in.Mode, e.cfg.LodgingDiscountPct)

	// Installments are charged through the gateway in full; combining
	// them with wallet funds would need per-installment ledger splits.
	if in.Mode == model.ModeInstallmentPlan && in.WalletCents > 0 {
		return nil, repository.ErrConflict
	}
	if in.WalletCents < 0 || in.WalletCents > breakdown.TotalCents {
		return nil, repository.ErrConflict
	}
	if in.WalletCents > 0 {
		acc, err := e.wallets.GetOrCreate(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		if acc.AvailableCents() < in.WalletCents {
			return nil, repository.ErrInsufficientFunds
		}
	}

	installments := plan.Plan{Count: 1, PerCents: breakdown.TotalCents, LastCents: breakdown.TotalCents}
	if in.Mode == model.ModeInstallmentPlan {
		installments = plan.Build(breakdown.TotalCents, e.now(), event.RegistrationDue)
	}

	reference := "chk-" + uuid.NewString()
	gatewayCents := breakdown.TotalCents - in.WalletCents
	sessionAmount := gatewayCents
	if in.Mode == model.ModeInstallmentPlan {
		sessionAmount = installments.PerCents // first charge now, rest on the schedule
	}
	session, err := e.gw.OpenSession(ctx, gateway.SessionRequest{
		Reference:        reference,
		AmountCents:      sessionAmount,
		Currency:         e.cfg.Currency,
		Mode:             string(in.Mode),
		InstallmentCents: installments.PerCents,
	})
	if err != nil {
		return nil, err
	}

	c := &model.Checkout{
		Reference:           reference,
		UserID:              in.UserID,
		EventID:             in.EventID,
		ExternalSessionID:   session.ID,
		Mode:                in.Mode,
		Status:              model.CheckoutCreated,
		Currency:            e.cfg.Currency,
		AmountTotalCents:    breakdown.TotalCents,
		WalletReservedCents: in.WalletCents,
		Breakdown:           breakdown.Lines,
		SelectedPlayerIDs:   in.PlayerIDs,
		RoomSnapshot:        in.Rooms,
		InstallmentCount:    installments.Count,
		InstallmentCents:    installments.PerCents,
	}

	if err := e.persistCheckout(ctx, c, in.WalletCents); err != nil {
		// The session was opened but no checkout references it. Void it
		// best effort so the customer cannot pay into a dead session;
		// if the cancel fails too the session simply expires unused.
		if cerr := e.gw.CancelSession(ctx, session.ID); cerr != nil {
			e.log.WithError(cerr).WithField("session_id", session.ID).
				Warn("could not cancel orphaned gateway session")
		}
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"checkout_id": c.ID,
		"reference":   reference,
		"session_id":  session.ID,
		"mode":        c.Mode,
		"total_cents": c.AmountTotalCents,
	}).Info("checkout created")
	return &CreateResult{Checkout: c, RedirectURL: session.RedirectURL}, nil
}

// persistCheckout writes the checkout row and the wallet reserve in one
// transaction.
func (e *Engine) persistCheckout(ctx context.Context, c *model.Checkout, walletCents int64) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := e.checkouts.CreateTx(ctx, tx, c); err != nil {
		return err
	}
	if walletCents > 0 {
		if err := e.wallets.ReserveTx(ctx, tx, c.UserID, walletCents, c.Reference); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// roomFailure records one snapshot room that could not be allocated
// during finalization.
type roomFailure struct {
	index  int
	roomID uint64
	err    error
}

// MarkPaid handles a settled gateway session: it locks the checkout by
// session id and runs finalization exactly once. Re-delivery for an
// already paid checkout returns the existing order without side
// effects; a paid signal arriving after cancel/expiry is recorded as a
// discrepancy, never replayed into state.
func (e *Engine) MarkPaid(ctx context.Context, sessionID, subscriptionID string) (*model.Order, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	c, err := e.checkouts.LockBySessionTx(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			e.log.WithField("session_id", sessionID).Warn("paid signal for unknown session")
			_ = e.discrepancies.Record(ctx, model.DiscrepancyUnknownReference, nil, nil,
				fmt.Sprintf("session.paid for unknown session %s", sessionID))
			return nil, nil
		}
		return nil, err
	}

	switch c.Status {
	case model.CheckoutPaid:
		// Idempotency short-circuit: duplicate delivery, nothing to do.
		order, err := e.orders.GetByCheckoutIDTx(ctx, tx, c.ID)
		if err != nil {
			return nil, err
		}
		e.log.WithField("checkout_id", c.ID).Debug("duplicate paid signal ignored")
		return order, nil
	case model.CheckoutCancelled, model.CheckoutExpired:
		e.log.WithFields(logrus.Fields{"checkout_id": c.ID, "status": c.Status}).
			Warn("paid signal after terminal status")
		_ = e.discrepancies.Record(ctx, model.DiscrepancyPaidAfterClose, &c.ID, nil,
			fmt.Sprintf("gateway reported session %s paid but checkout is %s", sessionID, c.Status))
		return nil, nil
	}

	paidAt := e.now()
	order, failures, err := e.finalizeTx(ctx, tx, c, paidAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	// Post-commit work: operator-visible partial failures, the recurring
	// schedule for the remaining installments, and the domain event.
	for _, f := range failures {
		_ = e.discrepancies.Record(ctx, model.DiscrepancyRoomUnavailable, &c.ID, &order.ID,
			fmt.Sprintf("room %d (snapshot #%d) could not be allocated after payment: %v", f.roomID, f.index, f.err))
	}
	e.scheduleRemaining(ctx, c, order, subscriptionID)
	e.publishFinalized(ctx, c, order, paidAt, len(failures))

	e.log.WithFields(logrus.Fields{
		"checkout_id":  c.ID,
		"order_id":     order.ID,
		"rooms_failed": len(failures),
	}).Info("checkout finalized")
	return order, nil
}

// finalizeTx runs finalization proper: caller holds the row lock and
// the transaction. Room allocations run under savepoints so one exhausted
// room is reported without rolling back the order or sibling rooms.
func (e *Engine) finalizeTx(ctx context.Context, tx *sql.Tx, c *model.Checkout, paidAt time.Time) (*model.Order, []roomFailure, error) {
	order := &model.Order{
		CheckoutID:          c.ID,
		UserID:              c.UserID,
		EventID:             c.EventID,
		Status:              model.OrderActive,
		Currency:            c.Currency,
		AmountTotalCents:    c.AmountTotalCents,
		RegisteredPlayerIDs: c.SelectedPlayerIDs,
		InstallmentsTotal:   c.InstallmentCount,
		InstallmentsPaid:    1, // the session charge settles the first installment
		InstallmentCents:    c.InstallmentCents,
	}
	if c.InstallmentCount <= 1 {
		order.Status = model.OrderCompleted
	}
	if err := e.orders.CreateTx(ctx, tx, order); err != nil {
		return nil, nil, err
	}

	if c.WalletReservedCents > 0 {
		err := e.wallets.ConfirmTx(ctx, tx, c.UserID, c.WalletReservedCents, c.Reference)
		if errors.Is(err, repository.ErrReservationNotFound) {
			// Already confirmed by an earlier attempt; harmless.
			e.log.WithField("checkout_id", c.ID).Debug("wallet reservation already settled")
		} else if err != nil {
			return nil, nil, err
		}
	}

	var failures []roomFailure
	for i, sel := range c.RoomSnapshot {
		sp := fmt.Sprintf("room_alloc_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return nil, nil, err
		}
		if _, err := e.rooms.AllocateTx(ctx, tx, c.UserID, &order.ID, sel); err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return nil, nil, rbErr
			}
			failures = append(failures, roomFailure{index: i, roomID: sel.RoomID, err: err})
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return nil, nil, err
		}
	}

	for _, playerID := range c.SelectedPlayerIDs {
		if _, err := e.attendance.GetOrCreateTx(ctx, tx, c.EventID, playerID, order.ID); err != nil {
			return nil, nil, err
		}
	}

	if err := e.checkouts.MarkPaidTx(ctx, tx, c.ID, paidAt); err != nil {
		return nil, nil, err
	}
	return order, failures, nil
}

// scheduleRemaining creates the recurring schedule for the installments
// after the first. Runs post-commit; a failure here is a discrepancy,
// not a rollback.
func (e *Engine) scheduleRemaining(ctx context.Context, c *model.Checkout, order *model.Order, subscriptionID string) {
	if c.Mode != model.ModeInstallmentPlan || c.InstallmentCount <= 1 {
		return
	}
	if subscriptionID == "" {
		_ = e.discrepancies.Record(ctx, model.DiscrepancyScheduleFailed, &c.ID, &order.ID,
			"installment checkout paid but gateway sent no subscription id")
		return
	}
	if err := e.checkouts.SetSubscriptionID(ctx, c.ID, subscriptionID); err != nil {
		e.log.WithError(err).WithField("checkout_id", c.ID).Error("persisting subscription id failed")
	}
	remaining := c.InstallmentCount - 1
	scheduleID, err := e.gw.CreateRecurringSchedule(ctx, subscriptionID, c.InstallmentCents, remaining)
	if err != nil {
		_ = e.discrepancies.Record(ctx, model.DiscrepancyScheduleFailed, &c.ID, &order.ID,
			fmt.Sprintf("creating recurring schedule on subscription %s failed: %v", subscriptionID, err))
		return
	}
	e.log.WithFields(logrus.Fields{
		"checkout_id": c.ID,
		"schedule_id": scheduleID,
		"iterations":  remaining,
	}).Info("recurring schedule created")
}

func (e *Engine) publishFinalized(ctx context.Context, c *model.Checkout, order *model.Order, paidAt time.Time, roomsFailed int) {
	if e.publisher == nil {
		return
	}
	ev := queue.OrderFinalizedEvent{
		OrderID:          order.ID,
		CheckoutID:       c.ID,
		Reference:        c.Reference,
		UserID:           c.UserID,
		EventID:          c.EventID,
		Mode:             string(c.Mode),
		Currency:         c.Currency,
		AmountTotalCents: c.AmountTotalCents,
		PlayerCount:      len(c.SelectedPlayerIDs),
		RoomsAllocated:   len(c.RoomSnapshot) - roomsFailed,
		RoomsFailed:      roomsFailed,
		FinalizedAt:      paidAt.Format(time.RFC3339),
	}
	if err := e.publisher.PublishOrderFinalized(ctx, ev); err != nil {
		e.log.WithError(err).Warn("publishing order.finalized failed")
	}
}

// MarkCancelled compensates a checkout the gateway reports cancelled:
// the wallet reservation, if any, is released and the checkout reaches
// its terminal CANCELLED status. Safe to replay.
func (e *Engine) MarkCancelled(ctx context.Context, sessionID string) error {
	return e.terminate(ctx, sessionID, model.CheckoutCancelled)
}

func (e *Engine) terminate(ctx context.Context, sessionID string, status model.CheckoutStatus) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	c, err := e.checkouts.LockBySessionTx(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			e.log.WithField("session_id", sessionID).Warn("terminal signal for unknown session")
			return nil
		}
		return err
	}
	if c.Status.Terminal() {
		// Duplicate or racing signal; the first terminal status wins.
		e.log.WithFields(logrus.Fields{"checkout_id": c.ID, "status": c.Status}).
			Debug("terminal signal ignored")
		return nil
	}
	if err := e.compensateTx(ctx, tx, c); err != nil {
		return err
	}
	if err := e.checkouts.SetTerminalTx(ctx, tx, c.ID, status); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	e.log.WithFields(logrus.Fields{"checkout_id": c.ID, "status": status}).Info("checkout closed")
	return nil
}

// compensateTx releases the wallet reservation of an unpaid checkout.
// An already-settled reservation is a no-op.
func (e *Engine) compensateTx(ctx context.Context, tx *sql.Tx, c *model.Checkout) error {
	if c.WalletReservedCents == 0 {
		return nil
	}
	err := e.wallets.ReleaseTx(ctx, tx, c.UserID, c.WalletReservedCents, c.Reference)
	if errors.Is(err, repository.ErrReservationNotFound) {
		e.log.WithField("checkout_id", c.ID).Debug("wallet reservation already settled")
		return nil
	}
	return err
}

// Status returns the checkout's current state, reconciling it first:
// a stale CREATED checkout is swept to EXPIRED (with compensation), and
// an unexpired one is checked against the gateway so the success-redirect
// path works even when the webhook is delayed. There is no background
// sweeper; reconciliation happens on observation.
func (e *Engine) Status(ctx context.Context, checkoutID, userID uint64) (*model.Checkout, error) {
	c, err := e.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if c.Status != model.CheckoutCreated {
		return c, nil
	}

	ttl := time.Duration(e.cfg.CheckoutTTLMin) * time.Minute
	if e.now().After(c.CreatedAt.Add(ttl)) {
		if err := e.terminate(ctx, c.ExternalSessionID, model.CheckoutExpired); err != nil {
			return nil, err
		}
		return e.checkouts.GetByID(ctx, checkoutID)
	}

	// Poll the gateway outside any lock; apply the result through the
	// same idempotent transitions the webhook uses.
	state, err := e.gw.RetrieveSession(ctx, c.ExternalSessionID)
	if err != nil {
		e.log.WithError(err).WithField("checkout_id", c.ID).Warn("gateway poll failed")
		return c, nil // report local state; webhook will catch up
	}
	switch {
	case state.Paid:
		if _, err := e.MarkPaid(ctx, c.ExternalSessionID, state.SubscriptionID); err != nil {
			return nil, err
		}
	case state.Cancelled:
		if err := e.MarkCancelled(ctx, c.ExternalSessionID); err != nil {
			return nil, err
		}
	default:
		return c, nil
	}
	return e.checkouts.GetByID(ctx, checkoutID)
}

// RecordInstallmentPaid advances the installment counter for the order
// behind a gateway subscription. The invoice id keys the increment, so
// a replayed invoice webhook is a no-op.
func (e *Engine) RecordInstallmentPaid(ctx context.Context, subscriptionID, invoiceID string) error {
	c, err := e.checkouts.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			e.log.WithField("subscription_id", subscriptionID).Warn("invoice for unknown subscription")
			_ = e.discrepancies.Record(ctx, model.DiscrepancyUnknownReference, nil, nil,
				fmt.Sprintf("invoice.paid for unknown subscription %s", subscriptionID))
			return nil
		}
		return err
	}
	order, err := e.orders.GetByCheckoutID(ctx, c.ID)
	if err != nil {
		return err
	}
	err = e.orders.RecordInstallmentPaid(ctx, order.ID, invoiceID)
	if errors.Is(err, repository.ErrConflict) {
		e.log.WithFields(logrus.Fields{"order_id": order.ID, "invoice_id": invoiceID}).
			Debug("installment already counted")
		return nil
	}
	return err
}

// AbandonSubscription marks the order behind a lapsed gateway
// subscription as ABANDONED.
func (e *Engine) AbandonSubscription(ctx context.Context, subscriptionID string) error {
	c, err := e.checkouts.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			e.log.WithField("subscription_id", subscriptionID).Warn("cancel for unknown subscription")
			return nil
		}
		return err
	}
	order, err := e.orders.GetByCheckoutID(ctx, c.ID)
	if err != nil {
		return err
	}
	err = e.orders.MarkAbandoned(ctx, order.ID)
	if errors.Is(err, repository.ErrConflict) {
		e.log.WithField("order_id", order.ID).Debug("order already closed")
		return nil
	}
	return err
}

// Schedule projects the installment calendar for an order from its
// bookkeeping counters and the checkout's payment anchor. Nothing is
// read from persisted per-installment rows because none exist.
func (e *Engine) Schedule(ctx context.Context, orderID, userID uint64) ([]plan.Installment, error) {
	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrForbidden
	}
	c, err := e.checkouts.GetByID(ctx, order.CheckoutID)
	if err != nil {
		return nil, err
	}
	if c.PaidAt == nil {
		return nil, repository.ErrConflict
	}
	p := plan.Plan{
		Count:     order.InstallmentsTotal,
		PerCents:  order.InstallmentCents,
		LastCents: order.AmountTotalCents - order.InstallmentCents*int64(order.InstallmentsTotal-1),
	}
	return plan.Schedule(*c.PaidAt, p, order.InstallmentsPaid), nil
}
