package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jmhautala/sportsreg/internal/repository"
)

// WalletHandler exposes the prepaid wallet: the customer-facing summary
// and statement, and the admin operations that move settled funds
// (deposit, withdraw, refund) plus the ledger integrity audit.
type WalletHandler struct {
	Wallets *repository.WalletRepo
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(wallets *repository.WalletRepo) *WalletHandler {
	if wallets == nil {
		panic("nil repository passed to NewWalletHandler")
	}
	return &WalletHandler{Wallets: wallets}
}

// Summary handles GET /v1/wallet. It returns the caller's balances and
// full statement, creating the account lazily on first access.
func (h *WalletHandler) Summary(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	acc, err := h.Wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	entries, err := h.Wallets.Entries(ctx, acc.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"balance_cents":   acc.BalanceCents,
		"pending_cents":   acc.PendingCents,
		"available_cents": acc.AvailableCents(),
		"entries":         entries,
	})
}

// fundsRequest is the body shared by the admin funds operations. The
// reference doubles as the idempotency key through the ledger's unique
// (account, reference, kind) index; when the caller omits it one is
// generated and the operation is applied once.
type fundsRequest struct {
	userID      uint64
	amountCents int64
	reference   string
}

func bindFunds(c echo.Context) (fundsRequest, error) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		return fundsRequest{}, err
	}
	var body struct {
		AmountCents int64  `json:"amount_cents"`
		Reference   string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil || body.AmountCents <= 0 {
		return fundsRequest{}, errors.New("positive amount_cents is required")
	}
	if body.Reference == "" {
		body.Reference = "adm-" + uuid.NewString()
	}
	return fundsRequest{userID: userID, amountCents: body.AmountCents, reference: body.Reference}, nil
}

// Deposit handles POST /v1/admin/wallet/:user_id/deposit. Credits
// settled funds to a user's wallet. Replays with the same reference
// return 409.
func (h *WalletHandler) Deposit(c echo.Context) error {
	req, err := bindFunds(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Wallets.Deposit(c.Request().Context(), req.userID, req.amountCents, req.reference); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"reference": req.reference})
}

// Withdraw handles POST /v1/admin/wallet/:user_id/withdraw. Debits
// settled funds; the reserved portion can never be withdrawn.
func (h *WalletHandler) Withdraw(c echo.Context) error {
	req, err := bindFunds(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Wallets.Withdraw(c.Request().Context(), req.userID, req.amountCents, req.reference); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"reference": req.reference})
}

// Refund handles POST /v1/admin/wallet/:user_id/refund. Credits funds
// back after a refund settled outside the wallet.
func (h *WalletHandler) Refund(c echo.Context) error {
	req, err := bindFunds(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Wallets.Refund(c.Request().Context(), req.userID, req.amountCents, req.reference); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"reference": req.reference})
}

// Audit handles GET /v1/admin/wallet/:user_id/audit. It replays the
// user's ledger and returns the integrity report; a mismatch is reported
// with the same 200, never repaired.
func (h *WalletHandler) Audit(c echo.Context) error {
	userID, err := pathID(c, "user_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	report, err := h.Wallets.VerifyIntegrity(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet not found"})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"report": report,
		"ok":     report.OK(),
	})
}
