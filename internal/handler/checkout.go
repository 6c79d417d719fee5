package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmhautala/sportsreg/internal/checkout"
	"github.com/jmhautala/sportsreg/internal/gateway"
	"github.com/jmhautala/sportsreg/internal/model"
	"github.com/jmhautala/sportsreg/internal/pricing"
	"github.com/jmhautala/sportsreg/internal/repository"
)

// CheckoutHandler exposes checkout creation and observation plus the
// order read endpoints. All state transitions go through the engine;
// this handler only binds, authorizes and shapes responses.
type CheckoutHandler struct {
	Engine *checkout.Engine
	Orders *repository.OrderRepo
	Rooms  *repository.RoomRepo
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(engine *checkout.Engine, orders *repository.OrderRepo, rooms *repository.RoomRepo) *CheckoutHandler {
	if engine == nil || orders == nil || rooms == nil {
		panic("nil dependency passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Engine: engine, Orders: orders, Rooms: rooms}
}

// checkoutView shapes a checkout for API responses.
func checkoutView(c *model.Checkout) echo.Map {
	return echo.Map{
		"id":                    c.ID,
		"reference":             c.Reference,
		"event_id":              c.EventID,
		"mode":                  c.Mode,
		"status":                c.Status,
		"currency":              c.Currency,
		"amount_total_cents":    c.AmountTotalCents,
		"wallet_reserved_cents": c.WalletReservedCents,
		"breakdown":             c.Breakdown,
		"player_ids":            c.SelectedPlayerIDs,
		"rooms":                 c.RoomSnapshot,
		"installment_count":     c.InstallmentCount,
		"installment_cents":     c.InstallmentCents,
		"paid_at":               c.PaidAt,
		"created_at":            c.CreatedAt,
	}
}

// Create handles POST /v1/checkouts. The body names the event, the
// players to register, the checkout mode, an optional wallet-funded
// portion and an optional list of room selections. On success it returns
// 201 with the checkout and the gateway redirect URL.
func (h *CheckoutHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		EventID     uint64                `json:"event_id"`
		Mode        string                `json:"mode"`
		PlayerIDs   []uint64              `json:"player_ids"`
		Rooms       []model.RoomSelection `json:"rooms"`
		WalletCents int64                 `json:"wallet_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || len(body.PlayerIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and player_ids are required"})
	}
	mode := model.CheckoutMode(body.Mode)
	if mode != model.ModePayNow && mode != model.ModeInstallmentPlan {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "mode must be PAY_NOW or INSTALLMENT_PLAN"})
	}
	if body.WalletCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "wallet_cents must not be negative"})
	}
	res, err := h.Engine.Create(c.Request().Context(), checkout.CreateInput{
		UserID:      userID,
		EventID:     body.EventID,
		Mode:        mode,
		PlayerIDs:   body.PlayerIDs,
		Rooms:       body.Rooms,
		WalletCents: body.WalletCents,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnreachable) {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
		}
		if errors.Is(err, pricing.ErrInvalidStay) || errors.Is(err, pricing.ErrInvalidOccupancy) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"checkout":     checkoutView(res.Checkout),
		"redirect_url": res.RedirectURL,
	})
}

// Get handles GET /v1/checkouts/:id. Reading a checkout reconciles it:
// a stale unpaid checkout expires on this read, and an unexpired one is
// checked against the gateway so the post-payment redirect sees PAID
// even when the webhook has not landed yet.
func (h *CheckoutHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ck, err := h.Engine.Status(c.Request().Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, checkoutView(ck))
}

// ListOrders handles GET /v1/orders and returns the caller's orders.
func (h *CheckoutHandler) ListOrders(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.Orders.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": orders})
}

// GetOrder handles GET /v1/orders/:id. It returns the order together
// with its room reservations and guests.
func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	order, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if order.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	reservations, err := h.Rooms.ListByOrder(ctx, order.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order":        order,
		"reservations": reservations,
	})
}

// GetSchedule handles GET /v1/orders/:id/schedule. The schedule is a
// projection computed from the order's counters and the payment date;
// it returns 409 for orders whose checkout never reached PAID.
func (h *CheckoutHandler) GetSchedule(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	installments, err := h.Engine.Schedule(c.Request().Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"installments": installments})
}
