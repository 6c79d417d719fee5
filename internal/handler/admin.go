package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jmhautala/sportsreg/internal/model"
	"github.com/jmhautala/sportsreg/internal/repository"
)

// AdminHandler covers catalog management (events, rooms, inventory) and
// the discrepancy review endpoints.
type AdminHandler struct {
	Events        *repository.EventRepo
	Rooms         *repository.RoomRepo
	Discrepancies *repository.DiscrepancyRepo
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(events *repository.EventRepo, rooms *repository.RoomRepo, discrepancies *repository.DiscrepancyRepo) *AdminHandler {
	if events == nil || rooms == nil || discrepancies == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Events: events, Rooms: rooms, Discrepancies: discrepancies}
}

// CreateEvent handles POST /v1/admin/events. Dates use "2006-01-02".
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var body struct {
		Name            string `json:"name"`
		StartsOn        string `json:"starts_on"`
		RegistrationDue string `json:"registration_due"`
		FeeCents        int64  `json:"fee_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" || body.FeeCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and non-negative fee_cents are required"})
	}
	startsOn, err1 := time.Parse("2006-01-02", body.StartsOn)
	due, err2 := time.Parse("2006-01-02", body.RegistrationDue)
	if err1 != nil || err2 != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_on and registration_due must be YYYY-MM-DD"})
	}
	ev := &model.Event{
		Name:            body.Name,
		StartsOn:        startsOn,
		RegistrationDue: due,
		FeeCents:        body.FeeCents,
	}
	if err := h.Events.Create(c.Request().Context(), ev); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// ListEvents handles GET /v1/events (public).
func (h *AdminHandler) ListEvents(c echo.Context) error {
	events, err := h.Events.List(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// GetEvent handles GET /v1/events/:id (public).
func (h *AdminHandler) GetEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ev, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// ListEventRooms handles GET /v1/events/:id/rooms (public). Rooms are a
// shared hotel pool offered with every event; the event id is validated
// so dead links 404 rather than show bookable rooms.
func (h *AdminHandler) ListEventRooms(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	rooms, err := h.Rooms.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rooms})
}

// CreateRoom handles POST /v1/admin/rooms.
func (h *AdminHandler) CreateRoom(c echo.Context) error {
	var body struct {
		Name            string `json:"name"`
		NightlyCents    int64  `json:"nightly_cents"`
		IncludedGuests  int    `json:"included_guests"`
		MaxGuests       int    `json:"max_guests"`
		ExtraGuestCents int64  `json:"extra_guest_cents"`
		NightlyTaxCents int64  `json:"nightly_tax_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" || body.NightlyCents <= 0 || body.IncludedGuests < 1 || body.MaxGuests < body.IncludedGuests {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room attributes"})
	}
	room := &model.Room{
		Name:            body.Name,
		NightlyCents:    body.NightlyCents,
		IncludedGuests:  body.IncludedGuests,
		MaxGuests:       body.MaxGuests,
		ExtraGuestCents: body.ExtraGuestCents,
		NightlyTaxCents: body.NightlyTaxCents,
	}
	if err := h.Rooms.Create(c.Request().Context(), room); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// SetInventory handles POST /v1/admin/rooms/:id/inventory. It upserts
// the available counter for every night in [from, to).
func (h *AdminHandler) SetInventory(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		From      string `json:"from"`
		To        string `json:"to"`
		Available int    `json:"available"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	from, err1 := time.Parse("2006-01-02", body.From)
	to, err2 := time.Parse("2006-01-02", body.To)
	if err1 != nil || err2 != nil || !from.Before(to) || body.Available < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must precede to and available must not be negative"})
	}
	ctx := c.Request().Context()
	if _, err := h.Rooms.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Rooms.SetInventory(ctx, id, from, to, body.Available); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": id, "from": body.From, "to": body.To, "available": body.Available})
}

// ListDiscrepancies handles GET /v1/admin/discrepancies and returns the
// unresolved discrepancies oldest first.
func (h *AdminHandler) ListDiscrepancies(c echo.Context) error {
	items, err := h.Discrepancies.ListOpen(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ResolveDiscrepancy handles POST /v1/admin/discrepancies/:id/resolve.
func (h *AdminHandler) ResolveDiscrepancy(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Discrepancies.Resolve(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resolved": id})
}
