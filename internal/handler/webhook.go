package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/jmhautala/sportsreg/internal/gateway"
	"github.com/jmhautala/sportsreg/internal/model"
)

// PaymentEngine is the slice of the checkout engine the webhook needs.
// Taking an interface keeps the handler testable without a database.
type PaymentEngine interface {
	MarkPaid(ctx context.Context, sessionID, subscriptionID string) (*model.Order, error)
	MarkCancelled(ctx context.Context, sessionID string) error
	RecordInstallmentPaid(ctx context.Context, subscriptionID, invoiceID string) error
	AbandonSubscription(ctx context.Context, subscriptionID string) error
}

// WebhookHandler receives gateway callbacks. Signature verification
// happens against the raw body before anything is decoded; replayed
// deliveries return 200 so the gateway stops retrying, while
// unverifiable ones return 4xx and are never acted on.
type WebhookHandler struct {
	Engine PaymentEngine
	Secret string
	log    *logrus.Entry
}

// NewWebhookHandler constructs a WebhookHandler verifying signatures
// with the given shared secret.
func NewWebhookHandler(engine PaymentEngine, secret string) *WebhookHandler {
	if engine == nil {
		panic("nil engine passed to NewWebhookHandler")
	}
	return &WebhookHandler{
		Engine: engine,
		Secret: secret,
		log:    logrus.WithField("component", "webhook"),
	}
}

// Handle processes POST /v1/payments/webhook.
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	ev, err := gateway.ParseWebhook(h.Secret, c.Request().Header.Get("X-Gateway-Signature"), body)
	if err != nil {
		if errors.Is(err, gateway.ErrBadSignature) {
			h.log.Warn("webhook signature mismatch")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "bad signature"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad payload"})
	}

	ctx := c.Request().Context()
	switch ev.Type {
	case gateway.EventSessionPaid:
		if ev.SessionID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
		}
		_, err = h.Engine.MarkPaid(ctx, ev.SessionID, ev.SubscriptionID)
	case gateway.EventSessionCancelled:
		if ev.SessionID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
		}
		err = h.Engine.MarkCancelled(ctx, ev.SessionID)
	case gateway.EventInvoicePaid:
		if ev.SubscriptionID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "subscription_id is required"})
		}
		if ev.InvoiceID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice_id is required"})
		}
		err = h.Engine.RecordInstallmentPaid(ctx, ev.SubscriptionID, ev.InvoiceID)
	case gateway.EventSubscriptionCancelled:
		if ev.SubscriptionID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "subscription_id is required"})
		}
		err = h.Engine.AbandonSubscription(ctx, ev.SubscriptionID)
	default:
		// Unknown event types are acknowledged so the gateway does not
		// retry types this service never handles.
		h.log.WithField("type", ev.Type).Debug("ignoring unhandled webhook type")
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}
	if err != nil {
		// A 500 makes the gateway redeliver; every transition is
		// idempotent so redelivery is safe.
		h.log.WithError(err).WithField("type", ev.Type).Error("webhook processing failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "processed"})
}
