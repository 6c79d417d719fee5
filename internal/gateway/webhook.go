package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Webhook event types delivered by the gateway. Delivery is
// at-least-once and unordered; consumers must be idempotent.
const (
	EventSessionPaid           = "session.paid"
	EventSessionCancelled      = "session.cancelled"
	EventInvoicePaid           = "invoice.paid"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// ErrBadSignature is returned for payloads whose HMAC does not verify.
// These must be rejected with a 4xx so the gateway stops retrying them.
var ErrBadSignature = errors.New("webhook signature mismatch")

// ErrBadPayload is returned for syntactically invalid webhook bodies.
var ErrBadPayload = errors.New("webhook payload invalid")

// WebhookEvent is the decoded, verified webhook payload. InvoiceID
// identifies the individual charge behind an invoice.paid delivery and
// is the idempotency key for installment counting.
type WebhookEvent struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	InvoiceID      string `json:"invoice_id,omitempty"`
}

// Sign computes the hex HMAC-SHA256 of body under secret. Exposed so
// tests and the fake gateway produce real signatures.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook verifies the signature header against the raw body and
// decodes the event. Verification happens before any JSON parsing so a
// forged payload never reaches the decoder.
func ParseWebhook(secret, signature string, body []byte) (*WebhookEvent, error) {
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadSignature
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, ErrBadPayload
	}
	if ev.Type == "" {
		return nil, ErrBadPayload
	}
	return &ev, nil
}
