package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhautala/sportsreg/internal/gateway"
	"github.com/jmhautala/sportsreg/internal/model"
)

const testSecret = "whsec-test"

// fakeEngine records which transitions the webhook handler invoked.
type fakeEngine struct {
	paidSessions      []string
	paidSubs          []string
	cancelledSessions []string
	invoiceSubs       []string
	invoiceIDs        []string
	abandonedSubs     []string
	err               error
}

func (f *fakeEngine) MarkPaid(_ context.Context, sessionID, subscriptionID string) (*model.Order, error) {
	f.paidSessions = append(f.paidSessions, sessionID)
	f.paidSubs = append(f.paidSubs, subscriptionID)
	return nil, f.err
}

func (f *fakeEngine) MarkCancelled(_ context.Context, sessionID string) error {
	f.cancelledSessions = append(f.cancelledSessions, sessionID)
	return f.err
}

func (f *fakeEngine) RecordInstallmentPaid(_ context.Context, subscriptionID, invoiceID string) error {
	f.invoiceSubs = append(f.invoiceSubs, subscriptionID)
	f.invoiceIDs = append(f.invoiceIDs, invoiceID)
	return f.err
}

func (f *fakeEngine) AbandonSubscription(_ context.Context, subscriptionID string) error {
	f.abandonedSubs = append(f.abandonedSubs, subscriptionID)
	return f.err
}

func deliver(t *testing.T, h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Gateway-Signature", signature)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	return rec
}

func signed(t *testing.T, v any) (string, string) {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return string(body), gateway.Sign(testSecret, body)
}

func TestWebhookSessionPaid(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":            gateway.EventSessionPaid,
		"session_id":      "sess-1",
		"subscription_id": "sub-1",
	})
	rec := deliver(t, h, body, sig)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fe.paidSessions, 1)
	assert.Equal(t, "sess-1", fe.paidSessions[0])
	assert.Equal(t, "sub-1", fe.paidSubs[0])
}

func TestWebhookSessionCancelled(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":       gateway.EventSessionCancelled,
		"session_id": "sess-2",
	})
	rec := deliver(t, h, body, sig)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sess-2"}, fe.cancelledSessions)
}

func TestWebhookInvoicePaid(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":            gateway.EventInvoicePaid,
		"subscription_id": "sub-9",
		"invoice_id":      "inv-42",
	})
	rec := deliver(t, h, body, sig)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sub-9"}, fe.invoiceSubs)
	assert.Equal(t, []string{"inv-42"}, fe.invoiceIDs)
}

func TestWebhookInvoicePaidMissingInvoiceID(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":            gateway.EventInvoicePaid,
		"subscription_id": "sub-9",
	})
	rec := deliver(t, h, body, sig)

	// Without an invoice id the increment cannot be deduplicated, so
	// the delivery is rejected instead of counted.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fe.invoiceSubs)
}

func TestWebhookSubscriptionCancelled(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":            gateway.EventSubscriptionCancelled,
		"subscription_id": "sub-3",
	})
	rec := deliver(t, h, body, sig)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sub-3"}, fe.abandonedSubs)
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, _ := signed(t, map[string]string{
		"type":       gateway.EventSessionPaid,
		"session_id": "sess-1",
	})
	rec := deliver(t, h, body, "deadbeef")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fe.paidSessions, "unverified payload must not reach the engine")
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":       gateway.EventSessionPaid,
		"session_id": "sess-1",
	})
	tampered := strings.Replace(body, "sess-1", "sess-2", 1)
	rec := deliver(t, h, tampered, sig)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fe.paidSessions)
}

func TestWebhookMissingSessionID(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{"type": gateway.EventSessionPaid})
	rec := deliver(t, h, body, sig)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fe.paidSessions)
}

func TestWebhookUnknownTypeAcknowledged(t *testing.T) {
	fe := &fakeEngine{}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{"type": "charge.disputed"})
	rec := deliver(t, h, body, sig)

	// Unknown types must be acked or the gateway retries them forever.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fe.paidSessions)
	assert.Empty(t, fe.cancelledSessions)
}

func TestWebhookEngineFailureTriggersRetry(t *testing.T) {
	fe := &fakeEngine{err: errors.New("deadlock")}
	h := NewWebhookHandler(fe, testSecret)

	body, sig := signed(t, map[string]string{
		"type":       gateway.EventSessionPaid,
		"session_id": "sess-1",
	})
	rec := deliver(t, h, body, sig)

	// A 5xx tells the gateway to redeliver; transitions are idempotent.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
