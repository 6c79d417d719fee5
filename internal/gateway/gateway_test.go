package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhautala/sportsreg/internal/gateway"
)

func TestClient_OpenSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req gateway.SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "chk-1", req.Reference)
		assert.Equal(t, int64(24840), req.AmountCents)

		json.NewEncoder(w).Encode(gateway.Session{ID: "sess-42", RedirectURL: "https://pay.example/sess-42"})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "test-key")
	s, err := c.OpenSession(context.Background(), gateway.SessionRequest{
		Reference: "chk-1", AmountCents: 24840, Currency: "EUR", Mode: "PAY_NOW",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-42", s.ID)
	assert.Equal(t, "https://pay.example/sess-42", s.RedirectURL)
}

func TestClient_RetrieveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/sess-42", r.URL.Path)
		json.NewEncoder(w).Encode(gateway.SessionState{Paid: true, SubscriptionID: "sub-7"})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "test-key")
	st, err := c.RetrieveSession(context.Background(), "sess-42")
	require.NoError(t, err)
	assert.True(t, st.Paid)
	assert.Equal(t, "sub-7", st.SubscriptionID)
}

func TestClient_CancelSession(t *testing.T) {
	var cancelled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/sessions/sess-42", r.URL.Path)
		cancelled = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "test-key")
	require.NoError(t, c.CancelSession(context.Background(), "sess-42"))
	assert.True(t, cancelled)
}

func TestClient_CreateRecurringSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub-7/schedule", r.URL.Path)
		var req struct {
			AmountCents int64 `json:"amount_cents"`
			Iterations  int   `json:"iterations"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(10000), req.AmountCents)
		assert.Equal(t, 2, req.Iterations)
		json.NewEncoder(w).Encode(map[string]string{"schedule_id": "sched-1"})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "test-key")
	id, err := c.CreateRecurringSchedule(context.Background(), "sub-7", 10000, 2)
	require.NoError(t, err)
	assert.Equal(t, "sched-1", id)
}

func TestClient_ServerErrorsAreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "test-key")
	_, err := c.RetrieveSession(context.Background(), "sess-42")
	assert.ErrorIs(t, err, gateway.ErrUnreachable)
}

func TestClient_RateLimitIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "test-key")
	_, err := c.OpenSession(context.Background(), gateway.SessionRequest{Reference: "chk-1"})
	assert.ErrorIs(t, err, gateway.ErrUnreachable)
}

func TestParseWebhook(t *testing.T) {
	secret := "whsec"
	body := []byte(`{"type":"session.paid","session_id":"sess-42","subscription_id":"sub-7"}`)

	t.Run("valid signature decodes", func(t *testing.T) {
		ev, err := gateway.ParseWebhook(secret, gateway.Sign(secret, body), body)
		require.NoError(t, err)
		assert.Equal(t, gateway.EventSessionPaid, ev.Type)
		assert.Equal(t, "sess-42", ev.SessionID)
		assert.Equal(t, "sub-7", ev.SubscriptionID)
	})

	t.Run("wrong signature is rejected", func(t *testing.T) {
		_, err := gateway.ParseWebhook(secret, gateway.Sign("other", body), body)
		assert.ErrorIs(t, err, gateway.ErrBadSignature)
	})

	t.Run("tampered body is rejected", func(t *testing.T) {
		sig := gateway.Sign(secret, body)
		tampered := []byte(`{"type":"session.paid","session_id":"sess-43"}`)
		_, err := gateway.ParseWebhook(secret, sig, tampered)
		assert.ErrorIs(t, err, gateway.ErrBadSignature)
	})

	t.Run("garbage body with valid signature is bad payload", func(t *testing.T) {
		garbage := []byte(`not json`)
		_, err := gateway.ParseWebhook(secret, gateway.Sign(secret, garbage), garbage)
		assert.ErrorIs(t, err, gateway.ErrBadPayload)
	})

	t.Run("missing type is bad payload", func(t *testing.T) {
		empty := []byte(`{}`)
		_, err := gateway.ParseWebhook(secret, gateway.Sign(secret, empty), empty)
		assert.ErrorIs(t, err, gateway.ErrBadPayload)
	})
}
