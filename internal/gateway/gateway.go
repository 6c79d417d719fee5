// Package gateway talks to the external payment processor. The engine
// depends on the Gateway interface only; Client is the HTTP
// implementation and tests substitute fakes. All calls happen outside
// database locks: at checkout creation, or after finalization commits.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnreachable is returned when the gateway cannot be reached or
// answers with a server error. Callers retry with backoff; the local
// state machine never advances on it.
var ErrUnreachable = errors.New("payment gateway unreachable")

// SessionRequest describes the payment session to open. For installment
// checkouts the gateway charges InstallmentCents immediately and the
// remaining schedule is created separately after finalization.
type SessionRequest struct {
	Reference        string `json:"reference"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	Mode             string `json:"mode"`
	InstallmentCents int64  `json:"installment_cents,omitempty"`
}

// Session is an opened gateway session the customer is redirected to.
type Session struct {
	ID          string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// SessionState is the gateway's view of a session, polled on the
// success-redirect path when the webhook has not arrived yet.
type SessionState struct {
	Paid           bool   `json:"paid"`
	Cancelled      bool   `json:"cancelled"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// Gateway is the collaborator surface the checkout engine consumes.
type Gateway interface {
	OpenSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionState, error)
	CancelSession(ctx context.Context, sessionID string) error
	CreateRecurringSchedule(ctx context.Context, subscriptionID string, amountCents int64, remaining int) (string, error)
}

// Client is the HTTP Gateway implementation. Authentication is a static
// bearer key; payloads are JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client for the given gateway endpoint.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(raw)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited, retry after %s", ErrUnreachable, resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("gateway rejected %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OpenSession opens a payment session and returns its id and redirect URL.
func (c *Client) OpenSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RetrieveSession fetches the current state of a session.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*SessionState, error) {
	var st SessionState
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CancelSession voids a session that was opened but will never be paid,
// for example when the local checkout insert failed after OpenSession.
func (c *Client) CancelSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
}

// CreateRecurringSchedule asks the gateway to charge amountCents
// remaining more times on the subscription's monthly anchor and returns
// the schedule id.
func (c *Client) CreateRecurringSchedule(ctx context.Context, subscriptionID string, amountCents int64, remaining int) (string, error) {
	req := struct {
		AmountCents int64 `json:"amount_cents"`
		Iterations  int   `json:"iterations"`
	}{AmountCents: amountCents, Iterations: remaining}
	var out struct {
		ScheduleID string `json:"schedule_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionID+"/schedule", req, &out); err != nil {
		return "", err
	}
	return out.ScheduleID, nil
}
