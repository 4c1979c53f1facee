package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStatus is the body of /premium-status and /payment-status.
type RemoteStatus struct {
	UserID       string     `json:"userId"`
	IsPremium    bool       `json:"isPremium"`
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`
	OrderID      string     `json:"orderId,omitempty"`
	LastChecked  string     `json:"lastChecked,omitempty"`
}

// StatusAPI is the network side of the client.
type StatusAPI interface {
	PremiumStatus(ctx context.Context, userID string) (*RemoteStatus, error)
	PaymentStatus(ctx context.Context, userID string) (*RemoteStatus, error)
	CreateCheckout(ctx context.Context, userID, plan, returnURL string) (string, error)
}

// HTTPStatusAPI talks to the entitlement service over HTTP.
type HTTPStatusAPI struct {
	base   string
	client *http.Client
}

func NewHTTPStatusAPI(base string, timeout time.Duration) *HTTPStatusAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStatusAPI{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("premium api: http %d", e.Status)
	}
	return fmt.Sprintf("premium api: http %d: %s", e.Status, e.Message)
}

func (a *HTTPStatusAPI) PremiumStatus(ctx context.Context, userID string) (*RemoteStatus, error) {
	return a.status(ctx, "/premium-status/", userID)
}

func (a *HTTPStatusAPI) PaymentStatus(ctx context.Context, userID string) (*RemoteStatus, error) {
	return a.status(ctx, "/payment-status/", userID)
}

func (a *HTTPStatusAPI) status(ctx context.Context, prefix, userID string) (*RemoteStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+prefix+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	var out RemoteStatus
	if err := a.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPStatusAPI) CreateCheckout(ctx context.Context, userID, plan, returnURL string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"userId":    userID,
		"plan":      plan,
		"returnUrl": returnURL,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/create-checkout", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var out struct {
		CheckoutURL string `json:"checkoutUrl"`
	}
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	if out.CheckoutURL == "" {
		return "", fmt.Errorf("premium api: empty checkout url")
	}
	return out.CheckoutURL, nil
}

func (a *HTTPStatusAPI) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(b, &e)
		msg := e.Error
		if e.Message != "" {
			msg += ": " + e.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("premium api: decode response: %w", err)
	}
	return nil
}
