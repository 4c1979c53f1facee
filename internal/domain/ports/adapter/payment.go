package adapter

import (
	"context"

	"bigdaytimer-premium/internal/domain/model"
)

// PayLinkRequest is what the checkout use case asks a provider for.
type PayLinkRequest struct {
	Plan        model.Plan
	Passthrough string // JSON token the provider must echo back unmodified
	ReturnURL   string
	Email       string
}

// CheckoutProvider is the hex port for payment providers that issue hosted
// checkout links.
type CheckoutProvider interface {
	Name() string
	// Mock reports whether the provider fabricates links without calling out.
	Mock() bool
	// CreatePayLink returns the URL the customer is sent to. Failures are
	// returned as *domain.ProviderError.
	CreatePayLink(ctx context.Context, req PayLinkRequest) (string, error)
}

// WebhookVerifier authenticates a raw webhook body. It must not interpret the
// body beyond locating the signature. Any failure wraps domain.ErrUnauthorized.
type WebhookVerifier interface {
	Verify(body []byte, signature string) error
}
