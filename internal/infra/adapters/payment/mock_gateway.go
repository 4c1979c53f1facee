package payment

import (
	"context"
	"net/url"

	"bigdaytimer-premium/internal/config"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/adapter"
)

var _ adapter.CheckoutProvider = (*MockGateway)(nil)

const (
	mockVendorID         = "12345"
	mockPremiumProductID = "67890"
	mockBasicProductID   = "11111"
)

// MockGateway fabricates checkout URLs without calling the provider. It is
// only for development; the checkout use case refuses it in production.
type MockGateway struct {
	vendorID string
	baseURL  string
	products map[model.Plan]string
}

func NewMockGateway(cfg config.PaddleConfig) *MockGateway {
	g := &MockGateway{
		vendorID: cfg.VendorID,
		baseURL:  cfg.CheckoutBaseURL,
		products: map[model.Plan]string{
			model.PlanPremium: cfg.PremiumProductID,
			model.PlanBasic:   cfg.BasicProductID,
		},
	}
	if g.vendorID == "" {
		g.vendorID = mockVendorID
	}
	if g.baseURL == "" {
		g.baseURL = "https://checkout.paddle.com/checkout"
	}
	if g.products[model.PlanPremium] == "" {
		g.products[model.PlanPremium] = mockPremiumProductID
	}
	if g.products[model.PlanBasic] == "" {
		g.products[model.PlanBasic] = mockBasicProductID
	}
	return g
}

func (g *MockGateway) Name() string { return "mock" }
func (g *MockGateway) Mock() bool   { return true }

// CreatePayLink returns base?vendor=..&product=..&passthrough=.. built from
// the request alone, so the same request always yields the same URL.
func (g *MockGateway) CreatePayLink(ctx context.Context, req adapter.PayLinkRequest) (string, error) {
	productID, err := productFor(g.products, req.Plan)
	if err != nil {
		return "", err
	}
	return g.baseURL + "?vendor=" + url.QueryEscape(g.vendorID) +
		"&product=" + url.QueryEscape(productID) +
		"&passthrough=" + url.QueryEscape(req.Passthrough), nil
}
