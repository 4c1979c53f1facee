// File: internal/infra/adapters/payment/paddle_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bigdaytimer-premium/internal/config"
	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/adapter"
)

var _ adapter.CheckoutProvider = (*PaddleGateway)(nil)

// PaddleGateway implements adapter.CheckoutProvider against the classic
// Paddle vendor API (product/generate_pay_link).
type PaddleGateway struct {
	vendorID   string
	authCode   string
	products   map[model.Plan]string
	prices     []string
	returnURL  string
	apiBaseURL string
	client     *http.Client
}

// NewPaddleGateway builds the gateway from the paddle config section.
func NewPaddleGateway(cfg config.PaddleConfig) (*PaddleGateway, error) {
	if cfg.VendorID == "" || cfg.VendorAuthCode == "" {
		return nil, errors.New("paddle vendor id and auth code are required")
	}
	if cfg.PremiumProductID == "" {
		return nil, errors.New("paddle premium product id is required")
	}
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid paddle api url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaddleGateway{
		vendorID: cfg.VendorID,
		authCode: cfg.VendorAuthCode,
		products: map[model.Plan]string{
			model.PlanPremium: cfg.PremiumProductID,
			model.PlanBasic:   cfg.BasicProductID,
		},
		prices:     cfg.Prices,
		returnURL:  cfg.ReturnURL,
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *PaddleGateway) Name() string { return "paddle" }
func (p *PaddleGateway) Mock() bool   { return false }

// CreatePayLink calls /product/generate_pay_link and returns the hosted
// checkout URL.
func (p *PaddleGateway) CreatePayLink(ctx context.Context, req adapter.PayLinkRequest) (string, error) {
	productID, err := productFor(p.products, req.Plan)
	if err != nil {
		return "", err
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = p.returnURL
	}

	form := url.Values{}
	form.Set("vendor_id", p.vendorID)
	form.Set("vendor_auth_code", p.authCode)
	form.Set("product_id", productID)
	form.Set("passthrough", req.Passthrough)
	if returnURL != "" {
		form.Set("return_url", returnURL)
	}
	for _, price := range p.prices {
		form.Add("prices[]", price)
	}
	if req.Email != "" {
		form.Set("customer_email", req.Email)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBaseURL+"/product/generate_pay_link", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.ProviderError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &domain.ProviderError{Provider: p.Name(), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.ProviderError{Provider: p.Name(), Message: "read response", Err: err}
	}
	var out struct {
		Success  bool `json:"success"`
		Response struct {
			URL string `json:"url"`
		} `json:"response"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &domain.ProviderError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("http %d: unreadable response", resp.StatusCode),
			Err:      err,
		}
	}
	if !out.Success || out.Response.URL == "" {
		msg := out.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d: no checkout url returned", resp.StatusCode)
		}
		return "", &domain.ProviderError{Provider: p.Name(), Message: msg}
	}
	return out.Response.URL, nil
}

// productFor resolves the provider product for plan. A plan whose product is
// not configured is a bad request, not a provider failure.
func productFor(products map[model.Plan]string, plan model.Plan) (string, error) {
	if plan == "" {
		plan = model.DefaultPlan
	}
	id, ok := products[plan]
	if !ok {
		return "", domain.InvalidRequest("unknown plan " + string(plan))
	}
	if id == "" {
		return "", domain.InvalidRequest("no product configured for plan " + string(plan))
	}
	return id, nil
}
