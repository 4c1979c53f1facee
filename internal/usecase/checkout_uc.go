// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/config"
	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/adapter"
	"bigdaytimer-premium/internal/infra/logging"
	"bigdaytimer-premium/internal/infra/metrics"
)

// CheckoutRequest is the input of CheckoutUseCase.Create. Plan may be empty.
type CheckoutRequest struct {
	UserID    string
	Plan      string
	ReturnURL string
	Email     string
}

type CheckoutResult struct {
	CheckoutURL string
	UserID      string
	Plan        model.Plan
	Provider    string
}

// CheckoutUseCase creates provider checkout links that carry the user's
// passthrough token. It never touches the entitlement store.
type CheckoutUseCase struct {
	provider adapter.CheckoutProvider
	log      *zerolog.Logger
	dev      bool
}

// NewCheckoutUseCase binds the provider for env. A mock provider is refused
// outside development so production can never hand out fabricated links.
func NewCheckoutUseCase(provider adapter.CheckoutProvider, env config.Environment, logger *zerolog.Logger) (*CheckoutUseCase, error) {
	if provider == nil {
		return nil, errors.New("checkout provider is nil")
	}
	if provider.Mock() && env.IsProduction() {
		return nil, errors.New("mock checkout provider is not allowed in production")
	}
	return &CheckoutUseCase{provider: provider, log: logger, dev: !env.IsProduction()}, nil
}

func (u *CheckoutUseCase) Create(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	userID, err := model.NormalizeUserID(req.UserID)
	if err != nil {
		metrics.IncCheckout(u.provider.Name(), "invalid", "invalid")
		return nil, err
	}
	plan, err := model.ParsePlan(req.Plan)
	if err != nil {
		metrics.IncCheckout(u.provider.Name(), "invalid", "invalid")
		return nil, err
	}

	token, err := model.Passthrough{UserID: userID, Plan: plan}.Encode()
	if err != nil {
		return nil, err
	}

	log := logging.With(logging.WithUserID(ctx, logging.Redact(userID, u.dev)), u.log)
	link, err := u.provider.CreatePayLink(ctx, adapter.PayLinkRequest{
		Plan:        plan,
		Passthrough: token,
		ReturnURL:   req.ReturnURL,
		Email:       req.Email,
	})
	if err != nil {
		result := "provider_error"
		if errors.Is(err, domain.ErrInvalidRequest) {
			result = "invalid"
		}
		metrics.IncCheckout(u.provider.Name(), string(plan), result)
		log.Error().Err(err).Str("provider", u.provider.Name()).Str("plan", string(plan)).Msg("checkout creation failed")
		return nil, err
	}

	metrics.IncCheckout(u.provider.Name(), string(plan), "ok")
	log.Info().Str("provider", u.provider.Name()).Str("plan", string(plan)).Msg("checkout created")
	return &CheckoutResult{
		CheckoutURL: link,
		UserID:      userID,
		Plan:        plan,
		Provider:    u.provider.Name(),
	}, nil
}
