package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/repository"
	"bigdaytimer-premium/internal/infra/logging"
	"bigdaytimer-premium/internal/infra/metrics"
)

// StatusUseCase answers "is this user premium" straight from the store.
type StatusUseCase struct {
	repo repository.EntitlementRepository
	log  *zerolog.Logger
}

func NewStatusUseCase(repo repository.EntitlementRepository, logger *zerolog.Logger) *StatusUseCase {
	return &StatusUseCase{repo: repo, log: logger}
}

// Get returns the user's entitlement view. Unknown users are free.
func (u *StatusUseCase) Get(ctx context.Context, userID string) (*model.EntitlementView, error) {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	rec, err := u.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec = nil
	case err != nil:
		metrics.IncStatusQuery("store_error")
		logging.With(ctx, u.log).Error().Err(err).Msg("entitlement read failed")
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return nil, err
	}

	view := model.ViewOf(userID, rec)
	if view.IsPremium {
		metrics.IncStatusQuery("premium")
	} else {
		metrics.IncStatusQuery("free")
	}
	return view, nil
}
