//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/infra/db/memory"
	"bigdaytimer-premium/internal/usecase"
)

func TestStatusUseCase_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("should report unknown users as free", func(t *testing.T) {
		uc := usecase.NewStatusUseCase(memory.NewEntitlementRepo(), newTestLogger())

		view, err := uc.Get(ctx, "nobody")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if view.IsPremium || view.State != model.StateFree || view.UserID != "nobody" {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("should report premium users", func(t *testing.T) {
		repo := memory.NewEntitlementRepo()
		ev := model.PaymentEvent{Type: model.EventPaymentSucceeded, OrderID: "o1"}
		_, err := repo.Update(ctx, "u1", func(cur *model.EntitlementRecord) (*model.EntitlementRecord, bool, error) {
			return model.ApplyPaymentSucceeded(cur, "u1", model.PlanPremium, ev, time.Now())
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		uc := usecase.NewStatusUseCase(repo, newTestLogger())

		view, err := uc.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !view.IsPremium || view.OrderID != "o1" || view.PurchaseDate == nil {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("should reject an empty id", func(t *testing.T) {
		uc := usecase.NewStatusUseCase(memory.NewEntitlementRepo(), newTestLogger())
		if _, err := uc.Get(ctx, ""); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("should reject an oversized id", func(t *testing.T) {
		uc := usecase.NewStatusUseCase(memory.NewEntitlementRepo(), newTestLogger())
		if _, err := uc.Get(ctx, strings.Repeat("x", model.MaxUserIDLength+1)); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("should wrap store failures", func(t *testing.T) {
		uc := usecase.NewStatusUseCase(&MockEntitlementRepo{Err: errors.New("timeout")}, newTestLogger())
		if _, err := uc.Get(ctx, "u1"); !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}
