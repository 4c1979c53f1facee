//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
)

func TestEntitlementRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPostgresEntitlementRepo(testPool)

	t.Run("missing user reads as not found", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("purchase then refund keeps history", func(t *testing.T) {
		cleanup(t)
		buy := model.PaymentEvent{Type: model.EventPaymentSucceeded, OrderID: "o1", Amount: "4.99"}
		if _, err := repo.Update(ctx, "u1", func(cur *model.EntitlementRecord) (*model.EntitlementRecord, bool, error) {
			return model.ApplyPaymentSucceeded(cur, "u1", model.PlanPremium, buy, time.Now())
		}); err != nil {
			t.Fatalf("purchase: %v", err)
		}
		refund := model.PaymentEvent{Type: model.EventPaymentRefunded, OrderID: "o2"}
		if _, err := repo.Update(ctx, "u1", func(cur *model.EntitlementRecord) (*model.EntitlementRecord, bool, error) {
			return model.ApplyPaymentRefunded(cur, refund, time.Now())
		}); err != nil {
			t.Fatalf("refund: %v", err)
		}

		got, err := repo.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got.IsPremium || got.OrderID != "o1" || got.RefundOrderID != "o2" || got.Amount != "4.99" {
			t.Errorf("unexpected record %+v", got)
		}
	})

	t.Run("callback errors are returned as-is and nothing is written", func(t *testing.T) {
		cleanup(t)
		refund := model.PaymentEvent{Type: model.EventPaymentRefunded, OrderID: "o9"}
		_, err := repo.Update(ctx, "nobody", func(cur *model.EntitlementRecord) (*model.EntitlementRecord, bool, error) {
			return model.ApplyPaymentRefunded(cur, refund, time.Now())
		})
		if !errors.Is(err, domain.ErrPermanentNoOp) {
			t.Fatalf("expected ErrPermanentNoOp, got %v", err)
		}
		if errors.Is(err, domain.ErrStoreUnavailable) {
			t.Error("callback errors must not look like store failures")
		}
		if _, err := repo.Get(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected no row, got %v", err)
		}
	})

	t.Run("concurrent first purchases for one user serialize", func(t *testing.T) {
		cleanup(t)
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ev := model.PaymentEvent{Type: model.EventPaymentSucceeded, OrderID: fmt.Sprintf("o%d", i)}
				_, err := repo.Update(ctx, "u2", func(cur *model.EntitlementRecord) (*model.EntitlementRecord, bool, error) {
					return model.ApplyPaymentSucceeded(cur, "u2", model.PlanPremium, ev, time.Now())
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
		}
		got, err := repo.Get(ctx, "u2")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !got.IsPremium {
			t.Errorf("expected premium, got %+v", got)
		}
	})
}
