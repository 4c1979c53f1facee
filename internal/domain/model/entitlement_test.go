//go:build !integration

package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bigdaytimer-premium/internal/domain"
)

// --- EntitlementRecord Tests ---

func TestEntitlementRecordState(t *testing.T) {
	t.Run("should read a nil record as free", func(t *testing.T) {
		var r *EntitlementRecord
		if got := r.State(); got != StateFree {
			t.Errorf("expected state free, but got %s", got)
		}
	})

	t.Run("should read a refunded record as refunded", func(t *testing.T) {
		r := &EntitlementRecord{UserID: "u1", OrderID: "o1", RefundOrderID: "o1"}
		if got := r.State(); got != StateRefunded {
			t.Errorf("expected state refunded, but got %s", got)
		}
	})

	t.Run("should read premium over an earlier refund", func(t *testing.T) {
		r := &EntitlementRecord{UserID: "u1", IsPremium: true, OrderID: "o2", RefundOrderID: "o1"}
		if got := r.State(); got != StatePremium {
			t.Errorf("expected state premium, but got %s", got)
		}
	})
}

func TestEntitlementRecordClone(t *testing.T) {
	t.Run("should not alias timestamps", func(t *testing.T) {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		r := &EntitlementRecord{UserID: "u1", PurchaseDate: &ts}

		cp := r.Clone()
		*cp.PurchaseDate = ts.Add(time.Hour)

		if !r.PurchaseDate.Equal(ts) {
			t.Errorf("expected original purchase date to stay %v, but got %v", ts, *r.PurchaseDate)
		}
	})

	t.Run("should return nil for nil", func(t *testing.T) {
		var r *EntitlementRecord
		if r.Clone() != nil {
			t.Error("expected nil clone")
		}
	})
}

func TestApplyPaymentSucceeded(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := PaymentEvent{Type: EventPaymentSucceeded, OrderID: "o1", Email: "a@b.c", Amount: "4.99"}

	t.Run("should create a premium record for a new user", func(t *testing.T) {
		next, changed, err := ApplyPaymentSucceeded(nil, "u1", PlanPremium, ev, now)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !changed {
			t.Fatal("expected the record to change")
		}
		if !next.IsPremium || next.OrderID != "o1" || next.UserID != "u1" {
			t.Errorf("unexpected record: %+v", next)
		}
		if next.PurchaseDate == nil || !next.PurchaseDate.Equal(now) {
			t.Errorf("expected purchase date %v, but got %v", now, next.PurchaseDate)
		}
		if next.Email != "a@b.c" || next.Amount != "4.99" {
			t.Errorf("expected audit fields to be kept, got email=%q amount=%q", next.Email, next.Amount)
		}
	})

	t.Run("should report a replay of the same order as unchanged", func(t *testing.T) {
		cur, _, _ := ApplyPaymentSucceeded(nil, "u1", PlanPremium, ev, now)

		next, changed, err := ApplyPaymentSucceeded(cur, "u1", PlanPremium, ev, now.Add(time.Hour))

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if changed {
			t.Error("expected replay to leave the record unchanged")
		}
		if next != cur {
			t.Error("expected the current record to be returned as is")
		}
	})

	t.Run("should keep refund history on a new purchase", func(t *testing.T) {
		refundedAt := now.Add(-time.Hour)
		cur := &EntitlementRecord{UserID: "u1", OrderID: "o0", RefundOrderID: "o0", RefundDate: &refundedAt}

		next, changed, err := ApplyPaymentSucceeded(cur, "u1", "", ev, now)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !changed || !next.IsPremium {
			t.Fatalf("expected a premium record, got %+v", next)
		}
		if next.RefundOrderID != "o0" || next.RefundDate == nil {
			t.Errorf("expected refund fields to survive, got %+v", next)
		}
		if cur.IsPremium {
			t.Error("expected the input record to stay untouched")
		}
	})

	t.Run("should reject an event without order id", func(t *testing.T) {
		_, _, err := ApplyPaymentSucceeded(nil, "u1", PlanPremium, PaymentEvent{Type: EventPaymentSucceeded}, now)
		if !errors.Is(err, domain.ErrPermanentNoOp) {
			t.Errorf("expected ErrPermanentNoOp, but got: %v", err)
		}
	})
}

func TestApplyPaymentRefunded(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	purchased := now.Add(-24 * time.Hour)
	cur := &EntitlementRecord{UserID: "u1", IsPremium: true, OrderID: "o1", PurchaseDate: &purchased}
	ev := PaymentEvent{Type: EventPaymentRefunded, OrderID: "o1"}

	t.Run("should revoke premium and keep purchase history", func(t *testing.T) {
		next, changed, err := ApplyPaymentRefunded(cur, ev, now)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !changed || next.IsPremium {
			t.Fatalf("expected premium to be revoked, got %+v", next)
		}
		if next.OrderID != "o1" || next.PurchaseDate == nil {
			t.Errorf("expected purchase fields to be kept, got %+v", next)
		}
		if next.RefundOrderID != "o1" || next.RefundDate == nil || !next.RefundDate.Equal(now) {
			t.Errorf("unexpected refund fields: %+v", next)
		}
	})

	t.Run("should treat a missing record as a permanent no-op", func(t *testing.T) {
		_, _, err := ApplyPaymentRefunded(nil, ev, now)
		if !errors.Is(err, domain.ErrPermanentNoOp) {
			t.Errorf("expected ErrPermanentNoOp, but got: %v", err)
		}
	})

	t.Run("should report a replayed refund as unchanged", func(t *testing.T) {
		refunded, _, _ := ApplyPaymentRefunded(cur, ev, now)

		_, changed, err := ApplyPaymentRefunded(refunded, ev, now.Add(time.Minute))

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if changed {
			t.Error("expected replayed refund to be unchanged")
		}
	})
}

func TestViewOf(t *testing.T) {
	t.Run("should project a missing record as free", func(t *testing.T) {
		v := ViewOf("u1", nil)
		if v.UserID != "u1" || v.IsPremium || v.State != StateFree {
			t.Errorf("unexpected view: %+v", v)
		}
	})
}

// --- Replay History Tests ---

type step struct {
	typ   EventType
	order string
}

// applySteps runs the transitions in order, one hour apart, and returns the
// final record.
func applySteps(t *testing.T, steps []step) *EntitlementRecord {
	t.Helper()
	var cur *EntitlementRecord
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, s := range steps {
		ev := PaymentEvent{Type: s.typ, OrderID: s.order}
		var err error
		switch s.typ {
		case EventPaymentSucceeded:
			cur, _, err = ApplyPaymentSucceeded(cur, "u1", PlanPremium, ev, at)
		case EventPaymentRefunded:
			cur, _, err = ApplyPaymentRefunded(cur, ev, at)
		}
		if err != nil {
			t.Fatalf("step %d (%s %s): expected no error, but got: %v", i, s.typ, s.order, err)
		}
		at = at.Add(time.Hour)
	}
	return cur
}

func TestReplayHistory(t *testing.T) {
	later := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("should not re-grant premium on a late replay of a refunded purchase", func(t *testing.T) {
		cur := applySteps(t, []step{
			{EventPaymentSucceeded, "o1"},
			{EventPaymentRefunded, "r1"},
			{EventPaymentSucceeded, "o3"},
			{EventPaymentRefunded, "r3"},
		})

		next, changed, err := ApplyPaymentSucceeded(cur, "u1", PlanPremium, PaymentEvent{Type: EventPaymentSucceeded, OrderID: "o1"}, later)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if changed || next.IsPremium || next.OrderID != "o3" {
			t.Errorf("expected an unchanged refunded record, got changed=%v %+v", changed, next)
		}
	})

	t.Run("should keep the most recent order on a replay of an older purchase", func(t *testing.T) {
		cur := applySteps(t, []step{
			{EventPaymentSucceeded, "o1"},
			{EventPaymentSucceeded, "o2"},
		})
		purchased := *cur.PurchaseDate

		next, changed, err := ApplyPaymentSucceeded(cur, "u1", PlanPremium, PaymentEvent{Type: EventPaymentSucceeded, OrderID: "o1"}, later)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if changed || next.OrderID != "o2" || !next.PurchaseDate.Equal(purchased) {
			t.Errorf("expected order o2 bought at %v to stand, got changed=%v %+v", purchased, changed, next)
		}
	})

	t.Run("should not revoke a later purchase on a replay of an old refund", func(t *testing.T) {
		cur := applySteps(t, []step{
			{EventPaymentSucceeded, "o1"},
			{EventPaymentRefunded, "r1"},
			{EventPaymentSucceeded, "o2"},
			{EventPaymentRefunded, "r2"},
			{EventPaymentSucceeded, "o3"},
		})

		next, changed, err := ApplyPaymentRefunded(cur, PaymentEvent{Type: EventPaymentRefunded, OrderID: "r1"}, later)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if changed || !next.IsPremium || next.OrderID != "o3" {
			t.Errorf("expected premium on o3 to stand, got changed=%v %+v", changed, next)
		}
	})

	t.Run("should still apply a refund carrying the purchase order id", func(t *testing.T) {
		cur := applySteps(t, []step{{EventPaymentSucceeded, "o1"}})

		next, changed, err := ApplyPaymentRefunded(cur, PaymentEvent{Type: EventPaymentRefunded, OrderID: "o1"}, later)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !changed || next.IsPremium {
			t.Errorf("expected the refund to revoke premium, got changed=%v %+v", changed, next)
		}
	})

	t.Run("should bound the remembered history", func(t *testing.T) {
		steps := make([]step, 0, MaxProcessedOrders+5)
		for i := 0; i < MaxProcessedOrders+5; i++ {
			steps = append(steps, step{EventPaymentSucceeded, fmt.Sprintf("o%d", i)})
		}

		cur := applySteps(t, steps)

		if len(cur.ProcessedOrders) != MaxProcessedOrders {
			t.Fatalf("expected %d remembered orders, got %d", MaxProcessedOrders, len(cur.ProcessedOrders))
		}
		if cur.ProcessedOrders[0] != "paid:o5" {
			t.Errorf("expected the oldest entries to be dropped first, got %q", cur.ProcessedOrders[0])
		}
	})

	t.Run("should not share history between clones", func(t *testing.T) {
		cur := applySteps(t, []step{{EventPaymentSucceeded, "o1"}})

		cp := cur.Clone()
		cp.ProcessedOrders[0] = "paid:changed"

		if cur.ProcessedOrders[0] != "paid:o1" {
			t.Errorf("expected the original history to stay, got %v", cur.ProcessedOrders)
		}
	})
}

// --- Passthrough and Plan Tests ---

func TestPassthrough(t *testing.T) {
	t.Run("should round trip user and plan", func(t *testing.T) {
		raw, err := Passthrough{UserID: "user_1", Plan: PlanBasic}.Encode()
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		p, err := DecodePassthrough(raw)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.UserID != "user_1" || p.Plan != PlanBasic {
			t.Errorf("unexpected passthrough: %+v", p)
		}
	})

	for name, raw := range map[string]string{
		"empty":       "",
		"not json":    "user_1",
		"no user":     `{"plan":"premium"}`,
		"blank user":  `{"userId":"  "}`,
		"wrong shape": `["user_1"]`,
	} {
		t.Run("should reject "+name+" as permanent", func(t *testing.T) {
			if _, err := DecodePassthrough(raw); !errors.Is(err, domain.ErrPermanentNoOp) {
				t.Errorf("expected ErrPermanentNoOp, but got: %v", err)
			}
		})
	}
}

func TestNormalizeUserID(t *testing.T) {
	t.Run("should trim surrounding space", func(t *testing.T) {
		id, err := NormalizeUserID("  user_1 ")
		if err != nil || id != "user_1" {
			t.Errorf("expected user_1, got %q (%v)", id, err)
		}
	})

	t.Run("should reject an oversized id", func(t *testing.T) {
		_, err := NormalizeUserID(strings.Repeat("a", MaxUserIDLength+1))
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, but got: %v", err)
		}
	})
}

func TestParsePlan(t *testing.T) {
	t.Run("should default an empty plan", func(t *testing.T) {
		p, err := ParsePlan("  ")
		if err != nil || p != DefaultPlan {
			t.Errorf("expected %s, got %s (%v)", DefaultPlan, p, err)
		}
	})

	t.Run("should normalize case", func(t *testing.T) {
		p, err := ParsePlan("Basic")
		if err != nil || p != PlanBasic {
			t.Errorf("expected basic, got %s (%v)", p, err)
		}
	})

	t.Run("should reject an unknown plan", func(t *testing.T) {
		if _, err := ParsePlan("gold"); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, but got: %v", err)
		}
	})
}
