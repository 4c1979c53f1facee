package model

import (
	"fmt"
	"slices"
	"time"

	"bigdaytimer-premium/internal/domain"
)

// EntitlementState is the per-user state derived from an EntitlementRecord.
type EntitlementState string

const (
	StateUnknown  EntitlementState = "unknown"
	StateFree     EntitlementState = "free"
	StatePremium  EntitlementState = "premium"
	StateRefunded EntitlementState = "refunded"
)

// EntitlementRecord is the stored premium state for one user identifier.
// It is serialized as JSON, one entry per user.
type EntitlementRecord struct {
	UserID        string     `json:"userId"`
	IsPremium     bool       `json:"isPremium"`
	Plan          Plan       `json:"plan,omitempty"`
	PurchaseDate  *time.Time `json:"purchaseDate,omitempty"`
	OrderID       string     `json:"orderId,omitempty"`
	Email         string     `json:"email,omitempty"`
	Amount        string     `json:"amount,omitempty"`
	RefundDate    *time.Time `json:"refundDate,omitempty"`
	RefundOrderID string     `json:"refundOrderId,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	// ProcessedOrders remembers the most recent purchase and refund deliveries
	// ("paid:<order>", "refund:<order>"), oldest first, so late redeliveries of
	// any of them are recognized. Bounded by MaxProcessedOrders.
	ProcessedOrders []string `json:"processedOrders,omitempty"`
}

// MaxProcessedOrders bounds the replay history kept on one record.
const MaxProcessedOrders = 100

const (
	processedPaid   = "paid:"
	processedRefund = "refund:"
)

// processed reports whether the delivery kind+orderID was already applied.
// Records written before the history existed fall back to the latest ids.
func (r *EntitlementRecord) processed(kind, orderID string) bool {
	if r == nil {
		return false
	}
	switch {
	case kind == processedPaid && r.OrderID == orderID:
		return true
	case kind == processedRefund && r.RefundOrderID == orderID:
		return true
	}
	return slices.Contains(r.ProcessedOrders, kind+orderID)
}

func (r *EntitlementRecord) markProcessed(kind, orderID string) {
	r.ProcessedOrders = append(r.ProcessedOrders, kind+orderID)
	if n := len(r.ProcessedOrders) - MaxProcessedOrders; n > 0 {
		r.ProcessedOrders = slices.Clone(r.ProcessedOrders[n:])
	}
}

// State derives the user's state. A nil record reads as free.
func (r *EntitlementRecord) State() EntitlementState {
	switch {
	case r == nil:
		return StateFree
	case r.IsPremium:
		return StatePremium
	case r.RefundOrderID != "":
		return StateRefunded
	default:
		return StateFree
	}
}

// Clone returns a deep copy so transitions never alias the stored value.
func (r *EntitlementRecord) Clone() *EntitlementRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.PurchaseDate != nil {
		t := *r.PurchaseDate
		cp.PurchaseDate = &t
	}
	if r.RefundDate != nil {
		t := *r.RefundDate
		cp.RefundDate = &t
	}
	cp.ProcessedOrders = slices.Clone(r.ProcessedOrders)
	return &cp
}

// EntitlementView is the read model served by the status endpoints.
type EntitlementView struct {
	UserID       string
	IsPremium    bool
	State        EntitlementState
	PurchaseDate *time.Time
	OrderID      string
}

// ViewOf projects a record (possibly nil) into a view for userID.
func ViewOf(userID string, r *EntitlementRecord) *EntitlementView {
	v := &EntitlementView{UserID: userID, State: r.State()}
	if r != nil {
		v.IsPremium = r.IsPremium
		v.PurchaseDate = r.PurchaseDate
		v.OrderID = r.OrderID
	}
	return v
}

// ApplyPaymentSucceeded computes the record after a successful payment.
// Returns changed=false when the order was already applied to this record
// (at any point in its remembered history), in which case next is cur
// unchanged.
func ApplyPaymentSucceeded(cur *EntitlementRecord, userID string, plan Plan, ev PaymentEvent, now time.Time) (next *EntitlementRecord, changed bool, err error) {
	if userID == "" || ev.OrderID == "" {
		return nil, false, fmt.Errorf("%w: payment event needs userId and order_id", domain.ErrPermanentNoOp)
	}
	if cur.processed(processedPaid, ev.OrderID) {
		return cur, false, nil
	}
	next = cur.Clone()
	if next == nil {
		next = &EntitlementRecord{UserID: userID}
	}
	ts := now.UTC()
	next.IsPremium = true
	next.PurchaseDate = &ts
	next.OrderID = ev.OrderID
	if plan != "" {
		next.Plan = plan
	}
	next.Email = ev.Email
	next.Amount = ev.Amount
	next.UpdatedAt = ts
	next.markProcessed(processedPaid, ev.OrderID)
	return next, true, nil
}

// ApplyPaymentRefunded computes the record after a refund. A missing record is
// a permanent no-op; a refund already applied to this record leaves cur as is.
func ApplyPaymentRefunded(cur *EntitlementRecord, ev PaymentEvent, now time.Time) (next *EntitlementRecord, changed bool, err error) {
	if ev.OrderID == "" {
		return nil, false, fmt.Errorf("%w: refund event has no order_id", domain.ErrPermanentNoOp)
	}
	if cur == nil {
		return nil, false, fmt.Errorf("%w: no entitlement record to refund", domain.ErrPermanentNoOp)
	}
	if cur.processed(processedRefund, ev.OrderID) {
		return cur, false, nil
	}
	next = cur.Clone()
	ts := now.UTC()
	next.IsPremium = false
	next.RefundDate = &ts
	next.RefundOrderID = ev.OrderID
	next.UpdatedAt = ts
	next.markProcessed(processedRefund, ev.OrderID)
	return next, true, nil
}
