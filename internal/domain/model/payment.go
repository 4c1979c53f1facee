package model

// EventType is the provider's alert_name.
type EventType string

const (
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventPaymentRefunded  EventType = "payment_refunded"
)

// Handled reports whether the reconciler has a transition for t.
func (t EventType) Handled() bool {
	return t == EventPaymentSucceeded || t == EventPaymentRefunded
}

// PaymentEvent is an authenticated webhook delivery reduced to the fields the
// reconciler reads. Values are kept as the provider sent them.
type PaymentEvent struct {
	Type        EventType
	OrderID     string // provider order id (order_id)
	Passthrough string // raw passthrough token
	Email       string // customer email, audit only
	Amount      string // sale_gross, audit only
	DeliveryID  string // local id assigned on receipt, for logs
}
