// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/adapter"
	"bigdaytimer-premium/internal/domain/ports/repository"
	"bigdaytimer-premium/internal/infra/logging"
	"bigdaytimer-premium/internal/infra/metrics"
)

// Outcome is what a delivery did to the store. Every outcome is acknowledged
// to the provider with 200.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNoOp      Outcome = "noop"
)

const defaultProcessTimeout = 10 * time.Second

// WebhookUseCase authenticates provider deliveries and reconciles them into
// the entitlement store.
type WebhookUseCase struct {
	verifier adapter.WebhookVerifier
	repo     repository.EntitlementRepository
	log      *zerolog.Logger
	dev      bool
	timeout  time.Duration
	now      func() time.Time
}

type WebhookOption func(*WebhookUseCase)

// WithProcessTimeout bounds store work after a delivery is authenticated.
func WithProcessTimeout(d time.Duration) WebhookOption {
	return func(u *WebhookUseCase) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) WebhookOption {
	return func(u *WebhookUseCase) { u.now = now }
}

// WithDevLogging disables PII redaction in logs.
func WithDevLogging(dev bool) WebhookOption {
	return func(u *WebhookUseCase) { u.dev = dev }
}

func NewWebhookUseCase(verifier adapter.WebhookVerifier, repo repository.EntitlementRepository, logger *zerolog.Logger, opts ...WebhookOption) *WebhookUseCase {
	u := &WebhookUseCase{
		verifier: verifier,
		repo:     repo,
		log:      logger,
		timeout:  defaultProcessTimeout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Handle runs a raw delivery through verification and reconciliation. The
// body is not parsed unless the signature checks out. Returned errors are
// either domain.ErrUnauthorized or domain.ErrStoreUnavailable; permanent
// no-ops come back as OutcomeNoOp with a nil error.
func (u *WebhookUseCase) Handle(ctx context.Context, raw []byte, signature, contentType string) (Outcome, error) {
	start := time.Now()
	deliveryID := ulid.Make().String()
	ctx = logging.WithDeliveryID(ctx, deliveryID)
	log := logging.With(ctx, u.log)

	if err := u.verifier.Verify(raw, signature); err != nil {
		metrics.ObserveWebhook("unknown", "unauthorized", time.Since(start).Seconds())
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("webhook rejected")
		if !errors.Is(err, domain.ErrUnauthorized) {
			err = errors.Join(domain.ErrUnauthorized, err)
		}
		return "", err
	}

	// Authenticated: finish the work even if the provider hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeout)
	defer cancel()

	ev, err := ParseWebhookEvent(raw, contentType)
	if err != nil {
		metrics.ObserveWebhook("unknown", string(OutcomeNoOp), time.Since(start).Seconds())
		log.Warn().Err(err).Msg("webhook body unreadable, acknowledging")
		return OutcomeNoOp, nil
	}
	ev.DeliveryID = deliveryID

	out, err := u.Reconcile(ctx, ev)
	event := eventLabel(ev.Type)
	switch {
	case errors.Is(err, domain.ErrPermanentNoOp):
		metrics.ObserveWebhook(event, string(OutcomeNoOp), time.Since(start).Seconds())
		return OutcomeNoOp, nil
	case err != nil:
		metrics.ObserveWebhook(event, "error", time.Since(start).Seconds())
		return "", err
	}
	metrics.ObserveWebhook(event, string(out), time.Since(start).Seconds())
	return out, nil
}

// Reconcile applies an authenticated event. Permanent no-ops are returned as
// OutcomeNoOp with an error wrapping domain.ErrPermanentNoOp so callers can
// see why; store failures wrap domain.ErrStoreUnavailable.
func (u *WebhookUseCase) Reconcile(ctx context.Context, ev model.PaymentEvent) (Outcome, error) {
	log := logging.With(ctx, u.log).With().
		Str("event", string(ev.Type)).
		Str("order_id", ev.OrderID).
		Logger()

	if !ev.Type.Handled() {
		log.Info().Msg("webhook event ignored")
		return OutcomeIgnored, nil
	}

	pt, err := model.DecodePassthrough(ev.Passthrough)
	if err != nil {
		log.Warn().Err(err).Msg("webhook event not applicable")
		return OutcomeNoOp, err
	}
	log = log.With().Str("user_id", logging.Redact(pt.UserID, u.dev)).Logger()

	var (
		from          model.EntitlementState
		to            model.EntitlementState
		missingRecord bool
		applied       bool
	)
	now := u.now()
	_, err = u.repo.Update(ctx, pt.UserID, func(cur *model.EntitlementRecord) (*model.EntitlementRecord, bool, error) {
		from = model.StateUnknown
		if cur != nil {
			from = cur.State()
		}
		missingRecord = cur == nil

		var next *model.EntitlementRecord
		var changed bool
		var err error
		switch ev.Type {
		case model.EventPaymentSucceeded:
			plan := pt.Plan
			if plan == "" {
				plan = model.DefaultPlan
			}
			next, changed, err = model.ApplyPaymentSucceeded(cur, pt.UserID, plan, ev, now)
		case model.EventPaymentRefunded:
			next, changed, err = model.ApplyPaymentRefunded(cur, ev, now)
		}
		if err == nil {
			to = next.State()
		}
		applied = changed
		return next, changed, err
	})

	switch {
	case errors.Is(err, domain.ErrPermanentNoOp):
		if ev.Type == model.EventPaymentRefunded && missingRecord && ev.OrderID != "" {
			metrics.IncRefundWithoutRecord()
			log.Warn().Err(err).Str("anomaly", "refund_without_record").Msg("refund for unknown user")
		} else {
			log.Warn().Err(err).Msg("webhook event not applicable")
		}
		return OutcomeNoOp, err
	case err != nil:
		log.Error().Err(err).Msg("entitlement update failed")
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = errors.Join(domain.ErrStoreUnavailable, err)
		}
		return "", err
	}

	if !applied {
		log.Info().Msg("webhook replay, nothing to do")
		return OutcomeDuplicate, nil
	}
	metrics.IncTransition(string(from), string(to))
	log.Info().Str("from", string(from)).Str("to", string(to)).Msg("entitlement updated")
	return OutcomeApplied, nil
}

func eventLabel(t model.EventType) string {
	switch {
	case t.Handled():
		return string(t)
	case t == "":
		return "unknown"
	default:
		return "other"
	}
}
