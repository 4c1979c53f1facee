package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/domain/model"
)

var (
	ErrAlreadyPremium = errors.New("user is already premium")
	ErrPollTimeout    = errors.New("payment verification timeout")
)

// Source says where a Status came from.
type Source string

const (
	SourceServer Source = "server"
	SourceCache  Source = "cache"
)

type Status struct {
	UserID      string
	IsPremium   bool
	LastChecked time.Time
	Source      Source
}

// PollOptions bounds WaitForPremium.
type PollOptions struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

// DefaultPollOptions waits 2s, then checks every 5s for three minutes.
func DefaultPollOptions() PollOptions {
	return PollOptions{InitialDelay: 2 * time.Second, Interval: 5 * time.Second, MaxAttempts: 36}
}

// Client mirrors the server's premium flag into local storage and falls back
// to the mirror when the server cannot be reached. It only reads from the
// service; entitlement changes come from provider webhooks.
type Client struct {
	identity *Identity
	store    Storage
	api      StatusAPI
	log      *zerolog.Logger
	now      func() time.Time
	onChange func(isPremium bool)
}

type Option func(*Client)

// WithOnChange registers fn to run whenever the mirrored premium flag flips.
// A missing mirror counts as not premium.
func WithOnChange(fn func(isPremium bool)) Option {
	return func(c *Client) { c.onChange = fn }
}

func New(store Storage, api StatusAPI, logger *zerolog.Logger, opts ...Option) *Client {
	if logger == nil {
		nop := zerolog.New(io.Discard)
		logger = &nop
	}
	c := &Client{
		identity: NewIdentity(store),
		store:    store,
		api:      api,
		log:      logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// UserID returns the installation's id, creating it on first use.
func (c *Client) UserID(ctx context.Context) (string, error) {
	return c.identity.Ensure(ctx)
}

// Refresh asks the server for the current status and mirrors it locally. On
// a server failure it returns the cached status together with the error.
func (c *Client) Refresh(ctx context.Context) (Status, error) {
	id, err := c.identity.Ensure(ctx)
	if err != nil {
		return Status{Source: SourceCache}, err
	}
	remote, err := c.api.PremiumStatus(ctx, id)
	if err != nil {
		return c.cached(ctx, id), fmt.Errorf("refresh premium status: %w", err)
	}
	return c.remember(ctx, id, remote.IsPremium), nil
}

// IsPremium refreshes and falls back to the cached flag; it never fails.
func (c *Client) IsPremium(ctx context.Context) bool {
	st, err := c.Refresh(ctx)
	if err != nil {
		c.log.Debug().Err(err).Bool("cached", st.IsPremium).Msg("using cached premium status")
	}
	return st.IsPremium
}

// Checkout returns a provider checkout URL for the premium plan.
func (c *Client) Checkout(ctx context.Context, returnURL string) (string, error) {
	if c.IsPremium(ctx) {
		return "", ErrAlreadyPremium
	}
	id, err := c.identity.Ensure(ctx)
	if err != nil {
		return "", err
	}
	return c.api.CreateCheckout(ctx, id, string(model.PlanPremium), returnURL)
}

// WaitForPremium polls /payment-status until the user is premium or the
// attempts run out. Transient errors count as attempts.
func (c *Client) WaitForPremium(ctx context.Context, opts PollOptions) (Status, error) {
	if opts.MaxAttempts <= 0 {
		opts = DefaultPollOptions()
	}
	id, err := c.identity.Ensure(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := sleep(ctx, opts.InitialDelay); err != nil {
		return c.cached(ctx, id), err
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		remote, err := c.api.PaymentStatus(ctx, id)
		switch {
		case err != nil:
			lastErr = err
			c.log.Debug().Err(err).Int("attempt", attempt).Msg("payment status check failed")
		case remote.IsPremium:
			return c.remember(ctx, id, true), nil
		}
		if attempt == opts.MaxAttempts {
			break
		}
		if err := sleep(ctx, opts.Interval); err != nil {
			return c.cached(ctx, id), err
		}
	}
	if lastErr != nil {
		return c.cached(ctx, id), fmt.Errorf("%w after %d attempts: %w", ErrPollTimeout, opts.MaxAttempts, lastErr)
	}
	return c.cached(ctx, id), fmt.Errorf("%w after %d attempts", ErrPollTimeout, opts.MaxAttempts)
}

// remember mirrors a server answer. The flag is only rewritten when it
// differs from the mirror; lastChecked is always refreshed.
func (c *Client) remember(ctx context.Context, id string, premium bool) Status {
	st := Status{UserID: id, IsPremium: premium, LastChecked: c.now().UTC(), Source: SourceServer}

	raw, ok, err := c.store.Get(ctx, keyIsPremium)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not read cached premium status")
	}
	was, _ := strconv.ParseBool(raw)
	if err != nil || !ok || was != premium {
		if err := c.store.Set(ctx, keyIsPremium, strconv.FormatBool(premium)); err != nil {
			c.log.Warn().Err(err).Msg("could not cache premium status")
			return st
		}
	}
	if err := c.store.Set(ctx, keyLastChecked, st.LastChecked.Format(time.RFC3339Nano)); err != nil {
		c.log.Warn().Err(err).Msg("could not cache last checked time")
	}
	if was != premium && c.onChange != nil {
		c.onChange(premium)
	}
	return st
}

func (c *Client) cached(ctx context.Context, id string) Status {
	st := Status{UserID: id, Source: SourceCache}
	if v, ok, err := c.store.Get(ctx, keyIsPremium); err == nil && ok {
		st.IsPremium, _ = strconv.ParseBool(v)
	}
	if v, ok, err := c.store.Get(ctx, keyLastChecked); err == nil && ok {
		st.LastChecked, _ = time.Parse(time.RFC3339Nano, v)
	}
	return st
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
