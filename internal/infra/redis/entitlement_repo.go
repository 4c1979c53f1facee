package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/repository"
	"bigdaytimer-premium/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
)

var _ repository.EntitlementRepository = (*EntitlementRepo)(nil)

// EntitlementRepo stores one JSON record per user under prefix+userID.
// Updates are optimistic WATCH/MULTI transactions retried on conflict.
type EntitlementRepo struct {
	cli        *redis.Client
	prefix     string
	maxRetries int
}

func NewEntitlementRepo(c *Client, prefix string, maxRetries int) *EntitlementRepo {
	if prefix == "" {
		prefix = "premium_user:"
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &EntitlementRepo{cli: c.cli, prefix: prefix, maxRetries: maxRetries}
}

func (r *EntitlementRepo) key(userID string) string { return r.prefix + userID }

func (r *EntitlementRepo) Get(ctx context.Context, userID string) (*model.EntitlementRecord, error) {
	rec, err := read(ctx, r.cli, r.key(userID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// callbackError marks errors produced by the caller's UpdateFunc so they are
// returned untouched instead of being reported as store failures.
type callbackError struct{ err error }

func (e callbackError) Error() string { return e.err.Error() }

func (r *EntitlementRepo) Update(ctx context.Context, userID string, fn repository.UpdateFunc) (*model.EntitlementRecord, error) {
	key := r.key(userID)
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		var out *model.EntitlementRecord
		err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := read(ctx, tx, key)
			if err != nil {
				return err
			}
			next, write, err := fn(cur)
			if err != nil {
				return callbackError{err}
			}
			if !write {
				out = cur
				return nil
			}
			data, err := json.Marshal(next)
			if err != nil {
				return callbackError{fmt.Errorf("encode entitlement: %w", err)}
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, data, 0)
				return nil
			})
			if err == nil {
				out = next
			}
			return err
		}, key)

		var cbErr callbackError
		switch {
		case err == nil:
			return out, nil
		case errors.As(err, &cbErr):
			return nil, cbErr.err
		case errors.Is(err, redis.TxFailedErr):
			metrics.IncStoreConflict("redis")
			continue
		case errors.Is(err, domain.ErrStoreUnavailable):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, domain.ErrConcurrentUpdate)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func read(ctx context.Context, g getter, key string) (*model.EntitlementRecord, error) {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var rec model.EntitlementRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	return &rec, nil
}
