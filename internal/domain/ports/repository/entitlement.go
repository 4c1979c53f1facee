package repository

import (
	"context"

	"bigdaytimer-premium/internal/domain/model"
)

// UpdateFunc receives the current record (nil when none exists) and returns
// the record to store. Returning write=false leaves the store untouched.
// UpdateFunc may be invoked more than once when an adapter retries an
// optimistic transaction, so it must be free of side effects.
type UpdateFunc func(cur *model.EntitlementRecord) (next *model.EntitlementRecord, write bool, err error)

// EntitlementRepository is the single source of truth for premium state.
//
// Get returns domain.ErrNotFound when no record exists for userID.
// Update performs an atomic read-modify-write of one user's record; concurrent
// updates of the same key are serialized by the adapter.
// Failures of the backing store are reported wrapped in domain.ErrStoreUnavailable.
type EntitlementRepository interface {
	Get(ctx context.Context, userID string) (*model.EntitlementRecord, error)
	Update(ctx context.Context, userID string, fn UpdateFunc) (*model.EntitlementRecord, error)
}
