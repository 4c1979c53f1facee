package memory

import (
	"context"
	"sync"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*EntitlementRepo)(nil)

// EntitlementRepo keeps records in process memory. Development and tests only.
type EntitlementRepo struct {
	mu    sync.Mutex
	store map[string]*model.EntitlementRecord
}

func NewEntitlementRepo() *EntitlementRepo {
	return &EntitlementRepo{store: make(map[string]*model.EntitlementRecord)}
}

func (r *EntitlementRepo) Get(ctx context.Context, userID string) (*model.EntitlementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

// Update holds the store lock for the whole read-modify-write.
func (r *EntitlementRepo) Update(ctx context.Context, userID string, fn repository.UpdateFunc) (*model.EntitlementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.store[userID].Clone()
	next, write, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if !write {
		return cur, nil
	}
	r.store[userID] = next.Clone()
	return next.Clone(), nil
}

// Len reports the number of stored records.
func (r *EntitlementRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store)
}
