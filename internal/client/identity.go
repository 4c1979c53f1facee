package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Identity hands out the installation's stable user id, creating it on
// first use.
type Identity struct {
	store Storage
	group singleflight.Group
	newID func() string
}

func NewIdentity(store Storage) *Identity {
	return &Identity{store: store, newID: NewUserID}
}

// NewUserID returns "user_" followed by a random (v4) UUID.
func NewUserID() string { return "user_" + uuid.NewString() }

// Ensure returns the stored id, generating and persisting one if none exists.
// Concurrent first calls share one generation; across processes the store
// keeps whichever value was written first. If persisting fails the generated
// id is discarded.
func (i *Identity) Ensure(ctx context.Context) (string, error) {
	if id, ok, err := i.store.Get(ctx, keyUserID); err != nil {
		return "", fmt.Errorf("read user id: %w", err)
	} else if ok && id != "" {
		return id, nil
	}

	v, err, _ := i.group.Do(keyUserID, func() (any, error) {
		return i.store.SetIfAbsent(ctx, keyUserID, i.newID())
	})
	if err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	return v.(string), nil
}
