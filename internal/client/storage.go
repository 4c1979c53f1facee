package client

import "context"

// Storage is the client's local key/value persistence. The sqlite KVStore
// implements it.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent stores value unless key holds a non-empty value and returns
	// the value the key holds afterwards.
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

const (
	keyUserID      = "userId"
	keyIsPremium   = "isPremium"
	keyLastChecked = "lastChecked"
)
