// Package overrides is the data-access layer for admin-authored content: per
// code partial overrides and complete custom exercises, persisted in a remote
// key-value store. It keeps no local cache; the store is the source of truth.
package overrides

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps every transport failure of the backend.
	ErrStoreUnavailable = errors.New("override store unavailable")
	// ErrExists is returned by Create when the key is already present.
	ErrExists = errors.New("key already exists")
)

// Entry is one stored value with its last write time.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// KV is the string-keyed backend contract. Get returns (nil, nil) for a
// missing key. Implementations apply their own per-operation timeout and do
// not retry.
type KV interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, value []byte) error
	Create(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// DefaultTimeout bounds a single backend call when none is configured.
const DefaultTimeout = 3 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
