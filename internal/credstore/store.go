// Package credstore holds the origin-scoped key/value store that persists the
// bearer credential and the session fields. Every handle is one execution
// context; all handles opened on the same origin see the same values.
package credstore

import (
	"context"

	"github.com/google/uuid"
)

// Change says that something changed at Key. It carries no value on purpose:
// receivers re-read the store.
type Change struct {
	Key       string
	ContextID string
}

// Store is one context's handle on the shared store.
type Store interface {
	// ContextID identifies this handle; changes it makes are not delivered back to it.
	ContextID() string
	Get(ctx context.Context, key string) (string, bool, error)
	// GetAll returns the present keys among keys, read as one snapshot.
	GetAll(ctx context.Context, keys ...string) (map[string]string, error)
	// SetAll writes every value as one unit; readers never see a partial write.
	SetAll(ctx context.Context, values map[string]string) error
	// Remove deletes keys as one unit.
	Remove(ctx context.Context, keys ...string) error
	// Subscribe delivers changes made by other contexts until ctx is done or the
	// store is closed. Notifications may be coalesced when the receiver lags.
	Subscribe(ctx context.Context) (<-chan Change, error)
	Close() error
}

const changeBuffer = 64

func newContextID() string {
	return uuid.NewString()
}

// trySend delivers without blocking. A full buffer already holds a pending
// notification, and receivers re-read everything, so dropping is safe.
func trySend(ch chan<- Change, c Change) {
	select {
	case ch <- c:
	default:
	}
}
