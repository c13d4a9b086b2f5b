package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Actor is the identity a change is attributed to. Opaque to the core.
type Actor string

// SystemActor attributes changes made by background jobs.
const SystemActor Actor = "system"

// OrderID identifies a production order.
type OrderID string

// SalesLineID identifies one line of a sales order.
type SalesLineID string

// NewID returns a prefixed random identifier, e.g. "ord-2f1c...".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// =============================================================================
// LOCKER - Cross-process mutual exclusion
// =============================================================================

// ErrLockHeld is returned (possibly wrapped) when a key is held elsewhere.
var ErrLockHeld = errors.New("lock held")

// Locker grants exclusive access to a named resource.
// Implementations return ErrLockHeld when the resource is held elsewhere.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker grants every lock. Single-process deployments rely on the
// store's own unit serialization instead.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
