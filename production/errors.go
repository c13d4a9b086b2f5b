package production

import (
	"errors"
	"fmt"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownStatus is returned for an unrecognized status code.
	ErrUnknownStatus = errors.New("unknown status")

	// ErrInvalidTransition is returned when the registry forbids a move.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrOrderNotFound = errors.New("order not found")

	// ErrNoOrders is returned for an empty batch.
	ErrNoOrders = errors.New("no orders given")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q", e.Value)
}

func (e *UnknownStatusError) Unwrap() error { return ErrUnknownStatus }

// InvalidTransitionError carries both endpoints of a rejected move.
type InvalidTransitionError struct {
	OrderID   core.OrderID
	Current   Status
	Attempted Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.Current, e.Attempted)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNoOrders) ||
		inventory.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || catalog.IsNotFound(err) || inventory.IsNotFound(err)
}
