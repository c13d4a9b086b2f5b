package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/orderflow/catalog"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a removal would leave a negative balance.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidQuantity is returned for zero or negative magnitudes.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrSameLocation is returned when a transfer's source equals its destination.
	ErrSameLocation = errors.New("source and destination locations must differ")

	// ErrReasonDirection is returned when a reason does not match the
	// operation direction or the family.
	ErrReasonDirection = errors.New("reason not valid for this operation")

	ErrTransferNotFound = errors.New("transfer not found")

	// ErrTransferState is returned when a transfer cannot move to the requested state.
	ErrTransferState = errors.New("invalid transfer state")

	// ErrEmptyTransfer is returned for a transfer without lines.
	ErrEmptyTransfer = errors.New("transfer has no lines")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientStockError carries the balance that blocked a removal.
type InsufficientStockError struct {
	Family    Family
	Location  LocationID
	Variant   catalog.VariantID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %s, requested %s (%s %s/%s)",
		e.Available, e.Requested, e.Family, e.Location, e.Variant)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// TransferStateError reports a lifecycle violation.
type TransferStateError struct {
	ID      TransferID
	Current TransferStatus
	Action  string
}

func (e *TransferStateError) Error() string {
	return fmt.Sprintf("cannot %s transfer %s in status %s", e.Action, e.ID, e.Current)
}

func (e *TransferStateError) Unwrap() error {
	return ErrTransferState
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrSameLocation) ||
		errors.Is(err, ErrReasonDirection) ||
		errors.Is(err, ErrTransferState) ||
		errors.Is(err, ErrEmptyTransfer) ||
		catalog.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransferNotFound) || catalog.IsNotFound(err)
}
