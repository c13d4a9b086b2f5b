package sales

import (
	"errors"
	"fmt"

	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/production"
)

var (
	// ErrBundleExpansion is returned when a bundle line cannot be expanded.
	ErrBundleExpansion = errors.New("bundle expansion failed")

	ErrSalesOrderNotFound = errors.New("sales order not found")
	ErrLineNotFound       = errors.New("sales line not found")

	// ErrInvalidLine is returned for malformed line input.
	ErrInvalidLine = errors.New("invalid sales line")

	ErrInvalidSalesOrder = errors.New("invalid sales order")

	// ErrProvisionInProgress is returned when another process holds the
	// provisioning lock for the same sales order.
	ErrProvisionInProgress = errors.New("provisioning already in progress")

	// ErrSalesOrderClosed is returned when changing a cancelled order.
	ErrSalesOrderClosed = errors.New("sales order is closed")
)

// BundleExpansionError names the line and what could not be resolved.
type BundleExpansionError struct {
	LineID core.SalesLineID
	Reason string
}

func (e *BundleExpansionError) Error() string {
	return fmt.Sprintf("bundle line %s: %s", e.LineID, e.Reason)
}

func (e *BundleExpansionError) Unwrap() error { return ErrBundleExpansion }

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBundleExpansion) ||
		errors.Is(err, ErrInvalidLine) ||
		errors.Is(err, ErrInvalidSalesOrder) ||
		errors.Is(err, ErrSalesOrderClosed) ||
		production.IsClientError(err)
}

// IsConflict returns true if the caller may retry later.
func IsConflict(err error) bool {
	return errors.Is(err, ErrProvisionInProgress)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSalesOrderNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		production.IsNotFound(err)
}
