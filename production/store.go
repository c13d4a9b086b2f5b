package production

import (
	"context"

	"github.com/warp/orderflow/core"
)

// OrderFilter narrows ListOrders. Zero fields match everything.
type OrderFilter struct {
	Statuses    []Status
	SalesLineID core.SalesLineID
	Limit       int // 0 = no limit
}

// Match reports whether o passes the filter (Limit excluded).
func (f OrderFilter) Match(o Order) bool {
	if f.SalesLineID != "" && o.SalesLineID != f.SalesLineID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == o.Status {
			return true
		}
	}
	return false
}

// Store persists orders and their history.
// GetOrder returns (nil, nil) when absent.
type Store interface {
	core.Transactor

	// SaveOrder inserts or updates an order.
	SaveOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id core.OrderID) (*Order, error)

	// ListOrders returns matching orders oldest first.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)

	// AppendHistory adds a history row. Append-only.
	AppendHistory(ctx context.Context, h HistoryEntry) error

	// ListHistory returns an order's history oldest first.
	ListHistory(ctx context.Context, id core.OrderID) ([]HistoryEntry, error)
}
