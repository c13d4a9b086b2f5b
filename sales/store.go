package sales

import (
	"context"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
)

// Store persists sales orders and lines.
// Getters return (nil, nil) when absent.
type Store interface {
	core.Transactor

	SaveSalesOrder(ctx context.Context, o SalesOrder) error
	GetSalesOrder(ctx context.Context, id SalesOrderID) (*SalesOrder, error)
	// ListSalesOrders returns orders newest first.
	ListSalesOrders(ctx context.Context) ([]SalesOrder, error)

	// SaveLine inserts or updates a line with its component selections.
	SaveLine(ctx context.Context, l Line) error
	GetLine(ctx context.Context, id core.SalesLineID) (*Line, error)
	// ListLines returns an order's lines in creation order.
	ListLines(ctx context.Context, orderID SalesOrderID) ([]Line, error)
}

// BundleCatalog is the catalog surface bundle expansion reads.
// catalog.Store satisfies it.
type BundleCatalog interface {
	GetProduct(ctx context.Context, id catalog.ProductID) (*catalog.Product, error)
	ListBundleComponents(ctx context.Context, bundleID catalog.ProductID) ([]catalog.BundleComponent, error)
	ListBundleColorMappings(ctx context.Context, bundleID catalog.ProductID, bundleColorID catalog.ColorID) ([]catalog.BundleColorMapping, error)
	GetBundlePreset(ctx context.Context, id catalog.PresetID) (*catalog.BundlePreset, error)
	ListBundlePresetComponents(ctx context.Context, presetID catalog.PresetID) ([]catalog.BundlePresetComponent, error)
}
