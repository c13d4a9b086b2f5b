package inventory

import (
	"context"

	"github.com/warp/orderflow/core"
)

// =============================================================================
// STORE - Persistence interface for the ledger
// =============================================================================

// Store persists records, movements and transfers.
//
// Record writes and movement appends must happen inside one WithTx unit;
// the Ledger guarantees that. Getters return (nil, nil) when absent.
type Store interface {
	core.Transactor

	// GetStockRecord reads the current record. Inside a unit this is the
	// locked, up-to-date value.
	GetStockRecord(ctx context.Context, family Family, key StockKey) (*StockRecord, error)

	// SaveStockRecord inserts or updates a record by ID.
	SaveStockRecord(ctx context.Context, rec StockRecord) error

	ListStockRecords(ctx context.Context, family Family) ([]StockRecord, error)

	// AppendMovement adds a movement. Append-only.
	AppendMovement(ctx context.Context, m Movement) error

	// ListMovements returns matching movements in creation order.
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)

	// SaveTransfer inserts or updates a transfer with its lines.
	SaveTransfer(ctx context.Context, t Transfer) error
	GetTransfer(ctx context.Context, id TransferID) (*Transfer, error)
	ListTransfers(ctx context.Context, family Family) ([]Transfer, error)
}
