/*
Package inventory is the quantity ledger.

PURPOSE:
  Tracks how many units of each variant sit at each location, for two
  independent families: FINISHED goods and WORK-IN-PROGRESS. Every change
  is an append-only Movement; the StockRecord quantity is a cached fold of
  those movements, written in the same unit as the movement.

CRITICAL INVARIANTS:
  1. record.Quantity == sum(movement.Change) for every record
  2. record.Quantity >= 0, always
  3. Movements are never updated or deleted
  4. The two families never share a record

KEY CONCEPTS:
  - StockKey:  (location, variant), unique per family
  - Reason:    why a movement happened; fixes the sign of the change
  - Book:      the operation set for one family (add/remove/transfer)
  - Transfer:  paired out/in movements under one lifecycle

ADDRESSING:
  Callers pass catalog.VariantRef. The ledger hands it to the catalog
  resolver before touching any record, so attributes and explicit IDs for
  the same combination converge on the same record.

SEE ALSO:
  - ledger.go:    Ledger and Book operations
  - transfer.go:  transfer lifecycle
  - reconcile.go: cache vs movement check
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LocationID string
type RecordID string
type MovementID string
type TransferID string

// Family separates the finished-goods ledger from the WIP ledger.
type Family string

const (
	FamilyFinished Family = "finished"
	FamilyWIP      Family = "wip"
)

// StockKey addresses one record within a family.
type StockKey struct {
	Location LocationID
	Variant  catalog.VariantID
}

// =============================================================================
// REASONS
// =============================================================================

type Reason string

const (
	ReasonProductionIn  Reason = "production_in"
	ReasonOrderOut      Reason = "order_out"
	ReasonAdjustmentIn  Reason = "adjustment_in"
	ReasonAdjustmentOut Reason = "adjustment_out"
	ReasonTransferIn    Reason = "transfer_in"
	ReasonTransferOut   Reason = "transfer_out"
	ReasonReturnIn      Reason = "return_in"
	ReasonWIPIn         Reason = "wip_in"
	ReasonWIPOut        Reason = "wip_out"
	ReasonScrapOut      Reason = "scrap_out"
)

type reasonInfo struct {
	inbound  bool
	families []Family
}

var reasons = map[Reason]reasonInfo{
	ReasonProductionIn:  {true, []Family{FamilyFinished}},
	ReasonOrderOut:      {false, []Family{FamilyFinished}},
	ReasonReturnIn:      {true, []Family{FamilyFinished}},
	ReasonAdjustmentIn:  {true, []Family{FamilyFinished, FamilyWIP}},
	ReasonAdjustmentOut: {false, []Family{FamilyFinished, FamilyWIP}},
	ReasonTransferIn:    {true, []Family{FamilyFinished, FamilyWIP}},
	ReasonTransferOut:   {false, []Family{FamilyFinished, FamilyWIP}},
	ReasonWIPIn:         {true, []Family{FamilyWIP}},
	ReasonWIPOut:        {false, []Family{FamilyWIP}},
	ReasonScrapOut:      {false, []Family{FamilyWIP}},
}

// Inbound reports whether the reason increases stock.
func (r Reason) Inbound() bool { return reasons[r].inbound }

// ValidFor reports whether the reason may be posted to family f.
func (r Reason) ValidFor(f Family) bool {
	info, ok := reasons[r]
	if !ok {
		return false
	}
	for _, fam := range info.families {
		if fam == f {
			return true
		}
	}
	return false
}

// =============================================================================
// RECORDS AND MOVEMENTS
// =============================================================================

// StockRecord is the cached balance for one key.
type StockRecord struct {
	ID        RecordID
	Family    Family
	Location  LocationID
	Variant   catalog.VariantID
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

func (r StockRecord) Key() StockKey {
	return StockKey{Location: r.Location, Variant: r.Variant}
}

// Movement is one signed change against a record. Immutable.
type Movement struct {
	ID          MovementID
	RecordID    RecordID
	Family      Family
	Location    LocationID
	Variant     catalog.VariantID
	Change      decimal.Decimal
	Reason      Reason
	OrderID     core.OrderID
	SalesLineID core.SalesLineID
	TransferID  TransferID
	Notes       string
	Actor       core.Actor
	CreatedAt   time.Time
}

// MovementFilter narrows History. Zero fields match everything.
type MovementFilter struct {
	Family      Family
	Location    LocationID
	Variant     catalog.VariantID
	Reason      Reason
	OrderID     core.OrderID
	SalesLineID core.SalesLineID
	TransferID  TransferID
	RecordID    RecordID
}

// Match reports whether m passes the filter.
func (f MovementFilter) Match(m Movement) bool {
	switch {
	case f.Family != "" && f.Family != m.Family:
		return false
	case f.Location != "" && f.Location != m.Location:
		return false
	case f.Variant != "" && f.Variant != m.Variant:
		return false
	case f.Reason != "" && f.Reason != m.Reason:
		return false
	case f.OrderID != "" && f.OrderID != m.OrderID:
		return false
	case f.SalesLineID != "" && f.SalesLineID != m.SalesLineID:
		return false
	case f.TransferID != "" && f.TransferID != m.TransferID:
		return false
	case f.RecordID != "" && f.RecordID != m.RecordID:
		return false
	}
	return true
}

// Posting is the input to Add and Remove. Quantity is a positive magnitude;
// the direction comes from the operation.
type Posting struct {
	Location    LocationID
	Item        catalog.VariantRef
	Quantity    decimal.Decimal
	Reason      Reason
	OrderID     core.OrderID
	SalesLineID core.SalesLineID
	TransferID  TransferID
	Notes       string
	Actor       core.Actor
}

// =============================================================================
// TRANSFERS
// =============================================================================

type TransferStatus string

const (
	TransferDraft     TransferStatus = "draft"
	TransferInTransit TransferStatus = "in_transit"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

// Transfer moves stock between two locations of one family.
type Transfer struct {
	ID          TransferID
	Family      Family
	From        LocationID
	To          LocationID
	Status      TransferStatus
	Lines       []TransferLine
	Actor       core.Actor
	Notes       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type TransferLine struct {
	Variant  catalog.VariantID
	Quantity decimal.Decimal
}

// TransferItem is a requested transfer line, before variant resolution.
type TransferItem struct {
	Item     catalog.VariantRef
	Quantity decimal.Decimal
}

// TransferRequest describes a transfer to draft or execute.
type TransferRequest struct {
	From  LocationID
	To    LocationID
	Items []TransferItem
	Actor core.Actor
	Notes string
}

// Discrepancy is a record whose cached quantity disagrees with its movements.
type Discrepancy struct {
	Record StockRecord
	Ledger decimal.Decimal
}
