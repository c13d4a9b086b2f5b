/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry JSON tags (production.Order, sales.SalesOrder, sales.Line)
  are returned as-is; everything else goes through a DTO here.

NAMING CONVENTION:
  - *DTO:      response types returned to clients
  - *Request:  request body types from clients
  - *Response: wrappers

VALIDATION:
  Request types carry go-playground/validator tags. decodeAndValidate in
  handlers.go rejects a body with 400 before any domain call. Domain rules
  (positive quantity, reason direction, transitions) stay in the domain.

SEE ALSO:
  - handlers.go: decodeAndValidate, writeError
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/sales"
)

// =============================================================================
// SHARED
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ItemRef addresses a variant either by ID or by attributes.
type ItemRef struct {
	VariantID                string `json:"variant_id" validate:"required_without=ProductID"`
	ProductID                string `json:"product_id"`
	ColorID                  string `json:"color_id"`
	PrimaryMaterialColorID   string `json:"primary_material_color_id"`
	SecondaryMaterialColorID string `json:"secondary_material_color_id"`
}

func (r ItemRef) toRef() catalog.VariantRef {
	return catalog.VariantRef{
		ID: catalog.VariantID(r.VariantID),
		Key: catalog.VariantKey{
			ProductID:                catalog.ProductID(r.ProductID),
			ColorID:                  catalog.ColorID(r.ColorID),
			PrimaryMaterialColorID:   catalog.MaterialColorID(r.PrimaryMaterialColorID),
			SecondaryMaterialColorID: catalog.MaterialColorID(r.SecondaryMaterialColorID),
		},
	}
}

// =============================================================================
// PRODUCTION ORDERS
// =============================================================================

type CreateOrderRequest struct {
	Item        ItemRef `json:"item"`
	Embroidery  bool    `json:"embroidery"`
	Urgent      bool    `json:"urgent"`
	Marketplace bool    `json:"marketplace"`
	Comment     string  `json:"comment" validate:"max=2000"`
	SalesLineID string  `json:"sales_line_id"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type BatchStatusRequest struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1,dive,required"`
	Status   string   `json:"status" validate:"required"`
}

type HistoryDTO struct {
	Status production.Status `json:"status"`
	Label  string            `json:"label"`
	Actor  core.Actor        `json:"actor"`
	At     time.Time         `json:"at"`
}

func toHistoryDTOs(entries []production.HistoryEntry) []HistoryDTO {
	out := make([]HistoryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryDTO{Status: e.Status, Label: e.Status.Label(), Actor: e.Actor, At: e.At})
	}
	return out
}

// StatusDTO describes one registry entry with its exits.
type StatusDTO struct {
	Code        production.Status   `json:"code"`
	Label       string              `json:"label"`
	Terminal    bool                `json:"terminal"`
	Legacy      bool                `json:"legacy"`
	Transitions []production.Status `json:"transitions"`
}

type StatusesResponse struct {
	Statuses    []StatusDTO                               `json:"statuses"`
	Transitions map[production.Status][]production.Status `json:"transitions"`
	Choices     []production.Choice                       `json:"choices"`
	BulkChoices []production.Choice                       `json:"bulk_choices"`
}

// =============================================================================
// STOCK
// =============================================================================

type StockRecordDTO struct {
	ID        inventory.RecordID   `json:"id"`
	Family    inventory.Family     `json:"family"`
	Location  inventory.LocationID `json:"location"`
	VariantID catalog.VariantID    `json:"variant_id"`
	Quantity  decimal.Decimal      `json:"quantity"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func toStockRecordDTO(r inventory.StockRecord) StockRecordDTO {
	return StockRecordDTO{
		ID:        r.ID,
		Family:    r.Family,
		Location:  r.Location,
		VariantID: r.Variant,
		Quantity:  r.Quantity,
		UpdatedAt: r.UpdatedAt,
	}
}

type MovementDTO struct {
	ID          inventory.MovementID `json:"id"`
	Location    inventory.LocationID `json:"location"`
	VariantID   catalog.VariantID    `json:"variant_id"`
	Change      decimal.Decimal      `json:"change"`
	Reason      inventory.Reason     `json:"reason"`
	OrderID     core.OrderID         `json:"order_id,omitempty"`
	SalesLineID core.SalesLineID     `json:"sales_line_id,omitempty"`
	TransferID  inventory.TransferID `json:"transfer_id,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	Actor       core.Actor           `json:"actor"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toMovementDTOs(ms []inventory.Movement) []MovementDTO {
	out := make([]MovementDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, MovementDTO{
			ID:          m.ID,
			Location:    m.Location,
			VariantID:   m.Variant,
			Change:      m.Change,
			Reason:      m.Reason,
			OrderID:     m.OrderID,
			SalesLineID: m.SalesLineID,
			TransferID:  m.TransferID,
			Notes:       m.Notes,
			Actor:       m.Actor,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out
}

type QuantityResponse struct {
	Family   inventory.Family     `json:"family"`
	Location inventory.LocationID `json:"location"`
	Quantity decimal.Decimal      `json:"quantity"`
}

// PostingRequest adds or removes stock.
type PostingRequest struct {
	Direction   string          `json:"direction" validate:"required,oneof=add remove"`
	Location    string          `json:"location" validate:"required"`
	Item        ItemRef         `json:"item"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason" validate:"required"`
	OrderID     string          `json:"order_id"`
	SalesLineID string          `json:"sales_line_id"`
	Notes       string          `json:"notes" validate:"max=2000"`
}

type TransferItemRequest struct {
	Item     ItemRef         `json:"item"`
	Quantity decimal.Decimal `json:"quantity"`
}

type TransferRequest struct {
	From  string                `json:"from" validate:"required"`
	To    string                `json:"to" validate:"required"`
	Items []TransferItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes string                `json:"notes" validate:"max=2000"`
	// Draft stores the transfer without moving stock.
	Draft bool `json:"draft"`
}

type TransferLineDTO struct {
	VariantID catalog.VariantID `json:"variant_id"`
	Quantity  decimal.Decimal   `json:"quantity"`
}

type TransferDTO struct {
	ID          inventory.TransferID     `json:"id"`
	Family      inventory.Family         `json:"family"`
	From        inventory.LocationID     `json:"from"`
	To          inventory.LocationID     `json:"to"`
	Status      inventory.TransferStatus `json:"status"`
	Lines       []TransferLineDTO        `json:"lines"`
	Actor       core.Actor               `json:"actor"`
	Notes       string                   `json:"notes,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

func toTransferDTO(t inventory.Transfer) TransferDTO {
	lines := make([]TransferLineDTO, 0, len(t.Lines))
	for _, l := range t.Lines {
		lines = append(lines, TransferLineDTO{VariantID: l.Variant, Quantity: l.Quantity})
	}
	return TransferDTO{
		ID:          t.ID,
		Family:      t.Family,
		From:        t.From,
		To:          t.To,
		Status:      t.Status,
		Lines:       lines,
		Actor:       t.Actor,
		Notes:       t.Notes,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

// =============================================================================
// SALES
// =============================================================================

type ComponentSelectionRequest struct {
	ComponentID              string `json:"component_id" validate:"required"`
	ColorID                  string `json:"color_id"`
	PrimaryMaterialColorID   string `json:"primary_material_color_id"`
	SecondaryMaterialColorID string `json:"secondary_material_color_id"`
}

type SalesLineRequest struct {
	ProductID                string                      `json:"product_id" validate:"required"`
	ColorID                  string                      `json:"color_id"`
	PrimaryMaterialColorID   string                      `json:"primary_material_color_id"`
	SecondaryMaterialColorID string                      `json:"secondary_material_color_id"`
	PresetID                 string                      `json:"preset_id"`
	Components               []ComponentSelectionRequest `json:"components" validate:"dive"`
	Quantity                 int                         `json:"quantity" validate:"required,min=1"`
	ProductionMode           string                      `json:"production_mode" validate:"omitempty,oneof=auto manual_production force_production"`
}

func (r SalesLineRequest) toLine() sales.Line {
	line := sales.Line{
		ProductID:                catalog.ProductID(r.ProductID),
		ColorID:                  catalog.ColorID(r.ColorID),
		PrimaryMaterialColorID:   catalog.MaterialColorID(r.PrimaryMaterialColorID),
		SecondaryMaterialColorID: catalog.MaterialColorID(r.SecondaryMaterialColorID),
		PresetID:                 catalog.PresetID(r.PresetID),
		Quantity:                 r.Quantity,
		Mode:                     sales.ProductionMode(r.ProductionMode),
	}
	for _, c := range r.Components {
		line.Components = append(line.Components, sales.ComponentSelection{
			ComponentID:              catalog.ProductID(c.ComponentID),
			ColorID:                  catalog.ColorID(c.ColorID),
			PrimaryMaterialColorID:   catalog.MaterialColorID(c.PrimaryMaterialColorID),
			SecondaryMaterialColorID: catalog.MaterialColorID(c.SecondaryMaterialColorID),
		})
	}
	return line
}

type CreateSalesOrderRequest struct {
	Source       string             `json:"source" validate:"required,oneof=site etsy wholesale"`
	CustomerInfo string             `json:"customer_info" validate:"max=2000"`
	Notes        string             `json:"notes" validate:"max=2000"`
	Lines        []SalesLineRequest `json:"lines" validate:"required,min=1,dive"`
	Provision    bool               `json:"provision"`
}

type SalesOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new processing production ready shipped completed cancelled"`
}

// SalesOrderResponse is a sales order with its lines and, after creation
// or provisioning, the production orders that were created.
type SalesOrderResponse struct {
	Order   sales.SalesOrder   `json:"order"`
	Lines   []sales.Line       `json:"lines"`
	Created []production.Order `json:"created_orders,omitempty"`
}

type ProvisionResponse struct {
	Created []production.Order `json:"created_orders"`
}

// =============================================================================
// CATALOG
// =============================================================================

type ProductRequest struct {
	ID                  string `json:"id" validate:"required"`
	Name                string `json:"name" validate:"required"`
	IsBundle            bool   `json:"is_bundle"`
	PrimaryMaterialID   string `json:"primary_material_id"`
	SecondaryMaterialID string `json:"secondary_material_id"`
}

type ColorRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type MaterialColorRequest struct {
	ID         string `json:"id" validate:"required"`
	MaterialID string `json:"material_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
}

type BundleComponentRequest struct {
	ComponentID string `json:"component_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"min=0"`
}

type ColorMappingRequest struct {
	BundleColorID    string `json:"bundle_color_id" validate:"required"`
	ComponentID      string `json:"component_id" validate:"required"`
	ComponentColorID string `json:"component_color_id" validate:"required"`
}

type PresetComponentRequest struct {
	ComponentID              string `json:"component_id" validate:"required"`
	PrimaryMaterialColorID   string `json:"primary_material_color_id"`
	SecondaryMaterialColorID string `json:"secondary_material_color_id"`
}

type PresetRequest struct {
	ID         string                   `json:"id" validate:"required"`
	Name       string                   `json:"name" validate:"required"`
	Components []PresetComponentRequest `json:"components" validate:"dive"`
}

type VariantDTO struct {
	ID                       catalog.VariantID       `json:"id"`
	ProductID                catalog.ProductID       `json:"product_id"`
	ColorID                  catalog.ColorID         `json:"color_id,omitempty"`
	PrimaryMaterialColorID   catalog.MaterialColorID `json:"primary_material_color_id,omitempty"`
	SecondaryMaterialColorID catalog.MaterialColorID `json:"secondary_material_color_id,omitempty"`
	CreatedAt                time.Time               `json:"created_at"`
}

func toVariantDTO(v catalog.Variant) VariantDTO {
	return VariantDTO{
		ID:                       v.ID,
		ProductID:                v.Key.ProductID,
		ColorID:                  v.Key.ColorID,
		PrimaryMaterialColorID:   v.Key.PrimaryMaterialColorID,
		SecondaryMaterialColorID: v.Key.SecondaryMaterialColorID,
		CreatedAt:                v.CreatedAt,
	}
}

// =============================================================================
// ADMIN
// =============================================================================

type DiscrepancyDTO struct {
	Family    inventory.Family     `json:"family"`
	Location  inventory.LocationID `json:"location"`
	VariantID catalog.VariantID    `json:"variant_id"`
	Cached    decimal.Decimal      `json:"cached"`
	Ledger    decimal.Decimal      `json:"ledger"`
}

func toDiscrepancyDTOs(ds []inventory.Discrepancy) []DiscrepancyDTO {
	out := make([]DiscrepancyDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, DiscrepancyDTO{
			Family:    d.Record.Family,
			Location:  d.Record.Location,
			VariantID: d.Record.Variant,
			Cached:    d.Record.Quantity,
			Ledger:    d.Ledger,
		})
	}
	return out
}

// AuditResponse is the combined result of an audit run.
type AuditResponse struct {
	Orders *production.CheckReport `json:"orders"`
	Stock  []DiscrepancyDTO        `json:"stock_drift"`
	OK     bool                    `json:"ok"`
	RanAt  time.Time               `json:"ran_at"`
}
