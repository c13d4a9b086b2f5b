/*
Package sales turns customer demand into production orders.

PURPOSE:
  A sales order carries lines; each line asks for a quantity of a product.
  Provisioning expands a line into requirements (one per bundle component
  for bundles), decides how many units to produce under the line's
  production mode, creates that many production orders, and rolls the
  result up into line and sales order statuses.

KEY CONCEPTS:
  - ProductionMode: auto (net of stock), manual (operator decides),
    force (ignore stock)
  - Requirement:    (variant, quantity) derived from a line, never stored
  - Availability:   per-call stock cache so two requirements on the same
    key never count the same unit twice
  - Roll-up:        explicit, idempotent re-derivation of line and sales
    order status; called by provisioning and by order completion

BUNDLE SOURCES (first declared wins):
  1. custom component selections on the line
  2. color mapping for the bundle color chosen on the line
  3. named preset

SEE ALSO:
  - policy.go:    pure status roll-up rules
  - expand.go:    line -> requirements
  - provision.go: Provisioner
*/
package sales

import (
	"time"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
)

// =============================================================================
// SALES ORDER
// =============================================================================

type SalesOrderID string

// Status is a sales order status.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusProduction Status = "production"
	StatusReady      Status = "ready"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusNew: true, StatusProcessing: true, StatusProduction: true, StatusReady: true,
	StatusShipped: true, StatusCompleted: true, StatusCancelled: true,
}

// IsTerminal reports whether roll-up must leave the status alone.
func (s Status) IsTerminal() bool {
	return s == StatusShipped || s == StatusCompleted || s == StatusCancelled
}

// Source is the channel a sales order came from.
type Source string

const (
	SourceSite      Source = "site"
	SourceEtsy      Source = "etsy"
	SourceWholesale Source = "wholesale"
)

func (s Source) Valid() bool {
	return s == SourceSite || s == SourceEtsy || s == SourceWholesale
}

type SalesOrder struct {
	ID           SalesOrderID `json:"id"`
	Source       Source       `json:"source"`
	CustomerInfo string       `json:"customer_info,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	Status       Status       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// =============================================================================
// LINES
// =============================================================================

// ProductionMode is the per-line provisioning policy.
type ProductionMode string

const (
	ModeAuto   ProductionMode = "auto"
	ModeManual ProductionMode = "manual_production"
	ModeForce  ProductionMode = "force_production"
)

func (m ProductionMode) Valid() bool {
	return m == ModeAuto || m == ModeManual || m == ModeForce
}

// ProductionStatus is the derived status of a line.
type ProductionStatus string

const (
	ProductionPending    ProductionStatus = "pending"
	ProductionInProgress ProductionStatus = "in_progress"
	ProductionDone       ProductionStatus = "done"
)

// ComponentSelection is a customer's explicit choice for one bundle component.
type ComponentSelection struct {
	ComponentID              catalog.ProductID       `json:"component_id"`
	ColorID                  catalog.ColorID         `json:"color_id,omitempty"`
	PrimaryMaterialColorID   catalog.MaterialColorID `json:"primary_material_color_id,omitempty"`
	SecondaryMaterialColorID catalog.MaterialColorID `json:"secondary_material_color_id,omitempty"`
}

func (c ComponentSelection) Key() catalog.VariantKey {
	return catalog.VariantKey{
		ProductID:                c.ComponentID,
		ColorID:                  c.ColorID,
		PrimaryMaterialColorID:   c.PrimaryMaterialColorID,
		SecondaryMaterialColorID: c.SecondaryMaterialColorID,
	}
}

// Line is one product request of a sales order.
//
// For a plain product the color fields address the variant. For a bundle,
// ColorID is the bundle color (mapping source), PresetID names a preset,
// and Components holds custom selections.
type Line struct {
	ID                       core.SalesLineID        `json:"id"`
	OrderID                  SalesOrderID            `json:"order_id"`
	ProductID                catalog.ProductID       `json:"product_id"`
	VariantID                catalog.VariantID       `json:"variant_id,omitempty"`
	ColorID                  catalog.ColorID         `json:"color_id,omitempty"`
	PrimaryMaterialColorID   catalog.MaterialColorID `json:"primary_material_color_id,omitempty"`
	SecondaryMaterialColorID catalog.MaterialColorID `json:"secondary_material_color_id,omitempty"`
	PresetID                 catalog.PresetID        `json:"preset_id,omitempty"`
	Components               []ComponentSelection    `json:"components,omitempty"`
	Quantity                 int                     `json:"quantity"`
	Mode                     ProductionMode          `json:"production_mode"`
	ProductionStatus         ProductionStatus        `json:"production_status"`
}

// Key returns the variant key of a plain-product line.
func (l Line) Key() catalog.VariantKey {
	return catalog.VariantKey{
		ProductID:                l.ProductID,
		ColorID:                  l.ColorID,
		PrimaryMaterialColorID:   l.PrimaryMaterialColorID,
		SecondaryMaterialColorID: l.SecondaryMaterialColorID,
	}
}

// Requirement is a derived (variant, quantity) demand.
type Requirement struct {
	ProductID catalog.ProductID
	VariantID catalog.VariantID
	Quantity  int
}
