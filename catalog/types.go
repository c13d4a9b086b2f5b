/*
Package catalog describes what can be produced and stocked.

PURPOSE:
  Products, colors, material colors and the VARIANT: the canonical
  identifier of one (product, color | primary material color [+ secondary])
  combination. Stock records, production orders and sales lines all point
  at a variant, so two callers describing the same attributes always land
  on the same stock record.

KEY CONCEPTS:
  - VariantKey: descriptive attributes (comparable, usable as a map key)
  - VariantRef: either an explicit VariantID or a VariantKey
  - Resolver:   the ONLY place that turns attributes into a VariantID
  - Bundles:    sellable products made of components (see bundle.go)

KEY SHAPE RULE:
  A key uses either a plain Color, or a PrimaryMaterialColor with an
  optional SecondaryMaterialColor. Never both, never neither.

SEE ALSO:
  - variants.go: Resolver
  - inventory: consumes VariantIDs only
*/
package catalog

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type ColorID string
type MaterialID string
type MaterialColorID string
type VariantID string
type PresetID string

// =============================================================================
// CATALOG ENTITIES
// =============================================================================

// Product is a produced or sold model. Bundles are sold, never produced.
type Product struct {
	ID                  ProductID
	Name                string
	IsBundle            bool
	PrimaryMaterialID   MaterialID // empty when the product has no primary material
	SecondaryMaterialID MaterialID
	ArchivedAt          *time.Time
}

type Color struct {
	ID   ColorID
	Name string
}

// MaterialColor is a color of a specific material (fabric, thread...).
type MaterialColor struct {
	ID         MaterialColorID
	MaterialID MaterialID
	Name       string
}

// VariantKey is the descriptive address of a variant.
type VariantKey struct {
	ProductID                ProductID
	ColorID                  ColorID
	PrimaryMaterialColorID   MaterialColorID
	SecondaryMaterialColorID MaterialColorID
}

// IsZero reports whether no attribute is set.
func (k VariantKey) IsZero() bool { return k == VariantKey{} }

// Variant is the canonical stock/production identity.
type Variant struct {
	ID        VariantID
	Key       VariantKey
	Active    bool
	CreatedAt time.Time
}

// VariantRef addresses a variant either explicitly or by attributes.
// When both are set they must agree.
type VariantRef struct {
	ID  VariantID
	Key VariantKey
}

// RefID addresses a variant by its identifier.
func RefID(id VariantID) VariantRef { return VariantRef{ID: id} }

// RefKey addresses a variant by attributes.
func RefKey(k VariantKey) VariantRef { return VariantRef{Key: k} }

// ColorKey builds a plain-color key.
func ColorKey(product ProductID, color ColorID) VariantKey {
	return VariantKey{ProductID: product, ColorID: color}
}

// MaterialKey builds a material-color key. secondary may be empty.
func MaterialKey(product ProductID, primary, secondary MaterialColorID) VariantKey {
	return VariantKey{ProductID: product, PrimaryMaterialColorID: primary, SecondaryMaterialColorID: secondary}
}
