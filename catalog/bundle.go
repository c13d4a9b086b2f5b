package catalog

// =============================================================================
// BUNDLES
// =============================================================================
//
// A bundle line on a sales order expands into one requirement per component.
// The component color comes from one of three configurations:
//   - a per-line custom selection (stored on the sales line)
//   - a BundleColorMapping keyed by the bundle color the customer chose
//   - a BundlePreset listing components with material colors

// BundleComponent says how many of a component one bundle contains.
type BundleComponent struct {
	BundleID    ProductID
	ComponentID ProductID
	Quantity    int
}

// BundleColorMapping fixes the component color for a chosen bundle color.
type BundleColorMapping struct {
	BundleID         ProductID
	BundleColorID    ColorID
	ComponentID      ProductID
	ComponentColorID ColorID
}

// BundlePreset is a named set of component material colors for one bundle.
type BundlePreset struct {
	ID       PresetID
	BundleID ProductID
	Name     string
}

type BundlePresetComponent struct {
	PresetID                 PresetID
	ComponentID              ProductID
	PrimaryMaterialColorID   MaterialColorID
	SecondaryMaterialColorID MaterialColorID
}

// Key returns the variant key of the preset component.
func (c BundlePresetComponent) Key() VariantKey {
	return MaterialKey(c.ComponentID, c.PrimaryMaterialColorID, c.SecondaryMaterialColorID)
}

// Multipliers indexes component quantities by component.
func Multipliers(components []BundleComponent) map[ProductID]int {
	m := make(map[ProductID]int, len(components))
	for _, c := range components {
		m[c.ComponentID] = c.Quantity
	}
	return m
}
