package sales

import (
	"context"
	"fmt"

	"github.com/warp/orderflow/catalog"
)

// VariantResolver resolves requirement variants. *catalog.Resolver satisfies it.
type VariantResolver interface {
	Resolve(ctx context.Context, ref catalog.VariantRef) (catalog.VariantID, error)
}

// Expander derives requirements from a line.
type Expander struct {
	catalog  BundleCatalog
	variants VariantResolver
}

func NewExpander(cat BundleCatalog, variants VariantResolver) *Expander {
	return &Expander{catalog: cat, variants: variants}
}

type selection struct {
	component catalog.ProductID
	key       catalog.VariantKey
}

// Expand returns the requirements of line. Variants are resolved (and
// created on first use), so callers run it inside their unit.
func (e *Expander) Expand(ctx context.Context, line Line) ([]Requirement, error) {
	if line.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidLine)
	}
	product, err := e.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, line.ProductID)
	}

	if !product.IsBundle {
		if line.PresetID != "" || len(line.Components) > 0 {
			return nil, fmt.Errorf("%w: presets and components apply to bundles only", ErrInvalidLine)
		}
		variant, err := e.variants.Resolve(ctx, catalog.VariantRef{ID: line.VariantID, Key: line.Key()})
		if err != nil {
			return nil, err
		}
		return []Requirement{{ProductID: product.ID, VariantID: variant, Quantity: line.Quantity}}, nil
	}

	selections, err := e.bundleSelections(ctx, line)
	if err != nil {
		return nil, err
	}
	components, err := e.catalog.ListBundleComponents(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	multipliers := catalog.Multipliers(components)

	reqs := make([]Requirement, 0, len(selections))
	for _, sel := range selections {
		variant, err := e.variants.Resolve(ctx, catalog.RefKey(sel.key))
		if err != nil {
			return nil, &BundleExpansionError{LineID: line.ID, Reason: fmt.Sprintf("component %s: %v", sel.component, err)}
		}
		mult, ok := multipliers[sel.component]
		if !ok || mult <= 0 {
			mult = 1
		}
		reqs = append(reqs, Requirement{ProductID: sel.component, VariantID: variant, Quantity: line.Quantity * mult})
	}
	return reqs, nil
}

// Pin copies the component choices a bundle line resolves to today into
// line.Components, so later catalog edits to color mappings or presets do
// not change what the line provisions. Plain lines and lines that already
// carry components are returned unchanged.
func (e *Expander) Pin(ctx context.Context, line Line) (Line, error) {
	if len(line.Components) > 0 {
		return line, nil
	}
	product, err := e.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		return line, err
	}
	if product == nil || !product.IsBundle {
		return line, nil
	}

	selections, err := e.bundleSelections(ctx, line)
	if err != nil {
		return line, err
	}
	pinned := make([]ComponentSelection, 0, len(selections))
	for _, sel := range selections {
		pinned = append(pinned, ComponentSelection{
			ComponentID:              sel.component,
			ColorID:                  sel.key.ColorID,
			PrimaryMaterialColorID:   sel.key.PrimaryMaterialColorID,
			SecondaryMaterialColorID: sel.key.SecondaryMaterialColorID,
		})
	}
	line.Components = pinned
	return line, nil
}

// bundleSelections picks the first declared component source.
func (e *Expander) bundleSelections(ctx context.Context, line Line) ([]selection, error) {
	fail := func(format string, args ...any) error {
		return &BundleExpansionError{LineID: line.ID, Reason: fmt.Sprintf(format, args...)}
	}

	switch {
	case len(line.Components) > 0:
		out := make([]selection, 0, len(line.Components))
		for _, c := range line.Components {
			out = append(out, selection{component: c.ComponentID, key: c.Key()})
		}
		return out, nil

	case line.ColorID != "":
		mappings, err := e.catalog.ListBundleColorMappings(ctx, line.ProductID, line.ColorID)
		if err != nil {
			return nil, err
		}
		if len(mappings) == 0 {
			return nil, fail("no color mapping for bundle color %s", line.ColorID)
		}
		out := make([]selection, 0, len(mappings))
		for _, m := range mappings {
			out = append(out, selection{component: m.ComponentID, key: catalog.ColorKey(m.ComponentID, m.ComponentColorID)})
		}
		return out, nil

	case line.PresetID != "":
		preset, err := e.catalog.GetBundlePreset(ctx, line.PresetID)
		if err != nil {
			return nil, err
		}
		if preset == nil {
			return nil, fail("preset %s not found", line.PresetID)
		}
		if preset.BundleID != line.ProductID {
			return nil, fail("preset %s belongs to bundle %s", preset.ID, preset.BundleID)
		}
		pcs, err := e.catalog.ListBundlePresetComponents(ctx, preset.ID)
		if err != nil {
			return nil, err
		}
		if len(pcs) == 0 {
			return nil, fail("preset %s has no components", preset.ID)
		}
		out := make([]selection, 0, len(pcs))
		for _, pc := range pcs {
			out = append(out, selection{component: pc.ComponentID, key: pc.Key()})
		}
		return out, nil
	}

	return nil, fail("no component colors, color mapping or preset given")
}
