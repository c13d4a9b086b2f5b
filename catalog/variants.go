package catalog

import (
	"context"
	"fmt"

	"github.com/warp/orderflow/core"
)

// =============================================================================
// RESOLVER - Attributes to canonical VariantID
// =============================================================================

// Resolver turns a VariantRef into a canonical VariantID.
//
// INVARIANT: two refs describing the same attributes resolve to the same ID.
// Creation happens inside a unit, so concurrent first uses converge on one
// variant (the store also enforces key uniqueness).
type Resolver struct {
	store Store
	clock core.Clock
}

func NewResolver(store Store, clock core.Clock) *Resolver {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Resolver{store: store, clock: clock}
}

// Resolve returns the variant ID for ref, creating the variant on first use.
func (r *Resolver) Resolve(ctx context.Context, ref VariantRef) (VariantID, error) {
	if ref.ID != "" {
		return r.byID(ctx, ref)
	}

	var id VariantID
	err := r.store.WithTx(ctx, func(ctx context.Context) error {
		if err := r.ValidateKey(ctx, ref.Key); err != nil {
			return err
		}
		existing, err := r.store.FindVariant(ctx, ref.Key)
		if err != nil {
			return err
		}
		if existing != nil {
			id = existing.ID
			return nil
		}
		v := Variant{
			ID:        VariantID(core.NewID("var")),
			Key:       ref.Key,
			Active:    true,
			CreatedAt: r.clock.Now(),
		}
		if err := r.store.SaveVariant(ctx, v); err != nil {
			return fmt.Errorf("failed to create variant: %w", err)
		}
		id = v.ID
		return nil
	})
	return id, err
}

// Lookup returns the variant ID for ref without creating anything.
// An attribute ref with no variant yet yields "" and no error.
func (r *Resolver) Lookup(ctx context.Context, ref VariantRef) (VariantID, error) {
	if ref.ID != "" {
		return r.byID(ctx, ref)
	}
	if err := checkShape(ref.Key); err != nil {
		return "", err
	}
	v, err := r.store.FindVariant(ctx, ref.Key)
	if err != nil || v == nil {
		return "", err
	}
	return v.ID, nil
}

// Variant loads a variant by ID.
func (r *Resolver) Variant(ctx context.Context, id VariantID) (*Variant, error) {
	v, err := r.store.GetVariant(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, id)
	}
	return v, nil
}

func (r *Resolver) byID(ctx context.Context, ref VariantRef) (VariantID, error) {
	v, err := r.Variant(ctx, ref.ID)
	if err != nil {
		return "", err
	}
	if !ref.Key.IsZero() && ref.Key != v.Key {
		return "", fmt.Errorf("%w: variant %s does not match supplied attributes", ErrVariantKeyConflict, ref.ID)
	}
	return v.ID, nil
}

// ValidateKey checks the key shape and that material colors belong to the
// product's materials.
func (r *Resolver) ValidateKey(ctx context.Context, key VariantKey) error {
	if err := checkShape(key); err != nil {
		return err
	}

	product, err := r.store.GetProduct(ctx, key.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("%w: %s", ErrProductNotFound, key.ProductID)
	}
	if product.IsBundle {
		return fmt.Errorf("%w: %s", ErrBundleNotStockable, product.ID)
	}

	if key.PrimaryMaterialColorID != "" {
		if err := r.checkMaterial(ctx, product, "primary", product.PrimaryMaterialID, key.PrimaryMaterialColorID); err != nil {
			return err
		}
	}
	if key.SecondaryMaterialColorID != "" {
		if err := r.checkMaterial(ctx, product, "secondary", product.SecondaryMaterialID, key.SecondaryMaterialColorID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) checkMaterial(ctx context.Context, product *Product, slot string, want MaterialID, colorID MaterialColorID) error {
	mismatch := &MaterialMismatchError{ProductID: product.ID, Slot: slot, ColorID: colorID}
	if want == "" {
		return mismatch
	}
	mc, err := r.store.GetMaterialColor(ctx, colorID)
	if err != nil {
		return err
	}
	if mc == nil {
		return fmt.Errorf("%w: %s", ErrMaterialColorNotFound, colorID)
	}
	if mc.MaterialID != want {
		return mismatch
	}
	return nil
}

func checkShape(key VariantKey) error {
	if key.ProductID == "" {
		return fmt.Errorf("%w: product is required", ErrVariantKeyIncomplete)
	}
	if key.ColorID != "" && (key.PrimaryMaterialColorID != "" || key.SecondaryMaterialColorID != "") {
		return fmt.Errorf("%w: color cannot be combined with material colors", ErrVariantKeyConflict)
	}
	if key.ColorID == "" && key.PrimaryMaterialColorID == "" {
		return ErrVariantKeyIncomplete
	}
	return nil
}
