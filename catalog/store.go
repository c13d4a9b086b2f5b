package catalog

import (
	"context"

	"github.com/warp/orderflow/core"
)

// Store persists catalog entities.
//
// Getters return (nil, nil) when the entity does not exist; callers decide
// whether absence is an error.
type Store interface {
	core.Transactor

	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (*Product, error)

	SaveColor(ctx context.Context, c Color) error
	SaveMaterialColor(ctx context.Context, c MaterialColor) error
	GetMaterialColor(ctx context.Context, id MaterialColorID) (*MaterialColor, error)

	// SaveVariant inserts a variant. The key is unique.
	SaveVariant(ctx context.Context, v Variant) error
	GetVariant(ctx context.Context, id VariantID) (*Variant, error)
	FindVariant(ctx context.Context, key VariantKey) (*Variant, error)

	SaveBundleComponent(ctx context.Context, c BundleComponent) error
	ListBundleComponents(ctx context.Context, bundleID ProductID) ([]BundleComponent, error)

	SaveBundleColorMapping(ctx context.Context, m BundleColorMapping) error
	ListBundleColorMappings(ctx context.Context, bundleID ProductID, bundleColorID ColorID) ([]BundleColorMapping, error)

	SaveBundlePreset(ctx context.Context, p BundlePreset) error
	GetBundlePreset(ctx context.Context, id PresetID) (*BundlePreset, error)
	SaveBundlePresetComponent(ctx context.Context, c BundlePresetComponent) error
	ListBundlePresetComponents(ctx context.Context, presetID PresetID) ([]BundlePresetComponent, error)
}
