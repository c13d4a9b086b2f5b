package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrMaterialColorNotFound = errors.New("material color not found")
	ErrVariantNotFound       = errors.New("variant not found")
	ErrPresetNotFound        = errors.New("bundle preset not found")

	// ErrVariantKeyIncomplete: neither a color nor a primary material color.
	ErrVariantKeyIncomplete = errors.New("variant key requires color or primary material color")

	// ErrVariantKeyConflict: a color combined with material colors, or an
	// explicit ID that disagrees with the supplied attributes.
	ErrVariantKeyConflict = errors.New("variant key is inconsistent")

	// ErrMaterialMismatch: a material color that does not belong to the
	// product's material.
	ErrMaterialMismatch = errors.New("material color does not match product material")

	ErrBundleNotStockable = errors.New("bundle products have no variants")
)

// MaterialMismatchError details which slot failed.
type MaterialMismatchError struct {
	ProductID ProductID
	Slot      string // "primary" or "secondary"
	ColorID   MaterialColorID
}

func (e *MaterialMismatchError) Error() string {
	return fmt.Sprintf("%s material color %s does not match product %s", e.Slot, e.ColorID, e.ProductID)
}

func (e *MaterialMismatchError) Unwrap() error { return ErrMaterialMismatch }

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrVariantKeyIncomplete) ||
		errors.Is(err, ErrVariantKeyConflict) ||
		errors.Is(err, ErrMaterialMismatch) ||
		errors.Is(err, ErrBundleNotStockable)
}

// IsNotFound returns true if the error indicates a missing catalog entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrMaterialColorNotFound) ||
		errors.Is(err, ErrVariantNotFound) ||
		errors.Is(err, ErrPresetNotFound)
}
