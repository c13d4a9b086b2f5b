package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/orderflow/catalog"
)

// =============================================================================
// CATALOG HANDLERS
// =============================================================================
//
// Catalog maintenance writes straight to the store; the catalog has no
// rules beyond what variant resolution checks.
//
//   POST   /api/catalog/products
//   GET    /api/catalog/products/{id}
//   POST   /api/catalog/colors
//   POST   /api/catalog/material-colors
//   GET    /api/catalog/bundles/{id}/components
//   POST   /api/catalog/bundles/{id}/components
//   POST   /api/catalog/bundles/{id}/color-mappings
//   POST   /api/catalog/bundles/{id}/presets
//   POST   /api/catalog/variants/resolve
//   GET    /api/catalog/variants/{id}

// SaveProduct creates or updates a product.
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p := catalog.Product{
		ID:                  catalog.ProductID(req.ID),
		Name:                req.Name,
		IsBundle:            req.IsBundle,
		PrimaryMaterialID:   catalog.MaterialID(req.PrimaryMaterialID),
		SecondaryMaterialID: catalog.MaterialID(req.SecondaryMaterialID),
	}
	if err := h.Catalog.SaveProduct(r.Context(), p); err != nil {
		h.writeDomainError(w, r, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetProduct returns one product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProduct(r.Context(), catalog.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get product", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, ProductRequest{
		ID:                  string(p.ID),
		Name:                p.Name,
		IsBundle:            p.IsBundle,
		PrimaryMaterialID:   string(p.PrimaryMaterialID),
		SecondaryMaterialID: string(p.SecondaryMaterialID),
	})
}

// SaveColor creates or updates a color.
func (h *Handler) SaveColor(w http.ResponseWriter, r *http.Request) {
	var req ColorRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.Catalog.SaveColor(r.Context(), catalog.Color{ID: catalog.ColorID(req.ID), Name: req.Name}); err != nil {
		h.writeDomainError(w, r, "Failed to save color", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SaveMaterialColor creates or updates a material color.
func (h *Handler) SaveMaterialColor(w http.ResponseWriter, r *http.Request) {
	var req MaterialColorRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	mc := catalog.MaterialColor{
		ID:         catalog.MaterialColorID(req.ID),
		MaterialID: catalog.MaterialID(req.MaterialID),
		Name:       req.Name,
	}
	if err := h.Catalog.SaveMaterialColor(r.Context(), mc); err != nil {
		h.writeDomainError(w, r, "Failed to save material color", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// bundle loads the bundle product named in the URL.
func (h *Handler) bundle(w http.ResponseWriter, r *http.Request) (*catalog.Product, bool) {
	p, err := h.Catalog.GetProduct(r.Context(), catalog.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get bundle", err)
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Bundle not found", nil)
		return nil, false
	}
	if !p.IsBundle {
		writeError(w, http.StatusUnprocessableEntity, "Product is not a bundle", nil)
		return nil, false
	}
	return p, true
}

// ListBundleComponents returns a bundle's configured components.
func (h *Handler) ListBundleComponents(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	comps, err := h.Catalog.ListBundleComponents(r.Context(), b.ID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list components", err)
		return
	}
	out := make([]BundleComponentRequest, 0, len(comps))
	for _, c := range comps {
		out = append(out, BundleComponentRequest{ComponentID: string(c.ComponentID), Quantity: c.Quantity})
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveBundleComponent configures one component multiplier.
func (h *Handler) SaveBundleComponent(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	var req BundleComponentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	c := catalog.BundleComponent{BundleID: b.ID, ComponentID: catalog.ProductID(req.ComponentID), Quantity: req.Quantity}
	if err := h.Catalog.SaveBundleComponent(r.Context(), c); err != nil {
		h.writeDomainError(w, r, "Failed to save component", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SaveColorMapping maps a bundle color to a component color.
func (h *Handler) SaveColorMapping(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	var req ColorMappingRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	m := catalog.BundleColorMapping{
		BundleID:         b.ID,
		BundleColorID:    catalog.ColorID(req.BundleColorID),
		ComponentID:      catalog.ProductID(req.ComponentID),
		ComponentColorID: catalog.ColorID(req.ComponentColorID),
	}
	if err := h.Catalog.SaveBundleColorMapping(r.Context(), m); err != nil {
		h.writeDomainError(w, r, "Failed to save color mapping", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SavePreset stores a preset with its components in one unit.
func (h *Handler) SavePreset(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	var req PresetRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	err := h.Catalog.WithTx(r.Context(), func(ctx context.Context) error {
		preset := catalog.BundlePreset{ID: catalog.PresetID(req.ID), BundleID: b.ID, Name: req.Name}
		if err := h.Catalog.SaveBundlePreset(ctx, preset); err != nil {
			return err
		}
		for _, c := range req.Components {
			pc := catalog.BundlePresetComponent{
				PresetID:                 preset.ID,
				ComponentID:              catalog.ProductID(c.ComponentID),
				PrimaryMaterialColorID:   catalog.MaterialColorID(c.PrimaryMaterialColorID),
				SecondaryMaterialColorID: catalog.MaterialColorID(c.SecondaryMaterialColorID),
			}
			if err := h.Catalog.SaveBundlePresetComponent(ctx, pc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to save preset", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ResolveVariant returns the variant for an item reference, creating it
// when the combination is new.
func (h *Handler) ResolveVariant(w http.ResponseWriter, r *http.Request) {
	var req ItemRef
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	id, err := h.Variants.Resolve(r.Context(), req.toRef())
	if err != nil {
		h.writeDomainError(w, r, "Failed to resolve variant", err)
		return
	}
	v, err := h.Variants.Variant(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load variant", err)
		return
	}
	writeJSON(w, http.StatusOK, toVariantDTO(*v))
}

// GetVariant returns one variant.
func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	v, err := h.Variants.Variant(r.Context(), catalog.VariantID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get variant", err)
		return
	}
	writeJSON(w, http.StatusOK, toVariantDTO(*v))
}
