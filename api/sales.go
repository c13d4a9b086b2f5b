package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/sales"
)

// =============================================================================
// SALES ORDER HANDLERS
// =============================================================================
//
//   GET    /api/sales-orders
//   POST   /api/sales-orders
//   GET    /api/sales-orders/{id}
//   POST   /api/sales-orders/{id}/status
//   POST   /api/sales-orders/{id}/provision
//   POST   /api/sales-lines/{id}/provision

// ListSalesOrders returns sales orders newest first.
func (h *Handler) ListSalesOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Sales.ListSalesOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list sales orders", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(orders))
}

// CreateSalesOrder stores an order with its lines, optionally provisioning
// them in the same unit.
func (h *Handler) CreateSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateSalesOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := sales.NewSalesOrder{
		Source:       sales.Source(req.Source),
		CustomerInfo: req.CustomerInfo,
		Notes:        req.Notes,
		Provision:    req.Provision,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, l.toLine())
	}

	order, created, err := h.Sales.CreateSalesOrder(r.Context(), in, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to create sales order", err)
		return
	}
	_, lines, err := h.Sales.GetSalesOrder(r.Context(), order.ID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load sales order", err)
		return
	}
	writeJSON(w, http.StatusCreated, SalesOrderResponse{Order: *order, Lines: nonNil(lines), Created: created})
}

// GetSalesOrder returns one sales order with its lines.
func (h *Handler) GetSalesOrder(w http.ResponseWriter, r *http.Request) {
	order, lines, err := h.Sales.GetSalesOrder(r.Context(), sales.SalesOrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get sales order", err)
		return
	}
	writeJSON(w, http.StatusOK, SalesOrderResponse{Order: *order, Lines: nonNil(lines)})
}

// SetSalesOrderStatus moves a sales order manually.
func (h *Handler) SetSalesOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req SalesOrderStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	order, err := h.Sales.SetStatus(r.Context(), sales.SalesOrderID(chi.URLParam(r, "id")), sales.Status(req.Status), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to set sales order status", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ProvisionSalesOrder provisions every line of a sales order with one
// shared availability view.
func (h *Handler) ProvisionSalesOrder(w http.ResponseWriter, r *http.Request) {
	created, err := h.Provisioner.ProvisionOrder(r.Context(), sales.SalesOrderID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to provision sales order", err)
		return
	}
	writeJSON(w, http.StatusOK, ProvisionResponse{Created: nonNil(created)})
}

// ProvisionLine provisions one sales line.
func (h *Handler) ProvisionLine(w http.ResponseWriter, r *http.Request) {
	created, err := h.Provisioner.Provision(r.Context(), core.SalesLineID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to provision line", err)
		return
	}
	writeJSON(w, http.StatusOK, ProvisionResponse{Created: nonNil(created)})
}
