/*
handlers.go - HTTP API handlers for the order flow core

PURPOSE:
  Exposes production orders, the quantity ledger, sales orders and the
  catalog over REST. Handlers parse and validate the request, call one
  domain operation, and serialize the result. No business rule lives here.

ENDPOINTS:
  Statuses:
    GET    /api/statuses                       Registry, transition map, choices
    GET    /api/statuses/{code}/transitions    Allowed next statuses

  Production orders:
    GET    /api/orders                         List (?status=a,b&sales_line_id=&limit=)
    POST   /api/orders                         Create in status NEW
    GET    /api/orders/active                  Active orders, grouped
    POST   /api/orders/status                  Batch status change (all or nothing)
    GET    /api/orders/{id}                    Get one
    GET    /api/orders/{id}/history            Status history
    POST   /api/orders/{id}/status             Single status change

  Stock (family = finished | wip): see inventory.go
  Sales orders and provisioning:   see sales.go
  Catalog:                         see catalog.go
  Admin:                           see admin.go

ACTOR:
  Every mutation is attributed to the X-Actor header, "api" when absent.

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status derived from the domain
  error classifiers:
  - 400: malformed body, failed validation
  - 404: resource not found
  - 409: conflicting state (transition, stock, transfer, provisioning lock)
  - 422: well-formed but unprocessable input (unknown status, bundle)
  - 500: internal errors

SEE ALSO:
  - dto.go:    request/response types
  - server.go: router and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog     catalog.Store
	Variants    *catalog.Resolver
	Ledger      *inventory.Ledger
	Orders      *production.Service
	Sales       *sales.Service
	Provisioner *sales.Provisioner
	Auditor     *Auditor

	// Reset wipes all data. Nil disables /api/admin/reset.
	Reset func(ctx context.Context) error

	log      *logrus.Entry
	validate *validator.Validate
}

// Deps groups the collaborators NewHandler needs.
type Deps struct {
	Catalog     catalog.Store
	Variants    *catalog.Resolver
	Ledger      *inventory.Ledger
	Orders      *production.Service
	Sales       *sales.Service
	Provisioner *sales.Provisioner
	Auditor     *Auditor
	Reset       func(ctx context.Context) error
	Log         *logrus.Entry
}

// NewHandler creates a handler over the given services.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logrus.WithField("component", "api")
	}
	return &Handler{
		Catalog:     d.Catalog,
		Variants:    d.Variants,
		Ledger:      d.Ledger,
		Orders:      d.Orders,
		Sales:       d.Sales,
		Provisioner: d.Provisioner,
		Auditor:     d.Auditor,
		Reset:       d.Reset,
		log:         log,
		validate:    validator.New(),
	}
}

const actorHeader = "X-Actor"

func actorFrom(r *http.Request) core.Actor {
	if a := strings.TrimSpace(r.Header.Get(actorHeader)); a != "" {
		return core.Actor(a)
	}
	return "api"
}

// =============================================================================
// STATUS REGISTRY HANDLERS
// =============================================================================

// ListStatuses returns the registry with transitions and choice lists.
// GET /api/statuses?legacy=true
func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	includeLegacy := r.URL.Query().Get("legacy") == "true"

	var statuses []StatusDTO
	for _, d := range production.Definitions() {
		if d.Legacy && !includeLegacy {
			continue
		}
		statuses = append(statuses, StatusDTO{
			Code:        d.Code,
			Label:       d.Label,
			Terminal:    d.Terminal,
			Legacy:      d.Legacy,
			Transitions: production.AllowedTransitions(d.Code),
		})
	}

	writeJSON(w, http.StatusOK, StatusesResponse{
		Statuses:    statuses,
		Transitions: production.TransitionMap(includeLegacy),
		Choices:     production.Choices(includeLegacy, true),
		BulkChoices: production.BulkChoices(),
	})
}

// GetTransitions returns the statuses reachable from one status.
// GET /api/statuses/{code}/transitions
func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	code, err := production.ParseStatus(chi.URLParam(r, "code"))
	if err != nil {
		h.writeDomainError(w, r, "Unknown status", err)
		return
	}
	writeJSON(w, http.StatusOK, production.AllowedTransitions(code))
}

// =============================================================================
// PRODUCTION ORDER HANDLERS
// =============================================================================

// ListOrders returns orders oldest first.
// GET /api/orders?status=doing,on_hold&sales_line_id=...&limit=50
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := production.OrderFilter{SalesLineID: core.SalesLineID(q.Get("sales_line_id"))}

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := production.ParseStatus(part)
			if err != nil {
				h.writeDomainError(w, r, "Invalid status filter", err)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	orders, err := h.Orders.ListOrders(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(orders))
}

// ActiveOrders returns non-finished orders grouped by status.
// GET /api/orders/active
func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ActiveOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list active orders", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(orders))
}

// CreateOrder creates a production order in status NEW.
// POST /api/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.Orders.CreateOrder(r.Context(), production.NewOrder{
		Item:        req.Item.toRef(),
		Embroidery:  req.Embroidery,
		Urgent:      req.Urgent,
		Marketplace: req.Marketplace,
		Comment:     req.Comment,
		SalesLineID: core.SalesLineID(req.SalesLineID),
	}, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrder returns one order.
// GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetOrder(r.Context(), core.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetOrderHistory returns an order's status history oldest first.
// GET /api/orders/{id}/history
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Orders.History(r.Context(), core.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get history", err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(entries))
}

// ChangeOrderStatus moves one order.
// POST /api/orders/{id}/status
func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.Orders.Transition(r.Context(), core.OrderID(chi.URLParam(r, "id")), req.Status, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to change status", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// BatchChangeStatus moves several orders in one unit.
// POST /api/orders/status
func (h *Handler) BatchChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req BatchStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ids := make([]core.OrderID, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		ids = append(ids, core.OrderID(id))
	}

	orders, err := h.Orders.ChangeOrderStatus(r.Context(), ids, req.Status, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to change statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes a 400 and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case sales.IsConflict(err),
		errors.Is(err, production.ErrInvalidTransition),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrTransferState),
		errors.Is(err, catalog.ErrVariantKeyConflict),
		errors.Is(err, sales.ErrSalesOrderClosed):
		return http.StatusConflict
	case sales.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, production.ErrNoOrders):
		return http.StatusBadRequest
	case sales.IsClientError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with its mapped status. Server errors are
// logged; their details are not exposed.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error(message)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
