package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
)

// =============================================================================
// STOCK HANDLERS
// =============================================================================
//
//   GET    /api/stock/{family}/records
//   GET    /api/stock/{family}/quantity?location=&variant_id= | product_id=&color_id=...
//   GET    /api/stock/{family}/movements?location=&variant_id=&reason=&order_id=...
//   POST   /api/stock/{family}/postings
//   GET    /api/stock/{family}/transfers
//   POST   /api/stock/{family}/transfers
//   GET    /api/stock/{family}/transfers/{id}
//   POST   /api/stock/{family}/transfers/{id}/complete
//   POST   /api/stock/{family}/transfers/{id}/cancel

func (h *Handler) book(w http.ResponseWriter, r *http.Request) (*inventory.Book, bool) {
	b, err := h.Ledger.Book(inventory.Family(chi.URLParam(r, "family")))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown stock family", err)
		return nil, false
	}
	return b, true
}

// ListStockRecords returns every record of the family.
func (h *Handler) ListStockRecords(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	records, err := b.Records(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list stock", err)
		return
	}
	out := make([]StockRecordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toStockRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetQuantity returns one balance. Unknown combinations are zero.
func (h *Handler) GetQuantity(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	location := inventory.LocationID(q.Get("location"))
	if location == "" {
		writeError(w, http.StatusBadRequest, "location is required", nil)
		return
	}
	item := ItemRef{
		VariantID:                q.Get("variant_id"),
		ProductID:                q.Get("product_id"),
		ColorID:                  q.Get("color_id"),
		PrimaryMaterialColorID:   q.Get("primary_material_color_id"),
		SecondaryMaterialColorID: q.Get("secondary_material_color_id"),
	}
	if item.VariantID == "" && item.ProductID == "" {
		writeError(w, http.StatusBadRequest, "variant_id or product_id is required", nil)
		return
	}

	qty, err := b.Quantity(r.Context(), location, item.toRef())
	if err != nil {
		h.writeDomainError(w, r, "Failed to get quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, QuantityResponse{Family: b.Family(), Location: location, Quantity: qty})
}

// ListMovements returns the family's movements oldest first.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	movements, err := b.History(r.Context(), inventory.MovementFilter{
		Location:    inventory.LocationID(q.Get("location")),
		Variant:     catalog.VariantID(q.Get("variant_id")),
		Reason:      inventory.Reason(q.Get("reason")),
		OrderID:     core.OrderID(q.Get("order_id")),
		SalesLineID: core.SalesLineID(q.Get("sales_line_id")),
		TransferID:  inventory.TransferID(q.Get("transfer_id")),
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to list movements", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTOs(movements))
}

// CreatePosting adds or removes stock with an explicit reason.
func (h *Handler) CreatePosting(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	var req PostingRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p := inventory.Posting{
		Location:    inventory.LocationID(req.Location),
		Item:        req.Item.toRef(),
		Quantity:    req.Quantity,
		Reason:      inventory.Reason(req.Reason),
		OrderID:     core.OrderID(req.OrderID),
		SalesLineID: core.SalesLineID(req.SalesLineID),
		Notes:       req.Notes,
		Actor:       actorFrom(r),
	}

	post := b.Add
	if req.Direction == "remove" {
		post = b.Remove
	}
	qty, err := post(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, r, "Failed to post stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, QuantityResponse{Family: b.Family(), Location: p.Location, Quantity: qty})
}

// ListTransfers returns the family's transfers.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	transfers, err := b.Transfers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list transfers", err)
		return
	}
	out := make([]TransferDTO, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toTransferDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateTransfer executes a transfer, or stores a draft when requested.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	tr := inventory.TransferRequest{
		From:  inventory.LocationID(req.From),
		To:    inventory.LocationID(req.To),
		Actor: actorFrom(r),
		Notes: req.Notes,
	}
	for _, it := range req.Items {
		tr.Items = append(tr.Items, inventory.TransferItem{Item: it.Item.toRef(), Quantity: it.Quantity})
	}

	run := b.Transfer
	if req.Draft {
		run = b.DraftTransfer
	}
	t, err := run(r.Context(), tr)
	if err != nil {
		h.writeDomainError(w, r, "Failed to transfer stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferDTO(*t))
}

// GetTransfer returns one transfer with its lines.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	t, err := b.GetTransfer(r.Context(), inventory.TransferID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// CompleteTransfer moves the stock of a draft transfer.
func (h *Handler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	t, err := b.CompleteTransfer(r.Context(), inventory.TransferID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to complete transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// CancelTransfer cancels a draft transfer.
func (h *Handler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	b, ok := h.book(w, r)
	if !ok {
		return
	}
	t, err := b.CancelTransfer(r.Context(), inventory.TransferID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to cancel transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}
