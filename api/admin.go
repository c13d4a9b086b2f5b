package api

import (
	"net/http"
	"strconv"
)

// =============================================================================
// ADMIN HANDLERS
// =============================================================================
//
//   POST   /api/admin/audit?fix=true    Run an audit now
//   GET    /api/admin/audit/last        Most recent audit report
//   POST   /api/admin/reset             Wipe all data (dev only)

// RunAudit runs the consistency check and ledger reconciliation.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusNotFound, "Auditor not configured", nil)
		return
	}
	fix := false
	if raw := r.URL.Query().Get("fix"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid fix flag", err)
			return
		}
		fix = v
	}

	report, err := h.Auditor.RunNow(r.Context(), fix)
	if err != nil {
		h.writeDomainError(w, r, "Audit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(report))
}

// LastAudit returns the most recent audit report.
func (h *Handler) LastAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusNotFound, "Auditor not configured", nil)
		return
	}
	report := h.Auditor.Last()
	if report == nil {
		writeError(w, http.StatusNotFound, "No audit has run yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(report))
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Reset == nil {
		writeError(w, http.StatusNotFound, "Reset not available", nil)
		return
	}
	if err := h.Reset(r.Context()); err != nil {
		h.writeDomainError(w, r, "Failed to reset database", err)
		return
	}
	h.log.WithField("actor", actorFrom(r)).Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func toAuditResponse(r *AuditReport) AuditResponse {
	return AuditResponse{
		Orders: r.Orders,
		Stock:  toDiscrepancyDTOs(r.Stock),
		OK:     r.OK(),
		RanAt:  r.RanAt,
	}
}
