package handlers

import (
	"net/http"

	"github.com/loanlens/loanlens/internal/application/analysis"
)

// AnalysisHandler serves the four analysis read surfaces. Each returns the
// document's status with the data, so the UI can poll one endpoint while the
// worker runs.
type AnalysisHandler struct {
	svc analysis.Service
}

// NewAnalysisHandler builds the handler.
func NewAnalysisHandler(svc analysis.Service) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// Summary handles GET /api/v1/documents/{id}/summary.
func (h *AnalysisHandler) Summary(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetSummary(r.Context(), documentID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RedFlags handles GET /api/v1/documents/{id}/red-flags.
func (h *AnalysisHandler) RedFlags(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetRedFlags(r.Context(), documentID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HiddenClauses handles GET /api/v1/documents/{id}/hidden-clauses.
func (h *AnalysisHandler) HiddenClauses(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetHiddenClauses(r.Context(), documentID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// FinancialTerms handles GET /api/v1/documents/{id}/financial-terms. The
// optional search parameter filters in the application layer.
func (h *AnalysisHandler) FinancialTerms(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetFinancialTerms(r.Context(), documentID(r), r.URL.Query().Get("search"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
