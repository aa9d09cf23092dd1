package handlers

import (
	"net/http"

	"github.com/loanlens/loanlens/internal/application/highlighting"
)

// HighlightHandler exposes the highlight core's two entry points: activate a
// highlight for a clause location, and clear it.
type HighlightHandler struct {
	svc highlighting.Service
}

// NewHighlightHandler builds the handler.
func NewHighlightHandler(svc highlighting.Service) *HighlightHandler {
	return &HighlightHandler{svc: svc}
}

type highlightRequest struct {
	Page    int    `json:"page"`
	Section string `json:"section,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Nonce   string `json:"nonce,omitempty"`
}

// Activate handles POST /api/v1/documents/{id}/highlight. The response is
// the run's terminal state; a request superseded by a newer one reports the
// cancelled state rather than an error.
func (h *HighlightHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.svc.Activate(r.Context(), &highlighting.ActivateInput{
		DocumentID: documentID(r),
		Page:       req.Page,
		Section:    req.Section,
		Snippet:    req.Snippet,
		Nonce:      req.Nonce,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Clear handles DELETE /api/v1/documents/{id}/highlight.
func (h *HighlightHandler) Clear(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Clear(r.Context(), documentID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
