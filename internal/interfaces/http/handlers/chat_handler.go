package handlers

import (
	"net/http"

	"github.com/loanlens/loanlens/internal/application/chat"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// ChatHandler serves document Q&A.
type ChatHandler struct {
	svc chat.Service
}

// NewChatHandler builds the handler.
func NewChatHandler(svc chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Ask handles POST /api/v1/documents/{id}/chat.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.svc.Ask(r.Context(), &chat.AskInput{
		DocumentID:     documentID(r),
		Message:        req.Message,
		ConversationID: common.ID(req.ConversationID),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
