package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/loanlens/loanlens/internal/application/chat"
	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

type mockChatService struct {
	mock.Mock
}

func (m *mockChatService) Ask(ctx context.Context, input *chat.AskInput) (*chat.AskResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.AskResult), args.Error(1)
}

func chatRouter(svc chat.Service) chi.Router {
	h := NewChatHandler(svc)
	return newTestRouter(func(r chi.Router) {
		r.Post("/{id}/chat", h.Ask)
	})
}

func TestChatHandler_Ask(t *testing.T) {
	svc := new(mockChatService)
	svc.On("Ask", mock.Anything, &chat.AskInput{
		DocumentID:     "doc_1234567890ab",
		Message:        "what is the prepayment penalty?",
		ConversationID: "conv_abcdef123456",
	}).Return(&chat.AskResult{
		DocumentID:     "doc_1234567890ab",
		ConversationID: "conv_abcdef123456",
		Response:       "The penalty is 3% of the outstanding balance.",
		References: []domainanalysis.Reference{
			{ClauseID: "hc_001", Page: 4, Section: "Prepayment"},
		},
	}, nil)

	body := `{"message":"what is the prepayment penalty?","conversation_id":"conv_abcdef123456"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc_1234567890ab/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	chatRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result chat.AskResult
	decodeBody(t, rec, &result)
	assert.Equal(t, common.ID("conv_abcdef123456"), result.ConversationID)
	assert.Len(t, result.References, 1)
	assert.Equal(t, 4, result.References[0].Page)
}

func TestChatHandler_Ask_BlankMessage(t *testing.T) {
	svc := new(mockChatService)
	svc.On("Ask", mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeChatMessageEmpty, "message must not be empty"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc_1234567890ab/chat", strings.NewReader(`{"message":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	chatRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChatHandler_Ask_NoBackend(t *testing.T) {
	svc := new(mockChatService)
	svc.On("Ask", mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeAnalyzerUnavailable, "chat requires an LLM backend"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc_1234567890ab/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	chatRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatHandler_Ask_MalformedBody(t *testing.T) {
	svc := new(mockChatService)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc_1234567890ab/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	chatRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}
