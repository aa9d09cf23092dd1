package errors_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loanlens/loanlens/pkg/errors"
)

func TestHTTPStatusForCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeDocumentNotFound, http.StatusNotFound},
		{errors.ErrCodeDocumentUnsupported, http.StatusBadRequest},
		{errors.ErrCodeDocumentEmpty, http.StatusUnprocessableEntity},
		{errors.ErrCodeChatMessageEmpty, http.StatusUnprocessableEntity},
		{errors.ErrCodeAnalyzerUnavailable, http.StatusServiceUnavailable},
		{errors.ErrCodeHighlightTargetInvalid, http.StatusBadRequest},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
		{errors.ErrorCode("NOPE_999"), http.StatusInternalServerError}, // unmapped
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, errors.HTTPStatusForCode(tc.code), "code %s", tc.code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "only PDF files are supported",
		errors.DefaultMessageForCode(errors.ErrCodeDocumentUnsupported))
	assert.Equal(t, "unknown error",
		errors.DefaultMessageForCode(errors.ErrorCode("NOPE_999")))
}

func TestClientServerClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsClientError(errors.ErrCodeBadRequest))
	assert.False(t, errors.IsServerError(errors.ErrCodeBadRequest))

	assert.True(t, errors.IsServerError(errors.ErrCodeDatabaseError))
	assert.False(t, errors.IsClientError(errors.ErrCodeDatabaseError))
}

func TestModuleForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DOC", errors.ModuleForCode(errors.ErrCodeDocumentNotFound))
	assert.Equal(t, "HLT", errors.ModuleForCode(errors.ErrCodeHighlightSuperseded))
	assert.Equal(t, "CHAT", errors.ModuleForCode(errors.ErrCodeConversationNotFound))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(errors.ErrorCode("")))
}
