package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeStorageError       ErrorCode = "COMMON_012"
	ErrCodeMessagingError     ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Sentinel-style aliases used by generic layers.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Document module error codes
const (
	ErrCodeDocumentNotFound    ErrorCode = "DOC_001"
	ErrCodeDocumentUnsupported ErrorCode = "DOC_002"
	ErrCodeDocumentEmpty       ErrorCode = "DOC_003"
	ErrCodeDocumentNotReady    ErrorCode = "DOC_004"
	ErrCodeDocumentStoreFailed ErrorCode = "DOC_005"
	ErrCodeDocumentStateInvalid ErrorCode = "DOC_006"
)

// Analysis / extraction module error codes
const (
	ErrCodeExtractionFailed     ErrorCode = "ANA_001"
	ErrCodeAnalyzerUnavailable  ErrorCode = "ANA_002"
	ErrCodeAnalyzerBadResponse  ErrorCode = "ANA_003"
	ErrCodeAnalysisFailed       ErrorCode = "ANA_004"
	ErrCodeAnalysisNotFound     ErrorCode = "ANA_005"
	ErrCodePageOutOfRange       ErrorCode = "ANA_006"
)

// Highlight module error codes
const (
	ErrCodeHighlightTargetInvalid ErrorCode = "HLT_001"
	ErrCodeHighlightSuperseded    ErrorCode = "HLT_002"
	ErrCodeHighlightSessionClosed ErrorCode = "HLT_003"
)

// Chat module error codes
const (
	ErrCodeChatMessageEmpty     ErrorCode = "CHAT_001"
	ErrCodeConversationNotFound ErrorCode = "CHAT_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeDocumentNotFound:     http.StatusNotFound,
	ErrCodeDocumentUnsupported:  http.StatusBadRequest,
	ErrCodeDocumentEmpty:        http.StatusUnprocessableEntity,
	ErrCodeDocumentNotReady:     http.StatusConflict,
	ErrCodeDocumentStoreFailed:  http.StatusInternalServerError,
	ErrCodeDocumentStateInvalid: http.StatusConflict,

	ErrCodeExtractionFailed:    http.StatusInternalServerError,
	ErrCodeAnalyzerUnavailable: http.StatusServiceUnavailable,
	ErrCodeAnalyzerBadResponse: http.StatusBadGateway,
	ErrCodeAnalysisFailed:      http.StatusInternalServerError,
	ErrCodeAnalysisNotFound:    http.StatusNotFound,
	ErrCodePageOutOfRange:      http.StatusBadRequest,

	ErrCodeHighlightTargetInvalid: http.StatusBadRequest,
	ErrCodeHighlightSuperseded:    http.StatusConflict,
	ErrCodeHighlightSessionClosed: http.StatusGone,

	ErrCodeChatMessageEmpty:     http.StatusUnprocessableEntity,
	ErrCodeConversationNotFound: http.StatusNotFound,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "message broker error",
	ErrCodeExternalService:    "external service error",

	ErrCodeDocumentNotFound:     "document not found",
	ErrCodeDocumentUnsupported:  "only PDF files are supported",
	ErrCodeDocumentEmpty:        "empty file",
	ErrCodeDocumentNotReady:     "document analysis not finished",
	ErrCodeDocumentStoreFailed:  "failed to store document",
	ErrCodeDocumentStateInvalid: "invalid document state transition",

	ErrCodeExtractionFailed:    "document text extraction failed",
	ErrCodeAnalyzerUnavailable: "no analyzer backend configured",
	ErrCodeAnalyzerBadResponse: "analyzer returned malformed response",
	ErrCodeAnalysisFailed:      "document analysis failed",
	ErrCodeAnalysisNotFound:    "analysis results not found",
	ErrCodePageOutOfRange:      "page number out of range",

	ErrCodeHighlightTargetInvalid: "invalid highlight target",
	ErrCodeHighlightSuperseded:    "highlight request superseded",
	ErrCodeHighlightSessionClosed: "highlight session closed",

	ErrCodeChatMessageEmpty:     "message must not be empty",
	ErrCodeConversationNotFound: "conversation not found",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode ("DOC", "HLT", ...).
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
