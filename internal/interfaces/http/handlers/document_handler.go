package handlers

import (
	"io"
	"net/http"

	"github.com/loanlens/loanlens/internal/application/ingestion"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

// uploadFormField is the multipart field the UI posts the file under.
const uploadFormField = "file"

// DocumentHandler serves the upload and listing side of the API.
type DocumentHandler struct {
	svc            ingestion.Service
	maxUploadBytes int64
	logger         logging.Logger
}

// NewDocumentHandler builds the handler. maxUploadBytes bounds one upload
// request body.
func NewDocumentHandler(svc ingestion.Service, maxUploadBytes int64, logger logging.Logger) *DocumentHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger.Named("http.documents")}
}

// Upload handles POST /api/v1/documents: one PDF in a multipart form.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeErrorCode(w, errors.ErrCodeBadRequest, "multipart form field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		// MaxBytesReader surfaces here when the body exceeds the cap.
		writeErrorCode(w, errors.ErrCodeBadRequest, "file exceeds the upload size limit")
		return
	}

	result, err := h.svc.Upload(r.Context(), &ingestion.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /api/v1/documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), documentID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// List handles GET /api/v1/documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	result, err := h.svc.List(r.Context(), &ingestion.ListInput{Page: page, PageSize: pageSize})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
