// Package ingestion is the application service for the document upload path:
// validate the file, store its bytes, persist the metadata row, and publish
// the uploaded event that triggers analysis. It also serves document detail
// and listing, which belong to the lifecycle rather than to analysis.
package ingestion

import (
	"context"
	"time"

	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/messaging/kafka"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Defaults for list pagination.
const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the upload-side application API.
type Service interface {
	// Upload validates and persists one uploaded file and queues it for
	// analysis. It returns once the bytes and the metadata row are durable;
	// the analysis itself is asynchronous.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Get returns the full lifecycle view of one document, including a
	// presigned download link for the original file.
	Get(ctx context.Context, id common.ID) (*DocumentDetail, error)

	// List returns a page of documents, newest first.
	List(ctx context.Context, input *ListInput) (*ListResult, error)
}

// UploadInput carries one decoded multipart upload.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult is the accepted-upload receipt.
type UploadResult struct {
	DocumentID common.ID `json:"document_id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ListInput selects a page of the document listing.
type ListInput struct {
	Page     int
	PageSize int
}

// DocumentDetail is the full lifecycle view of one document.
type DocumentDetail struct {
	DocumentID  common.ID  `json:"document_id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	Status      string     `json:"status"`
	FailureNote string     `json:"failure_note,omitempty"`
	PageCount   int        `json:"page_count,omitempty"`
	Scanned     bool       `json:"scanned,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
}

// DocumentSummary is the compact listing row.
type DocumentSummary struct {
	DocumentID common.ID `json:"document_id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ListResult is one page of the document listing.
type ListResult struct {
	Documents []*DocumentSummary `json:"documents"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

type serviceImpl struct {
	repo      domaindoc.Repository
	store     minio.ObjectStore
	publisher kafka.EventPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// NewService builds the ingestion service. publisher may be nil in tooling
// contexts (the CLI analyzes synchronously); uploads then succeed without
// queueing analysis.
func NewService(
	repo domaindoc.Repository,
	store minio.ObjectStore,
	publisher kafka.EventPublisher,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
) Service {
	if metrics == nil {
		metrics = prometheus.NewNopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		repo:      repo,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("ingestion"),
	}
}

func (s *serviceImpl) Upload(ctx context.Context, input *UploadInput) (*UploadResult, error) {
	doc, err := domaindoc.New(input.Filename, input.ContentType, int64(len(input.Data)))
	if err != nil {
		s.metrics.RecordUpload(false)
		return nil, err
	}

	if _, err := s.store.Put(ctx, doc.StorageKey, input.Data, input.ContentType,
		map[string]string{"filename": input.Filename}); err != nil {
		s.metrics.RecordUpload(false)
		return nil, errors.Wrap(err, errors.ErrCodeDocumentStoreFailed, "storing uploaded file")
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		s.metrics.RecordUpload(false)
		// The object is orphaned without its row; remove it so storage does
		// not accumulate invisible files.
		if delErr := s.store.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Error("removing orphaned upload failed",
				logging.String("document_id", string(doc.ID)),
				logging.String("storage_key", doc.StorageKey),
				logging.Err(delErr))
		}
		return nil, err
	}

	s.publishEvents(ctx, doc)
	s.metrics.RecordUpload(true)

	s.logger.Info("document uploaded",
		logging.String("document_id", string(doc.ID)),
		logging.String("filename", doc.Filename),
		logging.Int64("size_bytes", doc.SizeBytes))

	return &UploadResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		SizeBytes:  doc.SizeBytes,
		Status:     doc.Status.Public(),
		UploadedAt: doc.UploadedAt,
	}, nil
}

// publishEvents drains the document's uncommitted events. A publish failure
// is logged rather than returned: the bytes and the row are already durable,
// and the analyze CLI command can replay a document whose event was lost.
func (s *serviceImpl) publishEvents(ctx context.Context, doc *domaindoc.Document) {
	if s.publisher == nil {
		doc.ClearEvents()
		return
	}
	for _, event := range doc.Events() {
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			s.logger.Error("publishing document event failed",
				logging.String("document_id", string(doc.ID)),
				logging.String("event_type", event.EventType()),
				logging.Err(err))
		}
	}
	doc.ClearEvents()
}

func (s *serviceImpl) Get(ctx context.Context, id common.ID) (*DocumentDetail, error) {
	if err := common.ValidateDocumentID(id); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &DocumentDetail{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		Status:      doc.Status.Public(),
		FailureNote: doc.FailureNote,
		PageCount:   doc.PageCount,
		Scanned:     doc.Scanned,
		UploadedAt:  doc.UploadedAt,
		ProcessedAt: doc.ProcessedAt,
	}

	// The download link is a convenience, not part of the lifecycle; detail
	// is still served when presigning fails.
	url, err := s.store.PresignGetURL(ctx, doc.StorageKey, 0)
	if err != nil {
		s.logger.Warn("presigning download url failed",
			logging.String("document_id", string(doc.ID)),
			logging.Err(err))
	} else {
		detail.DownloadURL = url
	}
	return detail, nil
}

func (s *serviceImpl) List(ctx context.Context, input *ListInput) (*ListResult, error) {
	page := &ListInput{Page: defaultPage, PageSize: defaultPageSize}
	if input != nil {
		if input.Page > 0 {
			page.Page = input.Page
		}
		if input.PageSize > 0 {
			page.PageSize = input.PageSize
		}
	}
	if page.PageSize > maxPageSize {
		page.PageSize = maxPageSize
	}

	docs, total, err := s.repo.List(ctx, common.Pagination{Page: page.Page, PageSize: page.PageSize})
	if err != nil {
		return nil, err
	}

	rows := make([]*DocumentSummary, len(docs))
	for i, d := range docs {
		rows[i] = &DocumentSummary{
			DocumentID: d.ID,
			Filename:   d.Filename,
			SizeBytes:  d.SizeBytes,
			Status:     d.Status.Public(),
			UploadedAt: d.UploadedAt,
		}
	}
	return &ListResult{
		Documents: rows,
		Total:     total,
		Page:      page.Page,
		PageSize:  page.PageSize,
	}, nil
}
