// Package document implements the Document bounded context: the uploaded
// loan agreement's identity, storage coordinates, processing lifecycle, and
// extracted page text. Analysis results live in the analysis context;
// persistence and object storage are infrastructure concerns.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Status is a document's position in the processing lifecycle.
type Status string

const (
	// StatusUploaded means the file is stored and the analysis job is queued.
	StatusUploaded Status = "uploaded"
	// StatusProcessing means a worker claimed the job and is extracting or
	// analyzing.
	StatusProcessing Status = "processing"
	// StatusComplete means all analysis results are available.
	StatusComplete Status = "complete"
	// StatusFailed means extraction or analysis failed permanently.
	StatusFailed Status = "failed"
)

// Public returns the status the API reports. Clients only distinguish
// processing, complete, and failed; a queued document is still "processing"
// from their point of view.
func (s Status) Public() string {
	if s == StatusUploaded {
		return string(StatusProcessing)
	}
	return string(s)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// allowedTransitions defines the legal lifecycle moves.
//
//	Uploaded ──► Processing ──► Complete
//	                 │
//	                 └────────► Failed
var allowedTransitions = map[Status][]Status{
	StatusUploaded:   {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusComplete, StatusFailed},
	StatusComplete:   {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PageText is one page's extracted text layer: the text-bearing leaves in
// reading order, exactly as the renderer produced them. Scanned marks pages
// that carry images but no usable text.
type PageText struct {
	Page    int      `json:"page"`
	Leaves  []string `json:"leaves"`
	Scanned bool     `json:"scanned"`
}

// HasText reports whether the page yielded any non-blank leaf.
func (p PageText) HasText() bool {
	for _, l := range p.Leaves {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// Text joins the leaves with newlines, reconstructing the page roughly as it
// reads. Keyword scans that look for a label and its value on the same line
// depend on this layout.
func (p PageText) Text() string {
	return strings.Join(p.Leaves, "\n")
}

// Document is the aggregate root of the Document bounded context. Mutations
// go through the exported methods so lifecycle invariants hold and domain
// events are recorded.
type Document struct {
	ID          common.ID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`

	// StorageKey is the object key under which the raw PDF is stored.
	StorageKey string `json:"storage_key"`

	Status      Status     `json:"status"`
	FailureNote string     `json:"failure_note,omitempty"`
	PageCount   int        `json:"page_count"`
	Scanned     bool       `json:"scanned"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	events []common.DomainEvent
}

// New creates a Document for an uploaded file, enforcing the construction
// invariants: a PDF with a non-empty name and a positive size.
func New(filename, contentType string, sizeBytes int64) (*Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, errors.InvalidParam("filename must not be empty")
	}
	if !IsPDF(filename, contentType) {
		return nil, errors.New(errors.ErrCodeDocumentUnsupported, "only PDF files are supported")
	}
	if sizeBytes <= 0 {
		return nil, errors.New(errors.ErrCodeDocumentEmpty, "empty file")
	}

	id := common.NewDocumentID()
	d := &Document{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		StorageKey:  StorageKey(id, filename),
		Status:      StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}
	d.recordEvent(NewUploadedEvent(d))
	return d, nil
}

// IsPDF reports whether the upload looks like a PDF, by content type first
// and filename extension as a fallback for clients that send generic types.
func IsPDF(filename, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "application/pdf" || ct == "application/x-pdf" {
		return true
	}
	if ct == "" || ct == "application/octet-stream" {
		return strings.HasSuffix(strings.ToLower(filename), ".pdf")
	}
	return false
}

// StorageKey builds the object-storage key for a document's raw bytes.
func StorageKey(id common.ID, filename string) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	name = strings.ReplaceAll(name, " ", "_")
	return fmt.Sprintf("documents/%s/%s", id, name)
}

// StartProcessing moves the document from the queue into active processing.
func (d *Document) StartProcessing() error {
	return d.moveTo(StatusProcessing)
}

// CompleteProcessing records a successful analysis run.
func (d *Document) CompleteProcessing(pageCount int, scanned bool) error {
	if pageCount < 0 {
		return errors.InvalidParam(fmt.Sprintf("page count must not be negative, got %d", pageCount))
	}
	if err := d.moveTo(StatusComplete); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.PageCount = pageCount
	d.Scanned = scanned
	d.ProcessedAt = &now
	d.recordEvent(NewAnalyzedEvent(d))
	return nil
}

// FailProcessing records a permanent failure with a human-readable note.
func (d *Document) FailProcessing(note string) error {
	if err := d.moveTo(StatusFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.FailureNote = note
	d.ProcessedAt = &now
	d.recordEvent(NewFailedEvent(d))
	return nil
}

func (d *Document) moveTo(to Status) error {
	if !canTransition(d.Status, to) {
		return errors.New(errors.ErrCodeDocumentStateInvalid,
			fmt.Sprintf("document %s cannot move from %s to %s", d.ID, d.Status, to))
	}
	d.Status = to
	return nil
}

// Events returns the uncommitted domain events.
func (d *Document) Events() []common.DomainEvent { return d.events }

// ClearEvents drops the uncommitted events after they have been published.
func (d *Document) ClearEvents() { d.events = nil }

func (d *Document) recordEvent(e common.DomainEvent) {
	d.events = append(d.events, e)
}
