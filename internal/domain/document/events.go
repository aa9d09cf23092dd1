package document

import (
	"time"

	"github.com/loanlens/loanlens/pkg/types/common"
)

// Event type names as they appear on the wire.
const (
	EventTypeUploaded = "document.uploaded"
	EventTypeAnalyzed = "document.analyzed"
	EventTypeFailed   = "document.failed"
)

// UploadedEvent is published after a document's bytes are stored and its
// row is committed; it is the worker's trigger to start analysis.
type UploadedEvent struct {
	common.BaseEvent
	DocumentID common.ID `json:"document_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func NewUploadedEvent(d *Document) *UploadedEvent {
	return &UploadedEvent{
		BaseEvent:  common.NewBaseEvent(string(d.ID)),
		DocumentID: d.ID,
		Filename:   d.Filename,
		StorageKey: d.StorageKey,
		SizeBytes:  d.SizeBytes,
		UploadedAt: d.UploadedAt,
	}
}

func (e *UploadedEvent) EventType() string { return EventTypeUploaded }

// AnalyzedEvent is published when every analysis category has been produced
// and the document reached the complete status.
type AnalyzedEvent struct {
	common.BaseEvent
	DocumentID common.ID `json:"document_id"`
	PageCount  int       `json:"page_count"`
	Scanned    bool      `json:"scanned"`
}

func NewAnalyzedEvent(d *Document) *AnalyzedEvent {
	return &AnalyzedEvent{
		BaseEvent:  common.NewBaseEvent(string(d.ID)),
		DocumentID: d.ID,
		PageCount:  d.PageCount,
		Scanned:    d.Scanned,
	}
}

func (e *AnalyzedEvent) EventType() string { return EventTypeAnalyzed }

// FailedEvent is published when processing failed permanently.
type FailedEvent struct {
	common.BaseEvent
	DocumentID common.ID `json:"document_id"`
	Note       string    `json:"note"`
}

func NewFailedEvent(d *Document) *FailedEvent {
	return &FailedEvent{
		BaseEvent:  common.NewBaseEvent(string(d.ID)),
		DocumentID: d.ID,
		Note:       d.FailureNote,
	}
}

func (e *FailedEvent) EventType() string { return EventTypeFailed }
