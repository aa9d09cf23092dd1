// Package common holds the small set of types shared across LoanLens layers:
// identifiers, timestamps, pagination, domain events, and health reporting.
package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for an entity identifier.
type ID string

// Timestamp is a time.Time alias with RFC 3339 JSON serialization.
type Timestamp time.Time

// Severity grades red flags and hidden-clause impact.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is one of the three defined grades.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// NewDocumentID returns a fresh document identifier, "doc_" followed by the
// first 12 hex characters of a UUID v4.
func NewDocumentID() ID {
	return ID("doc_" + uuidHex(12))
}

// NewConversationID returns a fresh chat conversation identifier,
// "conv_" followed by 12 hex characters.
func NewConversationID() ID {
	return ID("conv_" + uuidHex(12))
}

// NewNonce returns an opaque request nonce. Structurally identical highlight
// targets are distinguished only by this value.
func NewNonce() string {
	return uuid.New().String()
}

func uuidHex(n int) string {
	h := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}

// ValidateDocumentID checks the doc_ prefix and hex tail.
func ValidateDocumentID(id ID) error {
	s := string(id)
	if !strings.HasPrefix(s, "doc_") || len(s) != len("doc_")+12 {
		return fmt.Errorf("malformed document id %q", s)
	}
	for _, r := range s[len("doc_"):] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return fmt.Errorf("malformed document id %q", s)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pagination
// ─────────────────────────────────────────────────────────────────────────────

// Pagination defines parameters for paginated list requests.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total,omitempty"`
}

// Validate checks pagination bounds (page >= 1, 1 <= page_size <= 500).
func (p Pagination) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1")
	}
	if p.PageSize < 1 || p.PageSize > 500 {
		return fmt.Errorf("page_size must be between 1 and 500")
	}
	return nil
}

// Offset returns the SQL OFFSET value.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain events
// ─────────────────────────────────────────────────────────────────────────────

// DomainEvent represents a significant event in the domain. EventType is the
// wire-level name (for example "document.uploaded") used to route the event
// to its topic.
type DomainEvent interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent provides the common fields for domain events.
type BaseEvent struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"occurred_at"`
	AggID     string    `json:"aggregate_id"`
}

func NewBaseEvent(aggID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		AggID:     aggID,
	}
}

func (e BaseEvent) EventID() string        { return e.ID }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) AggregateID() string    { return e.AggID }

// ─────────────────────────────────────────────────────────────────────────────
// Health reporting
// ─────────────────────────────────────────────────────────────────────────────

// HealthStatus indicates the health of a component or service.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
)

// ComponentHealth provides health information for a single dependency.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Context keys
// ─────────────────────────────────────────────────────────────────────────────

// ContextKey is the typed key for request-scoped context values.
type ContextKey string

const (
	// ContextKeyRequestID is the context key for the per-request id.
	ContextKeyRequestID ContextKey = "request_id"
)

// ─────────────────────────────────────────────────────────────────────────────
// Timestamp helpers
// ─────────────────────────────────────────────────────────────────────────────

// NewTimestamp returns the current UTC time as a Timestamp.
func NewTimestamp() Timestamp {
	return Timestamp(time.Now().UTC())
}

// ToUnixMilli returns the timestamp in milliseconds since the Unix epoch.
func (t Timestamp) ToUnixMilli() int64 {
	return time.Time(t).UnixMilli()
}

// MarshalJSON implements json.Marshaler using RFC 3339 with nanoseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler, accepting RFC 3339 with or
// without fractional seconds.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	*t = Timestamp(parsed.UTC())
	return nil
}
