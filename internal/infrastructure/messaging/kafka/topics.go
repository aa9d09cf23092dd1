package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

// Pipeline topics. Event type names double as topic names.
const (
	TopicDocumentUploaded = "document.uploaded"
	TopicDocumentAnalyzed = "document.analyzed"
	TopicDocumentFailed   = "document.failed"
	TopicDeadLetter       = "document.dlq"
)

// EventEnvelope is the wire shape of every event on the pipeline.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEventEnvelope wraps payload for the wire.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeSerialization, "event payload is empty")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode event payload")
	}
	return nil
}

// ToMessage serializes the envelope for topic, copying the routing fields
// into headers so consumers can filter without unmarshaling the body.
func (e *EventEnvelope) ToMessage(topic string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal event envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.TraceID != "" {
		headers["trace_id"] = e.TraceID
	}
	return &ProducerMessage{
		Topic:     topic,
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

// ParseEnvelope reads an EventEnvelope back off a consumed message.
func ParseEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal event envelope")
	}
	return &env, nil
}

// TopicConfig describes one topic for EnsureTopics.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	Configs           map[string]string
}

// ConnInterface abstracts the kafka controller connection for tests.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	DeleteTopics(topics ...string) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates and inspects topics through the cluster controller.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials a broker, resolves the controller, and connects to
// it. Topic creation must go through the controller.
func NewTopicManager(brokers []string, log logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "dial kafka broker")
	}

	controller, err := conn.Controller()
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "resolve kafka controller")
	}
	conn.Close() //nolint:errcheck

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "dial kafka controller")
	}

	return &TopicManager{conn: controllerConn, logger: log}, nil
}

// NewTopicManagerWithConn injects a connection, for tests.
func NewTopicManagerWithConn(conn ConnInterface, log logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: log}
}

// CreateTopic creates one topic. An existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "topic partitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "topic replication factor must be > 0")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs),
		})
	}
	for k, v := range cfg.Configs {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: k, ConfigValue: v})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessagingError, "create topic")
	}
	m.logger.Info("topic created",
		logging.String("topic", cfg.Name),
		logging.Int("partitions", cfg.NumPartitions))
	return nil
}

// TopicExists checks for at least one partition.
func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// ListTopics names every topic on the cluster.
func (m *TopicManager) ListTopics(_ context.Context) ([]string, error) {
	partitions, err := m.conn.ReadPartitions()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "read partitions")
	}
	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

// EnsureTopics creates each topic that does not already exist.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultTopics creates the pipeline's standard topic set.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	return m.EnsureTopics(ctx, DefaultTopics())
}

// Close releases the controller connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics is the pipeline's topic set. Replication factor 1 suits the
// single-broker compose setup; production clusters override via EnsureTopics.
func DefaultTopics() []TopicConfig {
	const (
		week  = 7 * 24 * 3600 * 1000
		month = 30 * 24 * 3600 * 1000
	)
	return []TopicConfig{
		{Name: TopicDocumentUploaded, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: week},
		{Name: TopicDocumentAnalyzed, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: week},
		{Name: TopicDocumentFailed, NumPartitions: 3, ReplicationFactor: 1, RetentionMs: month},
		{Name: TopicDeadLetter, NumPartitions: 3, ReplicationFactor: 1, RetentionMs: month},
	}
}
