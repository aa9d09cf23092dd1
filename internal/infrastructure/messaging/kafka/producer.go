// Package kafka carries the document pipeline's events: the API publishes
// document.uploaded, the analysis worker consumes it and publishes
// document.analyzed or document.failed, and poisoned messages land on a dead
// letter topic.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeMessagingError, "producer closed")

// ProducerConfig holds the writer parameters.
type ProducerConfig struct {
	Brokers         []string
	Acks            string // "none" | "one" | "all"
	MaxRetries      int
	BatchSize       int
	BatchTimeout    time.Duration
	MaxMessageBytes int
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
}

// ProducerMessage is one outbound record. Key selects the partition, so
// events keyed by document id stay ordered per document.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// WriterInterface abstracts kafka.Writer for tests.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// ProducerStats is a point-in-time snapshot of producer counters.
type ProducerStats struct {
	Sent       int64
	Failed     int64
	BytesSent  int64
	LastSentAt time.Time
}

type producerMetrics struct {
	sent       atomic.Int64
	failed     atomic.Int64
	bytesSent  atomic.Int64
	lastSentAt atomic.Value // time.Time
}

// Producer publishes messages through a shared kafka.Writer.
type Producer struct {
	writer  WriterInterface
	config  ProducerConfig
	logger  logging.Logger
	closed  atomic.Bool
	metrics producerMetrics
}

// NewProducer validates cfg, applies defaults, and builds a hash-balanced
// writer over the brokers.
func NewProducer(cfg ProducerConfig, log logging.Logger) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	applyProducerDefaults(&cfg)

	var acks kafka.RequiredAcks
	switch cfg.Acks {
	case "none":
		acks = kafka.RequireNone
	case "all":
		acks = kafka.RequireAll
	default:
		acks = kafka.RequireOne
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		RequiredAcks: acks,
	}

	return &Producer{
		writer: writer,
		config: cfg,
		logger: log,
	}, nil
}

// NewProducerWithWriter injects a writer, for tests.
func NewProducerWithWriter(w WriterInterface, cfg ProducerConfig, log logging.Logger) *Producer {
	applyProducerDefaults(&cfg)
	return &Producer{writer: w, config: cfg, logger: log}
}

func applyProducerDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = 1 << 20
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
}

// ValidateProducerConfig rejects configurations the writer cannot run with.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "kafka max retries must be >= 0")
	}
	return nil
}

// Publish writes one message and waits for the configured acks.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "message topic required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeValidation, "message value required")
	}
	if len(msg.Value) > p.config.MaxMessageBytes {
		return errors.Newf(errors.ErrCodeValidation, "message exceeds %d bytes", p.config.MaxMessageBytes)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.metrics.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeMessagingError, "publish failed")
	}

	p.metrics.sent.Add(1)
	p.metrics.bytesSent.Add(int64(len(msg.Value)))
	p.metrics.lastSentAt.Store(time.Now())

	p.logger.Debug("message published",
		logging.String("topic", msg.Topic),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()))
	return nil
}

// Stats reports the counters since construction.
func (p *Producer) Stats() ProducerStats {
	s := ProducerStats{
		Sent:      p.metrics.sent.Load(),
		Failed:    p.metrics.failed.Load(),
		BytesSent: p.metrics.bytesSent.Load(),
	}
	if t, ok := p.metrics.lastSentAt.Load().(time.Time); ok {
		s.LastSentAt = t
	}
	return s
}

// Close flushes and shuts the writer down. Safe to call twice.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.metrics.sent.Load()))
	return err
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

// EventPublisher hands domain events to the pipeline. The application layer
// depends on this interface, not on the producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event common.DomainEvent) error
}

type eventPublisher struct {
	producer *Producer
	source   string
}

// NewEventPublisher wraps a producer as an EventPublisher. Events go to the
// topic named by their EventType, keyed by aggregate id, wrapped in an
// EventEnvelope that reuses the event's own id so consumers can deduplicate.
func NewEventPublisher(producer *Producer, source string) EventPublisher {
	return &eventPublisher{producer: producer, source: source}
}

func (p *eventPublisher) PublishEvent(ctx context.Context, event common.DomainEvent) error {
	env, err := NewEventEnvelope(event.EventType(), p.source, event)
	if err != nil {
		return err
	}
	env.EventID = event.EventID()
	env.Timestamp = event.OccurredAt()

	msg, err := env.ToMessage(event.EventType())
	if err != nil {
		return err
	}
	msg.Key = []byte(event.AggregateID())
	return p.producer.Publish(ctx, msg)
}
