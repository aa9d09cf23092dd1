package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

// ErrAlreadyRunning is returned by Start when the consume loop is live.
var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// RetryConfig shapes per-message retry and dead-lettering.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds the reader parameters.
type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	AutoOffsetReset   string // "earliest" | "latest"
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	FetchMinBytes     int
	FetchMaxBytes     int
	MaxWait           time.Duration
	Retry             RetryConfig
}

// Message is one inbound record, decoupled from the kafka-go type so
// handlers stay testable.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. A nil return commits the offset; an
// error triggers the retry and dead-letter path.
type MessageHandler func(ctx context.Context, msg *Message) error

// ReaderInterface abstracts kafka.Reader for tests.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// ConsumerStats is a point-in-time snapshot of consumer counters.
type ConsumerStats struct {
	Consumed       int64
	Processed      int64
	Failed         int64
	Retried        int64
	DeadLettered   int64
	Lag            int64
	LastConsumedAt time.Time
}

type consumerMetrics struct {
	consumed       atomic.Int64
	processed      atomic.Int64
	failed         atomic.Int64
	retried        atomic.Int64
	deadLettered   atomic.Int64
	lag            atomic.Int64
	lastConsumedAt atomic.Value // time.Time
}

// Consumer runs a group reader and dispatches messages to per-topic
// handlers. Offsets commit only after a message is handled, retried out, or
// dead-lettered, so a crash replays rather than drops.
type Consumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger

	mu       sync.RWMutex
	handlers map[string]MessageHandler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	dlq     *Producer
	metrics consumerMetrics
}

// NewConsumer validates cfg, applies defaults, and builds the group reader.
// When a dead letter topic is configured, a producer for it shares the
// broker settings.
func NewConsumer(cfg ConsumerConfig, log logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	applyConsumerDefaults(&cfg)

	readerCfg := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       cfg.Topics,
		MinBytes:          cfg.FetchMinBytes,
		MaxBytes:          cfg.FetchMaxBytes,
		MaxWait:           cfg.MaxWait,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       kafka.FirstOffset,
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	var dlq *Producer
	if cfg.Retry.DeadLetterTopic != "" {
		p, err := NewProducer(ProducerConfig{Brokers: cfg.Brokers}, log)
		if err != nil {
			return nil, err
		}
		dlq = p
	}

	return &Consumer{
		reader:   kafka.NewReader(readerCfg),
		config:   cfg,
		logger:   log,
		handlers: make(map[string]MessageHandler),
		dlq:      dlq,
	}, nil
}

// NewConsumerWithReader injects a reader and dead-letter producer, for tests.
func NewConsumerWithReader(r ReaderInterface, dlq *Producer, cfg ConsumerConfig, log logging.Logger) *Consumer {
	applyConsumerDefaults(&cfg)
	return &Consumer{
		reader:   r,
		config:   cfg,
		logger:   log,
		handlers: make(map[string]MessageHandler),
		dlq:      dlq,
	}
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 3 * time.Second
	}
	if cfg.FetchMinBytes == 0 {
		cfg.FetchMinBytes = 1
	}
	if cfg.FetchMaxBytes == 0 {
		cfg.FetchMaxBytes = 10 << 20
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.RetryBackoff == 0 {
		cfg.Retry.RetryBackoff = time.Second
	}
	if cfg.Retry.MaxRetryBackoff == 0 {
		cfg.Retry.MaxRetryBackoff = 30 * time.Second
	}
}

// ValidateConsumerConfig rejects configurations the reader cannot run with.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "kafka group id required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka topics required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.Newf(errors.ErrCodeValidation, "invalid auto offset reset %q", cfg.AutoOffsetReset)
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "kafka max retries must be >= 0")
	}
	return nil
}

// Subscribe registers the handler for a topic. Messages on topics without a
// handler are committed and skipped.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("subscribed to topic", logging.String("topic", topic))
}

// Start launches the consume loop. It returns immediately; Close stops the
// loop and waits for it.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.Any("topics", c.config.Topics))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		c.metrics.consumed.Add(1)
		c.metrics.lastConsumedAt.Store(time.Now())
		c.metrics.lag.Store(m.HighWaterMark - m.Offset)

		msg := fromKafkaMessage(m)

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("no handler for topic, skipping", logging.String("topic", m.Topic))
			c.commit(ctx, m)
			continue
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			// Context ended mid-processing. Leave the offset uncommitted
			// so the message replays after restart.
			return
		}
		c.metrics.processed.Add(1)
		c.commit(ctx, m)
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Error("commit failed",
			logging.String("topic", m.Topic),
			logging.Int64("offset", m.Offset),
			logging.Err(err))
	}
}

// processMessage runs the handler with retries and exponential backoff. A
// message that keeps failing goes to the dead letter topic; the returned
// error is non-nil only when ctx ended, every other outcome is absorbed so
// the loop can commit and move on.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}

	backoff := c.config.Retry.RetryBackoff
	for i := 0; i < c.config.Retry.MaxRetries; i++ {
		c.metrics.retried.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err = handler(ctx, msg); err == nil {
			return nil
		}

		backoff *= 2
		if backoff > c.config.Retry.MaxRetryBackoff {
			backoff = c.config.Retry.MaxRetryBackoff
		}
	}

	c.metrics.failed.Add(1)
	c.logger.Error("message failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("retries", c.config.Retry.MaxRetries),
		logging.Err(err))

	c.deadLetter(ctx, msg, err)
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	if c.dlq == nil || c.config.Retry.DeadLetterTopic == "" {
		c.logger.Warn("no dead letter topic, dropping message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset))
		return
	}

	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["original_topic"] = msg.Topic
	headers["error_message"] = cause.Error()
	headers["failed_at"] = time.Now().UTC().Format(time.RFC3339)

	dl := &ProducerMessage{
		Topic:   c.config.Retry.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := c.dlq.Publish(ctx, dl); err != nil {
		c.logger.Error("dead letter publish failed", logging.Err(err))
		return
	}
	c.metrics.deadLettered.Add(1)
}

// Stats reports the counters since construction.
func (c *Consumer) Stats() ConsumerStats {
	s := ConsumerStats{
		Consumed:     c.metrics.consumed.Load(),
		Processed:    c.metrics.processed.Load(),
		Failed:       c.metrics.failed.Load(),
		Retried:      c.metrics.retried.Load(),
		DeadLettered: c.metrics.deadLettered.Load(),
		Lag:          c.metrics.lag.Load(),
	}
	if t, ok := c.metrics.lastConsumedAt.Load().(time.Time); ok {
		s.LastConsumedAt = t
	}
	return s
}

// Close stops the loop, waits for in-flight work, and closes the reader and
// the dead letter producer. Safe to call twice.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.reader.Close()
	if c.dlq != nil {
		if dlqErr := c.dlq.Close(); err == nil {
			err = dlqErr
		}
	}

	c.logger.Info("kafka consumer closed",
		logging.Int64("consumed", c.metrics.consumed.Load()))
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}
