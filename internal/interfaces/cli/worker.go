package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appanalysis "github.com/loanlens/loanlens/internal/application/analysis"
	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres/repositories"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/messaging/kafka"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
	"github.com/loanlens/loanlens/internal/intelligence/analyzer"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
)

func newWorkerCommand(opts *rootOptions, build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the analysis worker",
		Long:  "The worker consumes document.uploaded events, extracts the PDF text layer, runs the analyzer, and persists the results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return RunWorker(cmd.Context(), cfg, build)
		},
	}
}

// RunWorker wires and runs the analysis worker until the context is
// cancelled or a termination signal arrives. cmd/worker uses it directly.
func RunWorker(ctx context.Context, cfg *config.Config, build BuildInfo) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := postgres.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer conn.Close()
	docRepo := repositories.NewDocumentRepository(conn.Pool(), log)
	resultRepo := repositories.NewAnalysisRepository(conn.Pool(), log)

	redisClient, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, log,
		redis.WithPrefix(cfg.Redis.KeyPrefix),
		redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
	locks := redis.NewLockFactory(redisClient, log)

	minioClient, err := minio.NewClient(cfg.MinIO, log)
	if err != nil {
		return fmt.Errorf("connecting to minio: %w", err)
	}
	defer minioClient.Close()
	store := minio.NewObjectStore(minioClient, log)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, log)
	if err != nil {
		return fmt.Errorf("building kafka producer: %w", err)
	}
	defer producer.Close()
	publisher := kafka.NewEventPublisher(producer, "loanlens-worker")

	// The pipeline topics must exist before the consumer joins its group.
	topics, err := kafka.NewTopicManager(cfg.Kafka.Brokers, log)
	if err != nil {
		return fmt.Errorf("connecting to kafka controller: %w", err)
	}
	if err := topics.EnsureDefaultTopics(ctx); err != nil {
		topics.Close()
		return fmt.Errorf("ensuring topics: %w", err)
	}
	topics.Close()

	metrics, metricsHandler, err := buildMetrics(cfg, log)
	if err != nil {
		return err
	}

	engine := analyzer.New(cfg.Analyzer, log)
	processor := appanalysis.NewProcessor(
		docRepo, resultRepo, store,
		docparse.NewExtractor(),
		engine, locks, cache, publisher, metrics, log,
		appanalysis.ProcessorConfig{
			Backend:        cfg.Analyzer.Backend,
			HandlerTimeout: cfg.Worker.HandlerTimeout,
		})

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{kafka.TopicDocumentUploaded},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		Retry: kafka.RetryConfig{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoff,
			DeadLetterTopic: kafka.TopicDeadLetter,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("building kafka consumer: %w", err)
	}
	defer consumer.Close()
	consumer.Subscribe(kafka.TopicDocumentUploaded, processor.HandleUploaded)

	// A minimal ops endpoint so the worker is observable without the API.
	opsSrv := workerOpsServer(cfg, metricsHandler, log)
	if opsSrv != nil {
		go func() {
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("worker ops server failed", logging.Err(err))
			}
		}()
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}

	log.Info("worker started",
		logging.String("group_id", cfg.Kafka.GroupID),
		logging.String("version", build.Version))

	<-ctx.Done()
	log.Info("worker shutting down")
	if opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = opsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	return nil
}

// workerOpsServer serves liveness and metrics on the worker's health port;
// nil when no port is configured.
func workerOpsServer(cfg *config.Config, metricsHandler http.Handler, log logging.Logger) *http.Server {
	if cfg.Worker.HealthPort <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
}
