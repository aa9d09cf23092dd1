package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appanalysis "github.com/loanlens/loanlens/internal/application/analysis"
	"github.com/loanlens/loanlens/internal/application/chat"
	"github.com/loanlens/loanlens/internal/application/highlighting"
	"github.com/loanlens/loanlens/internal/application/ingestion"
	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres/repositories"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/messaging/kafka"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
	"github.com/loanlens/loanlens/internal/intelligence/analyzer"
	httpiface "github.com/loanlens/loanlens/internal/interfaces/http"
	"github.com/loanlens/loanlens/internal/interfaces/http/handlers"
)

func newServeCommand(opts *rootOptions, build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return RunServe(cmd.Context(), cfg, build)
		},
	}
}

// RunServe wires and runs the API server until the context is cancelled or
// a termination signal arrives. cmd/apiserver uses it directly.
func RunServe(ctx context.Context, cfg *config.Config, build BuildInfo) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	conn, err := postgres.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer conn.Close()
	if cfg.Database.MigrateOnStart {
		migrator, err := postgres.NewMigrator(conn, log)
		if err != nil {
			return fmt.Errorf("building migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			migrator.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		migrator.Close()
	}
	docRepo := repositories.NewDocumentRepository(conn.Pool(), log)
	resultRepo := repositories.NewAnalysisRepository(conn.Pool(), log)

	// Redis
	redisClient, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, log,
		redis.WithPrefix(cfg.Redis.KeyPrefix),
		redis.WithDefaultTTL(cfg.Redis.DefaultTTL))

	// Kafka
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, log)
	if err != nil {
		return fmt.Errorf("building kafka producer: %w", err)
	}
	defer producer.Close()
	publisher := kafka.NewEventPublisher(producer, "loanlens-api")

	// MinIO
	minioClient, err := minio.NewClient(cfg.MinIO, log)
	if err != nil {
		return fmt.Errorf("connecting to minio: %w", err)
	}
	defer minioClient.Close()
	store := minio.NewObjectStore(minioClient, log)

	// Metrics
	metrics, metricsHandler, err := buildMetrics(cfg, log)
	if err != nil {
		return err
	}

	// Application services
	engine := analyzer.New(cfg.Analyzer, log)
	ingestionSvc := ingestion.NewService(docRepo, store, publisher, metrics, log)
	analysisSvc := appanalysis.NewService(docRepo, resultRepo, cache, metrics, log)
	chatSvc := chat.NewService(docRepo, resultRepo, cache, engine, log)
	highlightSvc := highlighting.NewService(docRepo, cfg.Highlight, metrics, log)

	router := httpiface.NewRouter(httpiface.RouterConfig{
		Documents: handlers.NewDocumentHandler(ingestionSvc, cfg.Server.MaxUploadBytes, log),
		Analysis:  handlers.NewAnalysisHandler(analysisSvc),
		Chat:      handlers.NewChatHandler(chatSvc),
		Highlight: handlers.NewHighlightHandler(highlightSvc),
		Health: handlers.NewHealthHandler(
			handlers.BuildInfo{Version: build.Version, Commit: build.Commit, Date: build.Date},
			handlers.CheckerFunc{CheckerName: "postgres", Fn: conn.HealthCheck},
			handlers.CheckerFunc{CheckerName: "redis", Fn: redisClient.Ping},
			handlers.CheckerFunc{CheckerName: "minio", Fn: minioClient.HealthCheck},
		),
		Logger:         log,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})

	srv := httpiface.NewServer(cfg.Server, router, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("api server started",
		logging.Int("port", cfg.Server.Port),
		logging.String("version", build.Version))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return srv.Shutdown(context.Background())
}
