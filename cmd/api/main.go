package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venuebook/internal/api"
	"venuebook/internal/config"
	"venuebook/internal/database"
	"venuebook/internal/domain"
	"venuebook/internal/events"
	"venuebook/internal/export"
	"venuebook/internal/logging"
	"venuebook/internal/metrics"
	"venuebook/internal/models"
	"venuebook/internal/repository"
	"venuebook/internal/service"
	"venuebook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(&logger)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	catalogService := service.NewCatalogService(db, &logger)
	if err := catalogService.Sync(ctx, catalog); err != nil {
		logger.Error().Err(err).Msg("sync catalog")
		return err
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()

	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Warn().Err(err).Str("event_type", event.Type).Msg("event handler failed")
	})
	bus.SubscribeAll(events.AllBookingEvents, func(event *events.Event) error {
		metrics.IncBookingEvent(event.Type)
		return nil
	})

	outbox, closeOutbox, err := startOutbox(ctx, cfg, db, redisClient, &logger)
	if err != nil {
		return err
	}
	if closeOutbox != nil {
		defer closeOutbox()
	}

	bookingService, err := newBookingService(cfg, db, redisClient, bus, outbox, &logger)
	if err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, bookingService, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, bookingService, catalogService, export.NewExporter(cfg.Exports.MaxRows), &logger)
	if outbox != nil {
		httpServer.SetOutboxInspector(db)
	}

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := *logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

func loadCatalog(logger *zerolog.Logger) (models.Catalog, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return models.Catalog{}, err
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return models.Catalog{}, err
	}
	return catalog, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-process locks")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// newBookingService wires the locker chain: Redis leases when Redis is reachable,
// falling back to in-process locks when it is not.
func newBookingService(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	outbox domain.OutboxDispatcher,
	logger *zerolog.Logger,
) (*service.BookingService, error) {
	loc, err := cfg.Booking.Location()
	if err != nil {
		return nil, err
	}

	var locker domain.Locker = repository.NewMemoryLocker()
	if redisClient != nil {
		locker = repository.NewFailoverLocker(repository.NewRedisLocker(redisClient, cfg.Booking.LockTTL), locker, logger)
	}

	return service.NewBookingService(db, locker, bus, outbox, service.Options{
		LockIn:   cfg.Booking.LockIn(),
		Location: loc,
		LockWait: cfg.Booking.LockWait,
	}, logger), nil
}

func startOutbox(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (domain.OutboxDispatcher, func(), error) {
	if !cfg.Outbox.Enabled {
		return nil, nil, nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		logger.Error().Err(err).Msg("connect amqp")
		return nil, nil, err
	}

	outboxWorker := worker.NewOutboxWorker(db, publisher, redisClient, worker.OutboxOptions{
		Retry: worker.RetryPolicy{
			MaxRetries:    cfg.Outbox.MaxRetries,
			InitialDelay:  cfg.Outbox.InitialDelay,
			MaxDelay:      cfg.Outbox.MaxDelay,
			BackoffFactor: cfg.Outbox.BackoffFactor,
		},
		PollInterval:  cfg.Outbox.PollInterval,
		BatchSize:     cfg.Outbox.BatchSize,
		QueueKey:      cfg.Outbox.QueueKey,
		DeadLetterKey: cfg.Outbox.DeadLetterKey,
	}, logging.Component(logger, "outbox"))
	go outboxWorker.Start(ctx)

	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("outbox relay started")
	return outboxWorker, func() { _ = publisher.Close() }, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	grpcAddr := ""
	if grpcServer != nil {
		grpcAddr = grpcServer.Addr()
	}
	logger.Info().Str("grpc_addr", grpcAddr).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
