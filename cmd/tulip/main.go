package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/tulip/config"
	"github.com/Ramsey-B/tulip/internal/handlers"
	"github.com/Ramsey-B/tulip/pkg/crm"
	"github.com/Ramsey-B/tulip/pkg/database"
	"github.com/Ramsey-B/tulip/pkg/health"
	"github.com/Ramsey-B/tulip/pkg/httpclient"
	"github.com/Ramsey-B/tulip/pkg/ingest"
	"github.com/Ramsey-B/tulip/pkg/kafka"
	"github.com/Ramsey-B/tulip/pkg/middleware"
	"github.com/Ramsey-B/tulip/pkg/reconciler"
	"github.com/Ramsey-B/tulip/pkg/redis"
	"github.com/Ramsey-B/tulip/pkg/reference"
	"github.com/Ramsey-B/tulip/pkg/repositories"
	"github.com/Ramsey-B/tulip/pkg/scheduler"
	"github.com/Ramsey-B/tulip/pkg/sheets"
	"github.com/Ramsey-B/tulip/pkg/tracing"
	"github.com/Ramsey-B/tulip/pkg/tracing/exporters"
)

const shutdownTimeout = 10 * time.Second

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	if cfg.OTLPEnabled {
		shutdownTracing, err := setupTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer shutdownTracing()
	}

	db, err := database.Connect(ctx, database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.Sqlx().DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisHost != "" {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_HOST not set, enrichment cache disabled")
	}

	var producer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		producer = kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaEventTopic), logger)
		defer producer.Close()
	} else {
		logger.Warn("KAFKA_BROKERS not set, lifecycle events disabled")
	}

	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	reader := sheets.NewCSVReader(httpClient, "", logger)

	deals := sheets.NewDealSource(reader, sheets.DealSourceConfig{
		SpreadsheetID: cfg.SheetDealsSpreadsheetID,
		GID:           cfg.SheetDealsGID,
	}, logger)

	refLoader := reference.NewLoader(reader, reference.Config{
		SpreadsheetID: cfg.SheetReferenceSpreadsheetID,
		GID:           cfg.SheetReferenceGID,
		Columns:       reference.DefaultColumnConfig(),
		TTL:           cfg.ReferenceCacheTTL,
	}, logger)

	crmClient := crm.NewClient(httpClient, redisClient, crm.Config{
		BaseURL:    cfg.CRMBaseURL,
		DeviceUUID: cfg.CRMDeviceUUID,
		BatchSize:  cfg.CRMBatchSize,
		BatchPause: cfg.CRMBatchPause,
		CacheTTL:   cfg.CRMCacheTTL,
	}, logger)

	propertyRepo := repositories.NewPropertyRepository(db, logger)
	listingRepo := repositories.NewParsedPropertyRepository(db, logger)

	rec := reconciler.New(deals, crmClient, refLoader, propertyRepo, producer, logger)
	ing := ingest.New(listingRepo, refLoader, producer, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	api := e.Group("/api/v1")
	handlers.NewSyncHandler(rec, logger).RegisterRoutes(api)
	handlers.NewListingsHandler(ing, logger).RegisterRoutes(api)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var cacheConn *goredis.Client
	if redisClient != nil {
		cacheConn = redisClient.Redis()
	}
	checker := health.NewChecker(db.Sqlx(), cacheConn, version)
	checker.RegisterRoutes(e)

	sched := scheduler.NewScheduler(rec, scheduler.Config{Interval: cfg.SchedulerInterval}, logger)
	if cfg.SchedulerEnabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logger.Info("scheduler disabled, resyncs are manual only")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("%s listening on :%d", cfg.AppName, cfg.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	checker.SetReady(true)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if cfg.SchedulerEnabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("scheduler did not stop cleanly")
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func setupTracing(ctx context.Context, cfg *config.Config) (func(), error) {
	exporterConfig := exporters.DefaultOTLPConfig()
	exporterConfig.Endpoint = cfg.OTLPEndpoint
	exporterConfig.Insecure = cfg.OTLPInsecure

	exporter, err := exporters.NewOTLPExporter(ctx, exporterConfig)
	if err != nil {
		return nil, err
	}

	resource := sdkresource.NewWithAttributes(
		"https://opentelemetry.io/schemas/1.26.0",
		attribute.String("service.name", cfg.AppName),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down tracer provider: %v", err)
		}
	}, nil
}
