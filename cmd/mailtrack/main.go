package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mailtrack/internal/app/inbound"
	"mailtrack/internal/app/tracking"
	"mailtrack/internal/config"
	admin_http "mailtrack/internal/handler/http/admin"
	inbound_http "mailtrack/internal/handler/http/inbound"
	tracking_http "mailtrack/internal/handler/http/tracking"
	kafka_handler "mailtrack/internal/handler/kafka"
	"mailtrack/internal/infrastructure/database"
	kafka_infra "mailtrack/internal/infrastructure/kafka"
	"mailtrack/internal/metrics"
	"mailtrack/internal/outbox"
	"mailtrack/internal/provider/resend"
	delivery_pg "mailtrack/internal/repository/delivery_repo/postgres"
	outbox_pg "mailtrack/internal/repository/outbox_repo/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Mailtrack service starting...")

	if cfg.ResendAPIKey == "" {
		appLogger.Warn("RESEND_API_KEY is not set; inbound mail webhooks will fail closed")
	}

	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Connected to PostgreSQL database.")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}
	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed.")

	metrics.Register()

	deliveryRepository := delivery_pg.NewDeliveryRepository(db)
	outboxRepository := outbox_pg.NewOutboxRepository(db)

	trackingService := tracking.NewTrackingService(
		db,
		deliveryRepository,
		outboxRepository,
		cfg.KafkaOpenEventsTopic,
		appLogger.With(zap.String("component", "TrackingService")),
	)

	resendClient := resend.NewClient(cfg.ResendBaseURL, cfg.ResendAPIKey)
	inboundService := inbound.NewInboundService(
		resendClient,
		appLogger.With(zap.String("component", "InboundService")),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Mailtrack service is healthy!"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	httpLogger := appLogger.With(zap.String("component", "HTTPHandler"))
	tracking_http.RegisterRoutes(router, trackingService, httpLogger)
	inbound_http.RegisterRoutes(router, inboundService, httpLogger)
	admin_http.RegisterRoutes(router, trackingService, httpLogger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	kafkaProducer := kafka_infra.NewProducer(
		cfg.GetKafkaBrokers(),
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	outboxProcessor := outbox.NewProcessor(
		outboxRepository,
		kafkaProducer,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		cfg.OutboxBatchSize,
		appLogger.With(zap.String("component", "OutboxProcessor")),
	)

	sentEventsConsumer := kafka_infra.NewConsumer(
		cfg.GetKafkaBrokers(),
		cfg.KafkaConsumerGroup,
		cfg.KafkaSentEventsTopic,
		appLogger.With(zap.String("component", "SentEventsConsumer")),
	)
	sentEventsHandler := kafka_handler.EmailSentMessageHandler(
		trackingService,
		appLogger.With(zap.String("component", "EmailSentHandler")),
	)

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		outboxProcessor.Start(ctxMain)
	}()

	go func() {
		if err := sentEventsConsumer.Start(ctxMain, sentEventsHandler); err != nil && err != context.Canceled {
			appLogger.Error("Sent events Kafka consumer failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	appLogger.Info("Shutting down application...")
	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	sentEventsConsumer.Stop()

	appLogger.Info("Application gracefully shut down.")
}
