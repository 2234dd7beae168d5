package main

import (
	"context"
	"database/sql"
	"fmt"
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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/checkout/payment-gateway/internal/bankclient"
	"github.com/checkout/payment-gateway/internal/config"
	payments_http "github.com/checkout/payment-gateway/internal/handler/http/payments"
	"github.com/checkout/payment-gateway/internal/infrastructure/database"
	kafka_infra "github.com/checkout/payment-gateway/internal/infrastructure/kafka"
	"github.com/checkout/payment-gateway/internal/outbox"
	"github.com/checkout/payment-gateway/internal/processor"
	audit_postgres "github.com/checkout/payment-gateway/internal/repository/audit_repo/postgres"
	outbox_postgres "github.com/checkout/payment-gateway/internal/repository/outbox_repo/postgres"
	payments_postgres "github.com/checkout/payment-gateway/internal/repository/payments_repo/postgres"
	paymentsvc "github.com/checkout/payment-gateway/internal/service/payments"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("payment gateway starting")

	appLogger.Info("waiting for database to be available")
	dbConfig := database.Config{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("connected to postgres")
			break
		}
		appLogger.Warn("failed to connect to database, retrying",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries), zap.Error(err))
		time.Sleep(retryDelay)
	}
	if db == nil {
		appLogger.Fatal("could not connect to database after multiple retries", zap.Error(err))
	}
	defer db.Close()

	appLogger.Info("running database migrations")
	migrateDSN := cfg.GetDBMigrationConnectionString()
	m, err := migrate.New("file://migrations", migrateDSN)
	if err != nil {
		appLogger.Fatal("failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("database migrations complete")

	bankClient := bankclient.New(bankclient.Config{
		URL:                     cfg.BankConfig.URL,
		ConnectTimeout:          cfg.BankConfig.ConnectTimeout,
		ReadTimeout:             cfg.BankConfig.ReadTimeout,
		RetryCount:              cfg.BankConfig.RetryCount,
		BreakerFailureThreshold: uint32(cfg.BankConfig.BreakerFailureThreshold),
		BreakerWindow:           cfg.BankConfig.BreakerWindow,
		BreakerOpenTimeout:      cfg.BankConfig.BreakerOpenTimeout,
	}, appLogger.With(zap.String("component", "BankClient")))

	registry := processor.NewRegistry(
		processor.NewCardProcessor(bankClient),
	)

	paymentRepository := payments_postgres.NewPaymentRepository()
	auditRepository := audit_postgres.NewAuditRepository()
	outboxRepository := outbox_postgres.NewOutboxRepository()

	paymentService := paymentsvc.NewService(
		db,
		paymentRepository,
		auditRepository,
		outboxRepository,
		registry,
		cfg.KafkaPaymentStatusTopic,
		appLogger.With(zap.String("component", "PaymentService")),
	)
	appLogger.Info("payment service initialized")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "X-Idempotency-Key"},
		AllowCredentials: false,
	}))
	payments_http.RegisterRoutes(router, paymentService, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}
	appLogger.Info("http server configured", zap.String("port", cfg.HTTPPort))

	kafkaProducer := kafka_infra.NewProducer(
		cfg.GetKafkaBrokers(),
		cfg.KafkaPaymentStatusTopic,
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	defer kafkaProducer.Close()

	outboxProcessor := outbox.NewProcessor(
		db,
		outboxRepository,
		kafkaProducer,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		appLogger.With(zap.String("component", "OutboxProcessor")),
	)

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("starting http server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	go outboxProcessor.Start(ctxMain)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("shutting down payment gateway")

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http server graceful shutdown failed", zap.Error(err))
	}

	outboxProcessor.Stop()

	appLogger.Info("payment gateway shut down")
}
