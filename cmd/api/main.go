package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/bank-portal/internal/config"
	"github.com/Dan9191/bank-portal/internal/handler"
	"github.com/Dan9191/bank-portal/internal/integrations/cbr"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/Dan9191/bank-portal/internal/repository"
	"github.com/Dan9191/bank-portal/internal/scheduler"
	"github.com/Dan9191/bank-portal/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Notification rules and channels
	rules := notify.DefaultRules()
	if err := rules.Override(cfg.NotifyEnabled, cfg.NotifyDisabled); err != nil {
		logger.Fatalf("Invalid notification rules: %v", err)
	}
	var channels []notify.Channel
	if cfg.MailEnabled() {
		channels = append(channels, notify.NewMailSender(cfg, store, logger))
		logger.Infof("E-mail notifications enabled via %s", cfg.SMTPHost)
	}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to AMQP broker: %v", err)
		}
		defer publisher.Close()
		channels = append(channels, publisher)
	}
	emitter := notify.NewEmitter(store, rules, logger, channels...)

	// Initialize layers
	svc := service.NewService(store, emitter, logger, cfg)
	if cfg.AdminEmail != "" {
		if _, err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Fatalf("Failed to bootstrap admin: %v", err)
		}
	}
	cbrClient := cbr.NewCBRClient(cfg, logger)
	h := handler.NewHandler(svc, cbrClient, logger)
	router := handler.NewRouter(h, cfg)

	// Background jobs
	jobs := scheduler.New(logger)
	if err := jobs.AddFreezeSweep(cfg.FreezeSweepSpec, svc); err != nil {
		logger.Fatalf("Failed to schedule jobs: %v", err)
	}
	jobs.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(router, "bank-portal"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	jobs.Stop(shutdownCtx)
}

// openStore returns the configured store and its cleanup func
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (service.Store, func(), error) {
	if cfg.Store == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	// Initialize database; DB_DRIVER selects lib/pq ("postgres") or pgx
	db, err := sql.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := repository.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Infof("Connected to PostgreSQL via %s driver", cfg.DBDriver)
	return repo, func() { db.Close() }, nil
}
