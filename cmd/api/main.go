package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cimillas/ticket-ledger/internal/app"
	"github.com/cimillas/ticket-ledger/internal/clock"
	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/cimillas/ticket-ledger/internal/notify"
	"github.com/cimillas/ticket-ledger/internal/storage/memory"
	"github.com/cimillas/ticket-ledger/internal/storage/postgres"
	transporthttp "github.com/cimillas/ticket-ledger/internal/transport/http"
	"github.com/cimillas/ticket-ledger/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultPort        = "8080"
	defaultCORSOrigins = "http://localhost:5173,http://127.0.0.1:5173"
	defaultExchange    = "ticket-ledger"
	shutdownTimeout    = 10 * time.Second
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Warn(".env not loaded")
	}

	port := envOr(logger, "PORT", defaultPort)
	corsOrigins := parseCSV(envOr(logger, "CORS_ORIGINS", defaultCORSOrigins))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	registryOwner := domain.Account(envOr(logger, "REGISTRY_OWNER", "registry-owner"))
	ledgerOwner := domain.Account(envOr(logger, "LEDGER_OWNER", "ledger-owner"))
	ledgerAccount := domain.Account(envOr(logger, "LEDGER_ACCOUNT", "event-ledger"))

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var publisher notify.Publisher = notify.Discard{}
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		p, err := notify.NewAMQPPublisher(amqpURL, envOr(logger, "AMQP_EXCHANGE", defaultExchange))
		if err != nil {
			logger.WithError(err).Fatal("connect to amqp")
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("AMQP_URL not set, notifications are dropped")
	}

	var (
		ledgerRepo   app.LedgerRepository
		registryRepo app.RegistryRepository
	)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(startupCtx, dbURL)
		if err != nil {
			logger.WithError(err).Fatal("connect to db")
		}
		defer pool.Close()

		if err := pool.Ping(startupCtx); err != nil {
			logger.WithError(err).Fatal("db ping")
		}
		if err := migrations.Apply(startupCtx, pool); err != nil {
			logger.WithError(err).Fatal("apply migrations")
		}

		ledgerRepo = postgres.NewLedgerRepository(pool, publisher)
		registryRepo = postgres.NewRegistryRepository(pool, publisher)
		logger.Info("using postgres storage")
	} else {
		logger.Warn("DATABASE_URL not set, state is in memory only")
		store := memory.NewStore(publisher)
		ledgerRepo = store
		registryRepo = store
	}

	registry := app.NewTicketRegistry(registryOwner, registryRepo)
	ledger := app.NewEventLedger(ledgerOwner, ledgerAccount, ledgerRepo, registry, clock.NewSystem())

	// The ledger mints and marks tickets used under its own account; enroll
	// it as an issuer so sales and validations can go through.
	if err := registry.AddIssuer(startupCtx, registryOwner, ledgerAccount); err != nil {
		logger.WithError(err).Fatal("enroll ledger as issuer")
	}

	router := transporthttp.NewRouter(ledger, registry, []byte(secret))
	handler := transporthttp.RequestLogger(transporthttp.CORS(corsOrigins, router), logger)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	logger.WithField("port", port).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server shutdown error")
	}
	logger.Info("server stopped")
}

func envOr(logger *logrus.Logger, key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	logger.WithField("key", key).WithField("default", fallback).Warn("env not set, using default")
	return fallback
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
