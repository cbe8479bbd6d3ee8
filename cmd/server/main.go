package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"refiler/internal/audit"
	auditpg "refiler/internal/audit/store/postgres"
	"refiler/internal/httpapi"
	"refiler/internal/jwtauth"
	"refiler/internal/platform/config"
	"refiler/internal/platform/httpserver"
	"refiler/internal/platform/logger"
	"refiler/internal/platform/metrics"
	"refiler/internal/platform/redis"
	"refiler/internal/scheduler"
	"refiler/internal/submission"
	submissionpg "refiler/internal/submission/store/postgres"
	"refiler/internal/transport"
	mocktransport "refiler/internal/transport/mock"
	sftptransport "refiler/internal/transport/sftp"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	log := logger.New()
	m := metrics.New()

	if cfg.JWTSigningKey == config.DevSigningKey {
		log.Warn("authenticating with the development signing key; set REFILER_JWT_SIGNING_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httpapi.HealthCheck{}

	// Stores: postgres when a database is configured, in-memory otherwise.
	var (
		subStore   submission.Store
		auditStore audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		pgStore := submissionpg.New(db)
		if err := pgStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		subStore = pgStore
		auditStore = auditpg.New(db)
		checks["database"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		subStore = submission.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		log.Warn("no database configured; submissions will not survive a restart")
	}

	// Transport: live SFTP or the in-process mock gateway.
	var tc transport.Client
	switch cfg.TransportMode {
	case config.TransportLive:
		client, err := sftptransport.New(cfg.SFTP)
		if err != nil {
			return fmt.Errorf("configure sftp transport: %w", err)
		}
		tc = client
		log.Info("using live sftp transport",
			"host", cfg.SFTP.Host, "environment", string(cfg.Environment))
	default:
		tc = mocktransport.New(mocktransport.WithAutoRespond("31000000000001"))
		log.Info("using mock transport")
	}

	auditor := audit.NewPublisher(auditStore)

	svc, err := submission.NewService(subStore, tc, auditor, log, m, submission.Config{
		MaxUploadAttempts: cfg.MaxUploadAttempts,
		FirstPollDelay:    cfg.FirstPollDelay,
		PollInterval:      cfg.PollInterval,
		BackoffInitial:    cfg.PollBackoffInitial,
	})
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	// Scheduler, with a cross-replica lock when redis is configured.
	schedOpts := []scheduler.Option{scheduler.WithPollTimeout(cfg.PollTimeout)}
	if cfg.RedisURL != "" {
		rdb, err := redis.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		lock := redis.NewLock(rdb, "refiler:poll-sweep", 2*cfg.PollInterval)
		schedOpts = append(schedOpts, scheduler.WithLock(lock))
		checks["redis"] = rdb.Health
		log.Info("poll sweeps locked across replicas")
	}
	sched := scheduler.New(svc, log, cfg.PollInterval, cfg.PollConcurrency, schedOpts...)
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "error", err)
		}
	}()

	validator, err := jwtauth.New(cfg.JWTSigningKey)
	if err != nil {
		return fmt.Errorf("configure token validator: %w", err)
	}

	handler := httpapi.NewHandler(svc, log)
	router := httpapi.NewRouter(handler, validator, log, checks)
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting refiler", "addr", cfg.Addr, "transport", string(cfg.TransportMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
