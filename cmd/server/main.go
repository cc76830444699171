package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"consentry/internal/audit"
	consenthandler "consentry/internal/consent/handler"
	consentservice "consentry/internal/consent/service"
	"consentry/internal/jwttoken"
	"consentry/internal/platform/config"
	"consentry/internal/platform/httpserver"
	"consentry/internal/platform/logger"
	"consentry/internal/platform/metrics"
	platformredis "consentry/internal/platform/redis"
	"consentry/internal/registry"
	"consentry/internal/schema"
	"consentry/internal/storage"
	httptransport "consentry/internal/transport/http"
)

// dbChecker adapts *sql.DB to the transport health check interface.
type dbChecker struct{ db *sql.DB }

func (c dbChecker) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schemas := schema.BuildSchema(nil, schema.Options{}, log)

	checks := make(map[string]httptransport.HealthChecker)

	var adapter storage.Adapter
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		if err := storage.Migrate(ctx, db, schemas); err != nil {
			log.Error("migrate schema", "error", err)
			os.Exit(1)
		}
		adapter = storage.NewPostgres(db, schemas)
		checks["postgres"] = dbChecker{db: db}
	} else {
		log.Warn("no postgres DSN configured, using in-memory storage")
		adapter = storage.NewMemory(schemas)
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		adapter = storage.NewCache(adapter, redisClient.Client,
			[]string{schema.EntityDomain, schema.EntityPurpose, schema.EntityConsentPolicy},
			cfg.CacheTTL, log)
		checks["redis"] = redisClient
	}

	m := metrics.New()
	reg := registry.New(adapter, schemas, nil, log, m)

	auditQueue := audit.NewQueue(cfg.AuditQueueSize)
	auditWorker := audit.NewWorker(audit.NewRegistryStore(reg), auditQueue.Events(), log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	consentService := consentservice.New(reg, auditQueue, log, m, cfg.DefaultPolicyVersion)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	consentHandler := consenthandler.New(consentService, log, m, jwttoken.NewAdapter(jwtService))

	handler := httptransport.NewHandler(log, reg, checks)
	router := httptransport.NewRouter(handler, consentHandler)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting consentry", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// The worker flushes buffered audit events before exiting.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("audit worker did not drain in time")
	}
}
