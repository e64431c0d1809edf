package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"vigil/internal/audit"
	audithandler "vigil/internal/audit/handler"
	auditmetrics "vigil/internal/audit/metrics"
	auditpublisher "vigil/internal/audit/publisher"
	auditmemory "vigil/internal/audit/store/memory"
	auditpostgres "vigil/internal/audit/store/postgres"
	"vigil/internal/db"
	exporthandler "vigil/internal/export/handler"
	exportmetrics "vigil/internal/export/metrics"
	exportservice "vigil/internal/export/service"
	exportmemory "vigil/internal/export/store/memory"
	exportpostgres "vigil/internal/export/store/postgres"
	jwttoken "vigil/internal/jwt_token"
	"vigil/internal/mode"
	modehandler "vigil/internal/mode/handler"
	modemetrics "vigil/internal/mode/metrics"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/kafka"
	"vigil/internal/platform/logger"
	platformredis "vigil/internal/platform/redis"
	riskhandler "vigil/internal/risk/handler"
	riskmetrics "vigil/internal/risk/metrics"
	riskservice "vigil/internal/risk/service"
	riskmemory "vigil/internal/risk/store/memory"
	riskredis "vigil/internal/risk/store/redis"
	"vigil/pkg/domain"
	"vigil/pkg/platform/circuit"
	authmw "vigil/pkg/platform/middleware/auth"
	"vigil/pkg/platform/middleware/request"
	"vigil/pkg/platform/middleware/requesttime"
)

const (
	jwtIssuer       = "vigil"
	jwtAudience     = "vigil-api"
	auditOutboxSize = 256
	shutdownTimeout = 10 * time.Second
)

// main wires the governance core and runs the HTTP server, the audit chain
// verifier and the audit outbox worker until a signal arrives or one of them
// fails.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("vigil stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.UsingDevSigningKey() {
		log.Warn("using development JWT signing key")
	}

	var sqlDB *sql.DB
	if cfg.Database.URL != "" {
		var err error
		sqlDB, err = db.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		if err := db.Migrate(ctx, sqlDB, log); err != nil {
			return err
		}
	} else {
		log.Warn("DATABASE_URL not set, audit chain and export requests are kept in memory")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Audit chain, with an optional Kafka fan-out.
	auditMetrics := auditmetrics.New()
	auditOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(auditMetrics)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, "vigil")
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 1, 1); err != nil {
			log.Warn("audit topic bootstrap failed", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		outbox := make(chan audit.Entry, auditOutboxSize)
		auditOpts = append(auditOpts, audit.WithOutbox(outbox))
		worker := audit.NewWorker(auditpublisher.NewKafka(producer, cfg.Kafka.AuditTopic), outbox, log, auditMetrics,
			audit.WithBreaker(circuit.New("audit-kafka")),
		)
		g.Go(func() error { return ignoreCanceled(worker.Run(ctx)) })
	}

	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if sqlDB != nil {
		auditStore = auditpostgres.New(sqlDB)
	}
	chain, err := audit.New(auditStore, auditOpts...)
	if err != nil {
		return err
	}
	verifier := audit.NewVerifier(chain, cfg.TTL.AuditVerifyInterval, log)
	g.Go(func() error { return ignoreCanceled(verifier.Run(ctx)) })

	// Mode policy.
	initial := mode.Resolve(cfg.Governance.Mode, cfg.Governance.LegacyMode)
	controller, err := mode.NewController(initial, cfg.Governance.NoNetwork, chain,
		mode.WithLogger(log),
		mode.WithMetrics(modemetrics.New()),
	)
	if err != nil {
		return err
	}
	log.Info("governance mode resolved", "mode", initial, "no_network", cfg.Governance.NoNetwork)

	// Risk classifier.
	var riskStore riskservice.Store = riskmemory.NewInMemoryStore()
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		riskStore = riskredis.New(redisClient.Client, -1)
	}
	risk, err := riskservice.New(riskStore, chain,
		riskservice.WithLogger(log),
		riskservice.WithMetrics(riskmetrics.New()),
		riskservice.WithScanTTL(cfg.TTL.Scan),
		riskservice.WithOverrideTTL(cfg.TTL.Override),
	)
	if err != nil {
		return err
	}

	// Approval workflow.
	var exportStore exportservice.Store = exportmemory.NewInMemoryStore()
	if sqlDB != nil {
		exportStore = exportpostgres.New(sqlDB)
	}
	exports, err := exportservice.New(exportStore, chain, controller,
		exportservice.WithLogger(log),
		exportservice.WithMetrics(exportmetrics.New()),
		exportservice.WithScanner(risk),
		exportservice.WithRequestTTL(cfg.TTL.ExportRequest),
	)
	if err != nil {
		return err
	}

	jwtValidator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwtIssuer, jwtAudience),
	)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Get("/healthz", health(sqlDB, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	modeHandler := modehandler.New(controller, log)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwtValidator, log))
		modeHandler.Register(r)
		riskhandler.New(risk, log).Register(r)
		exporthandler.New(exports, log).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireRole(domain.RoleAdmin, log))
			modeHandler.RegisterAdmin(r)
			audithandler.New(chain, log).RegisterAdmin(r)
		})
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	g.Go(func() error {
		log.Info("starting vigil", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func health(sqlDB *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sqlDB != nil {
			if err := sqlDB.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
