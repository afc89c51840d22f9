package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/Sentinel/internal/adapter/filestore"
	shttp "github.com/Strob0t/Sentinel/internal/adapter/http"
	smcp "github.com/Strob0t/Sentinel/internal/adapter/mcp"
	snats "github.com/Strob0t/Sentinel/internal/adapter/nats"
	"github.com/Strob0t/Sentinel/internal/adapter/natskv"
	"github.com/Strob0t/Sentinel/internal/adapter/otel"
	"github.com/Strob0t/Sentinel/internal/adapter/postgres"
	"github.com/Strob0t/Sentinel/internal/adapter/ristretto"
	"github.com/Strob0t/Sentinel/internal/adapter/tiered"
	"github.com/Strob0t/Sentinel/internal/adapter/ws"
	"github.com/Strob0t/Sentinel/internal/config"
	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/confidence"
	"github.com/Strob0t/Sentinel/internal/domain/gate"
	"github.com/Strob0t/Sentinel/internal/domain/risk"
	"github.com/Strob0t/Sentinel/internal/logger"
	"github.com/Strob0t/Sentinel/internal/middleware"
	"github.com/Strob0t/Sentinel/internal/port/cache"
	"github.com/Strob0t/Sentinel/internal/port/eventbus"
	"github.com/Strob0t/Sentinel/internal/port/statestore"
	"github.com/Strob0t/Sentinel/internal/resilience"
	"github.com/Strob0t/Sentinel/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownMetrics, err := otel.InitMetrics(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownMetrics(shutdownCtx)
	}()
	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- State store ---
	var (
		sessions statestore.SessionStore
		patterns statestore.PatternStore
		audit    statestore.BypassAudit
		ping     func(context.Context) error
	)
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")

		store := postgres.NewStore(pool)
		sessions, patterns, audit = store, store, store
		ping = pool.Ping
	case "file":
		store, err := filestore.New(cfg.Store.FileDir)
		if err != nil {
			return fmt.Errorf("filestore: %w", err)
		}
		slog.Info("file store ready", "dir", cfg.Store.FileDir)
		sessions, patterns, audit = store, store, store
	}

	// --- NATS (optional) ---
	var bus eventbus.Publisher
	var l2 cache.Cache
	if cfg.NATS.URL != "" {
		nb, err := snats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			// The gate must keep answering without the bus; audit events
			// are dropped until NATS returns and the next restart.
			slog.Warn("nats unavailable, events disabled", "error", err)
		} else {
			defer func() { _ = nb.Close() }()
			bus = nb
			if kv, err := nb.CacheBucket(ctx, cfg.NATS.CacheBucket, cfg.NATS.CacheTTL); err != nil {
				slog.Warn("nats kv cache unavailable", "error", err)
			} else {
				l2 = natskv.New(kv)
			}
		}
	}

	// --- Session cache ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	var sessCache cache.Cache = l1
	if l2 != nil {
		sessCache = tiered.New(l1, l2, cfg.Cache.L1TTL)
	}

	// --- Services ---
	hub := ws.NewHub()
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	gateSvc := service.NewGateService(service.GateDeps{
		Gate:     gate.New(action.NewClassifier(cfg.Gate.ProductionPatterns, cfg.Gate.DisposablePatterns)),
		Conf:     confidence.NewEngine(cfg.Confidence),
		Risk:     risk.NewEngine(nil),
		Tuner:    cfg.Tuner,
		Sessions: sessions,
		Patterns: patterns,
		Audit:    audit,
		Cache:    sessCache,
		Bus:      bus,
		Caster:   hub,
		Breaker:  breaker,
		Metrics:  metrics,
		CacheTTL: cfg.Cache.L1TTL,
	})
	patternSvc := service.NewPatternService(patterns, cfg.Tuner)

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := smcp.NewServer(smcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "sentinel",
			Version: "0.1.0",
			APIKey:  cfg.MCP.APIKey,
		}, smcp.ServerDeps{
			Gate:     gateSvc,
			Reporter: gateSvc,
			Sessions: gateSvc,
			Patterns: patternSvc,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
		slog.Info("mcp server listening", "addr", cfg.MCP.Addr)
	}

	// --- HTTP ---
	handlers := shttp.NewHandlers(gateSvc, patternSvc, hub)
	handlers.Ping = ping
	handlers.BreakerState = breaker.State

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(shttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(shttp.Logger)
	r.Use(shttp.SecurityHeaders)
	r.Use(otel.HTTPMiddleware("sentinel-gate"))
	r.Use(limiter.Handler)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	shttp.MountRoutes(r, handlers, cfg.Server.AdminToken)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
