// Command ingestd is the Ingestion & Trust Service (spec.md §4.7, §6): it
// accepts agent payloads over HTTP, persists every event to Postgres,
// runs the Trust Engine, and publishes a device_risk_changed domain event
// per processed payload. Wiring follows
// apps/audit-service/cmd/api/main.go's shape exactly: zap logger, optional
// OTel tracer, Vault-sourced secrets, an OTel-instrumented pgxpool, a NATS
// JetStream client, an echo server with the same middleware stack, and
// signal-driven graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/eventbus"
	"github.com/Vamsirusheel01/sentinel-ai/internal/eventstore"
	"github.com/Vamsirusheel01/sentinel-ai/internal/ingest"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust/rules"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/config"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/logging"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/secrets"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/telemetry"
)

func main() {
	// ── Structured Logger ──────────────────────────────────────────────────
	logger, err := logging.New(os.Getenv("INGESTD_ENV"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ── OpenTelemetry Tracer + Meter ───────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "sentinel-ingestd", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}

		mp, err := telemetry.InitMeterProvider(context.Background(), "sentinel-ingestd", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
			logger.Info("OTel meter provider initialized", zap.String("endpoint", otelEndpoint))
		}
	}

	// ── Configuration ──────────────────────────────────────────────────────
	configFile := os.Getenv("INGESTD_CONFIG_FILE")
	if configFile == "" {
		configFile = "./ingestd.yaml"
	}
	cfg, err := config.LoadServer(configFile)
	if err != nil {
		logger.Fatal("failed to load server configuration", zap.Error(err))
	}

	// ── Vault Secret Loading ───────────────────────────────────────────────
	vaultAddr := cfg.VaultAddr
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		vaultAddr = v
	}
	vaultToken := cfg.VaultToken
	if v := os.Getenv("VAULT_TOKEN"); v != "" {
		vaultToken = v
	}
	secretPath := cfg.VaultSecretPath
	if v := os.Getenv("VAULT_SECRET_PATH"); v != "" {
		secretPath = v
	}

	postgresDSN := cfg.PostgresDSN
	natsURL := cfg.NatsURL
	rulesPath := cfg.RulesPath

	if postgresDSN == "" || natsURL == "" {
		vaultManager, err := secrets.NewManager(vaultAddr, vaultToken)
		if err != nil {
			logger.Fatal("Vault connection failed", zap.Error(err))
		}
		opSecrets, err := vaultManager.LoadOperationalSecrets(secretPath)
		if err != nil {
			logger.Fatal("failed to load secrets from Vault", zap.Error(err))
		}
		if postgresDSN == "" {
			postgresDSN = opSecrets.PostgresDSN
		}
		if natsURL == "" {
			natsURL = opSecrets.NatsURL
		}
		if rulesPath == "" && opSecrets.RulesPath != "" {
			rulesPath = opSecrets.RulesPath
		}
	}

	// ── Database Connection Pool (OTel-instrumented) ───────────────────────
	poolCfg, err := pgxpool.ParseConfig(postgresDSN)
	if err != nil {
		logger.Fatal("failed to parse postgres DSN", zap.Error(err))
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database (OTel-instrumented)")

	store := eventstore.NewPostgres(pool)
	if err := store.Migrate(context.Background()); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	// ── Trust Engine ───────────────────────────────────────────────────────
	ruleEngine, err := rules.Load(rulesPath)
	if err != nil {
		logger.Error("rule file failed to load, running with detection disabled",
			zap.String("path", rulesPath), zap.Error(err))
		ruleEngine = rules.Disabled()
	}

	trustParams := trust.Params{
		AlertCooldown:        time.Duration(cfg.AlertCooldownSeconds * float64(time.Second)),
		ReconContext:         time.Duration(cfg.ReconContextSeconds * float64(time.Second)),
		CompromisedRecovery:  time.Duration(cfg.CompromisedRecoverySeconds * float64(time.Second)),
		ChainEscalationBonus: cfg.ChainEscalationBonus,
		RecoveryPerCycle:     cfg.RecoveryPerCycle,
		SlowRecoveryPerCycle: cfg.SlowRecoveryPerCycle,
		FastRecoveryPerCycle: cfg.FastRecoveryPerCycle,
	}
	trustEngine := trust.New(ruleEngine, trustParams, cfg.ProcessAllowlist)

	gcInterval := cfg.CacheGCInterval
	if gcInterval <= 0 {
		gcInterval = time.Minute
	}
	gcCron := cron.New()
	clk := clock.Real{}
	if _, err := gcCron.AddFunc("@every "+gcInterval.String(), func() {
		trustEngine.GC(clk.Now())
	}); err != nil {
		logger.Fatal("failed to schedule trust engine GC", zap.Error(err))
	}
	gcCron.Start()
	defer gcCron.Stop()

	// ── NATS JetStream ─────────────────────────────────────────────────────
	var bus eventbus.Publisher = eventbus.Noop{}
	if natsURL != "" {
		busClient, err := eventbus.NewClient(natsURL, logger)
		if err != nil {
			logger.Fatal("NATS connection failed", zap.Error(err))
		}
		defer busClient.Close()
		if err := busClient.ProvisionStream(); err != nil {
			logger.Fatal("NATS stream provisioning failed", zap.Error(err))
		}
		bus = busClient
	} else {
		logger.Warn("NATS URL not configured, device_risk_changed events will not be published")
	}

	handler := ingest.New(store, trustEngine, bus, clk, logger)

	// ── HTTP Server ────────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("sentinel-ingestd"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request",
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	ingest.RegisterRoutes(e, handler)

	listenAddr := cfg.ListenAddr
	go func() {
		logger.Info("sentinel-ingestd HTTP server listening", zap.String("addr", listenAddr))
		if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	logger.Info("sentinel-ingestd shut down cleanly")
}
