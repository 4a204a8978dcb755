// Command agent is the host-resident endpoint telemetry collector
// (spec.md §3): it anchors execution contexts from process activity,
// attaches every other probe's events onto them by pid, cleans and
// buffers each context at expiry, and periodically ships the buffer to
// the Ingestion & Trust Service. Wiring follows the same shape as
// cmd/ingestd/main.go (logger → optional OTel → durable stores →
// workers on a cancellable context → graceful shutdown), grounded on
// apps/audit-service/cmd/api/main.go.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/buffer"
	"github.com/Vamsirusheel01/sentinel-ai/internal/cleaner"
	"github.com/Vamsirusheel01/sentinel-ai/internal/contextengine"
	"github.com/Vamsirusheel01/sentinel-ai/internal/identity"
	"github.com/Vamsirusheel01/sentinel-ai/internal/linker"
	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
	"github.com/Vamsirusheel01/sentinel-ai/internal/probes"
	"github.com/Vamsirusheel01/sentinel-ai/internal/rawstore"
	"github.com/Vamsirusheel01/sentinel-ai/internal/sender"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/config"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/logging"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/telemetry"
)

func main() {
	// ── Structured Logger ──────────────────────────────────────────────────
	logger, err := logging.New(os.Getenv("AGENT_ENV"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ── OpenTelemetry Tracer ───────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "sentinel-agent", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}
	}

	// ── Configuration ──────────────────────────────────────────────────────
	configFile := os.Getenv("AGENT_CONFIG_FILE")
	if configFile == "" {
		configFile = "./agent.yaml"
	}
	cfg, err := config.LoadAgent(configFile)
	if err != nil {
		logger.Fatal("failed to load agent configuration", zap.Error(err))
	}

	device := identity.Resolve()
	logger.Info("device identity resolved",
		zap.String("device_id", device.DeviceID),
		zap.String("hostname", device.Hostname),
	)

	clk := clock.Real{}

	// ── Durable Stores ─────────────────────────────────────────────────────
	rawStore, err := rawstore.New(cfg.RawStoreDir, logger)
	if err != nil {
		logger.Fatal("failed to open raw store", zap.Error(err))
	}
	sweeper := rawstore.NewRetentionSweeper(rawStore, cfg.RawRetention, clk, logger)
	if _, err := sweeper.Start(cfg.RetentionSweep); err != nil {
		logger.Fatal("failed to start raw store retention sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	outbox, err := buffer.New(cfg.BufferDir)
	if err != nil {
		logger.Fatal("failed to open buffer", zap.Error(err))
	}

	// ── Context Engine ─────────────────────────────────────────────────────
	mgr := contextengine.New(device, cfg.ContextTimeout, clk, rawStore)
	pidLinker := linker.New()

	// ── Probes ─────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processProbe, err := probes.NewProcessProbe(mgr, pidLinker, logger)
	if err != nil {
		logger.Fatal("failed to construct process probe", zap.Error(err))
	}
	networkProbe, err := probes.NewNetworkProbe(mgr, pidLinker, logger)
	if err != nil {
		logger.Fatal("failed to construct network probe", zap.Error(err))
	}
	memoryProbe, err := probes.NewMemoryProbe(mgr, pidLinker, logger)
	if err != nil {
		logger.Fatal("failed to construct memory probe", zap.Error(err))
	}
	filesystemProbe := probes.NewFilesystemProbe(cfg.FilesystemWatchPaths, mgr, logger)
	persistenceProbe := probes.NewPersistenceProbe(persistencePath(), mgr, logger)
	privilegeProbe := probes.NewPrivilegeProbe(cfg.PrivilegeProtectedPaths, mgr, logger)

	go processProbe.Run(ctx, cfg.ProcessPollInterval)
	go networkProbe.Run(ctx, cfg.NetworkPollInterval)
	go memoryProbe.Run(ctx, cfg.MemoryPollInterval)
	go filesystemProbe.Run(ctx, cfg.FilesystemPollInterval)
	go persistenceProbe.Run(ctx, cfg.PersistencePollInterval)
	go privilegeProbe.Run(ctx, cfg.PrivilegePollInterval)

	// ── Expiry Watcher: clean + enqueue ────────────────────────────────────
	go mgr.Watch(ctx, cfg.ExpiryTickInterval, func(expired model.Context) {
		clean := cleaner.Clean(expired)
		if err := outbox.Enqueue(clean); err != nil {
			logger.Error("failed to enqueue clean context",
				zap.String("context_id", clean.ContextID), zap.Error(err))
		}
	})

	// ── Sender ─────────────────────────────────────────────────────────────
	sendLoop := sender.New(outbox, cfg.IngestURL, cfg.MaxBatchSize, cfg.SendTimeout, logger)
	go sendLoop.Run(ctx, cfg.SendInterval)

	logger.Info("sentinel-agent started",
		zap.String("ingest_url", cfg.IngestURL),
		zap.Duration("context_timeout", cfg.ContextTimeout),
	)

	// ── Graceful Shutdown ──────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	cancel() // stops every probe and forces the context watcher to drain

	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	time.Sleep(grace)

	sendLoop.Pass(context.Background())
	logger.Info("sentinel-agent shut down cleanly")
}

// persistencePath returns the autostart directory the persistence probe
// watches, which has no portable single answer across OSes (spec.md
// §4.1's original collectors hard-code a Windows path); Linux hosts get the
// XDG autostart directory (~/.config/autostart, or /etc/xdg/autostart when
// the home directory is unknown) as the nearest equivalent.
func persistencePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/autostart"
	}
	return "/etc/xdg/autostart"
}
