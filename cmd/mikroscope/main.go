// Command mikroscope runs the log sidecar HTTP service: ingest, index,
// query, alert, and retain NDJSON logs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikroscope/sidecar/internal/alerting"
	"github.com/mikroscope/sidecar/internal/config"
	"github.com/mikroscope/sidecar/internal/httpapi"
	"github.com/mikroscope/sidecar/internal/maintenance"
	"github.com/mikroscope/sidecar/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	opts := buildServerOptions(cfg, logger)

	srv, err := server.New(opts)
	if err != nil {
		logger.Error("startup", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("mikroscope listening",
		"host", cfg.Host, "port", cfg.Port, "protocol", cfg.Protocol,
		"dbPath", cfg.DBPath, "logsPath", cfg.LogsPath)

	if err := srv.Serve(ctx); err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}

	logger.Info("mikroscope shut down cleanly")
}

func buildServerOptions(cfg config.Config, logger *slog.Logger) server.Options {
	seed := alerting.DefaultPolicy()
	seed.Enabled = cfg.AlertingEnabled || cfg.AlertWebhookURL != ""
	seed.WebhookURL = cfg.AlertWebhookURL
	if cfg.AlertIntervalMs > 0 {
		seed.IntervalMs = cfg.AlertIntervalMs
	}
	if cfg.AlertWindowMinutes > 0 {
		seed.WindowMinutes = cfg.AlertWindowMinutes
	}
	if cfg.AlertErrorThreshold > 0 {
		seed.ErrorThreshold = cfg.AlertErrorThreshold
	}
	seed.NoLogsThresholdMinutes = cfg.AlertNoLogsThresholdMinutes
	if cfg.AlertCooldownMs > 0 {
		seed.CooldownMs = cfg.AlertCooldownMs
	}
	if cfg.AlertWebhookTimeoutMs > 0 {
		seed.WebhookTimeoutMs = cfg.AlertWebhookTimeoutMs
	}
	if cfg.AlertWebhookRetryAttempts > 0 {
		seed.WebhookRetryAttempts = cfg.AlertWebhookRetryAttempts
	}
	if cfg.AlertWebhookBackoffMs > 0 {
		seed.WebhookBackoffMs = cfg.AlertWebhookBackoffMs
	}
	seed.AllowPrivateWebhookTargets = cfg.AlertAllowPrivateWebhookTargets

	auth := httpapi.AuthConfig{
		BearerToken:     cfg.APIToken,
		BasicUsername:   cfg.AuthUsername,
		BasicPassword:   cfg.AuthPassword,
		IngestProducers: cfg.IngestProducers(),
	}

	return server.Options{
		DBPath:             cfg.DBPath,
		LogsPath:           cfg.LogsPath,
		Host:               cfg.Host,
		Port:               cfg.Port,
		Protocol:           cfg.Protocol,
		TLSCert:            cfg.TLSCert,
		TLSKey:             cfg.TLSKey,
		Auth:               auth,
		CORSAllowOrigin:    cfg.CORSOrigin,
		IngestMaxBodyBytes: cfg.IngestMaxBodyBytes,
		IngestIntervalMs:   cfg.IngestIntervalMs,
		DisableAutoIngest:  cfg.DisableAutoIngest,
		IngestAsyncQueue:   cfg.IngestAsyncQueue,
		IngestQueueFlushMs: cfg.IngestQueueFlushMs,
		Maintenance: maintenance.Config{
			LogRetentionDays:      cfg.LogRetentionDays,
			LogAuditRetentionDays: cfg.LogAuditRetentionDays,
			DBRetentionDays:       cfg.DBRetentionDays,
			DBAuditRetentionDays:  cfg.DBAuditRetentionDays,
			AuditBackupDirectory:  cfg.AuditBackupDirectory,
		},
		MaintenanceIntervalMs: cfg.MaintenanceIntervalMs,
		MinFreeBytes:          cfg.MinFreeBytes,
		AlertSeed:             seed,
		AlertConfigPath:       cfg.AlertConfigPath,
		Logger:                logger,
	}
}

