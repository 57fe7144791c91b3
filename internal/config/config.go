// Package config resolves the server's configuration by layering defaults,
// an optional JSON file, environment variables, and command-line flags —
// each layer overriding the previous one, field by field.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the full set of recognized server options.
type Config struct {
	DBPath   string `json:"dbPath"`
	LogsPath string `json:"logsPath"`

	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"` // http | https
	TLSCert  string `json:"tlsCertPath"`
	TLSKey   string `json:"tlsKeyPath"`

	APIToken      string `json:"apiToken"`
	AuthUsername  string `json:"authUsername"`
	AuthPassword  string `json:"authPassword"`
	CORSOrigin    string `json:"corsAllowOrigin"`
	IngestProducersRaw string `json:"ingestProducers"` // "token=producerId,token2=producerId2"

	IngestMaxBodyBytes int64 `json:"ingestMaxBodyBytes"`
	IngestIntervalMs   int   `json:"ingestIntervalMs"`
	DisableAutoIngest  bool  `json:"disableAutoIngest"`
	IngestAsyncQueue   bool  `json:"ingestAsyncQueue"`
	IngestQueueFlushMs int   `json:"ingestQueueFlushMs"`

	LogRetentionDays      int `json:"logRetentionDays"`
	LogAuditRetentionDays int `json:"logAuditRetentionDays"`
	DBRetentionDays       int `json:"dbRetentionDays"`
	DBAuditRetentionDays  int `json:"dbAuditRetentionDays"`
	MaintenanceIntervalMs int `json:"maintenanceIntervalMs"`
	AuditBackupDirectory  string `json:"auditBackupDirectory"`

	AlertingEnabled        bool   `json:"alertingEnabled"`
	AlertWebhookURL        string `json:"alertWebhookUrl"`
	AlertIntervalMs        int    `json:"alertIntervalMs"`
	AlertWindowMinutes     int    `json:"alertWindowMinutes"`
	AlertErrorThreshold    int    `json:"alertErrorThreshold"`
	AlertNoLogsThresholdMinutes int `json:"alertNoLogsThresholdMinutes"`
	AlertCooldownMs        int    `json:"alertCooldownMs"`
	AlertWebhookTimeoutMs  int    `json:"alertWebhookTimeoutMs"`
	AlertWebhookRetryAttempts int `json:"alertWebhookRetryAttempts"`
	AlertWebhookBackoffMs  int    `json:"alertWebhookBackoffMs"`
	AlertAllowPrivateWebhookTargets bool `json:"alertAllowPrivateWebhookTargets"`
	AlertConfigPath        string `json:"alertConfigPath"`

	MinFreeBytes uint64 `json:"minFreeBytes"`

	ConfigFile string `json:"-"`
}

// Defaults returns the baseline configuration before any file, env, or
// flag overlay.
func Defaults() Config {
	return Config{
		DBPath:   "data/mikroscope.db",
		LogsPath: "data/logs",

		Host:     "0.0.0.0",
		Port:     8085,
		Protocol: "http",

		CORSOrigin: "*",

		IngestMaxBodyBytes: 1 << 20,
		IngestIntervalMs:   2000,
		IngestQueueFlushMs: 500,

		MaintenanceIntervalMs: 21_600_000,

		AlertIntervalMs:           30_000,
		AlertWindowMinutes:        5,
		AlertErrorThreshold:       20,
		AlertCooldownMs:           300_000,
		AlertWebhookTimeoutMs:     5_000,
		AlertWebhookRetryAttempts: 3,
		AlertWebhookBackoffMs:     250,
		AlertAllowPrivateWebhookTargets: true,

		MinFreeBytes: 256 << 20,
	}
}

// LoadFile overlays the JSON document at path onto cfg. A missing file is
// not an error — the seed is used as-is.
func LoadFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays recognized environment variables onto cfg.
func ApplyEnv(cfg Config) Config {
	str(&cfg.DBPath, "MIKROSCOPE_DB_PATH")
	str(&cfg.LogsPath, "MIKROSCOPE_LOGS_PATH")
	str(&cfg.Host, "MIKROSCOPE_HOST")
	intVal(&cfg.Port, "MIKROSCOPE_PORT")
	str(&cfg.Protocol, "MIKROSCOPE_PROTOCOL")
	str(&cfg.TLSCert, "MIKROSCOPE_TLS_CERT_PATH")
	str(&cfg.TLSKey, "MIKROSCOPE_TLS_KEY_PATH")
	str(&cfg.APIToken, "MIKROSCOPE_API_TOKEN")
	str(&cfg.AuthUsername, "MIKROSCOPE_AUTH_USERNAME")
	str(&cfg.AuthPassword, "MIKROSCOPE_AUTH_PASSWORD")
	str(&cfg.CORSOrigin, "MIKROSCOPE_CORS_ALLOW_ORIGIN")
	str(&cfg.IngestProducersRaw, "MIKROSCOPE_INGEST_PRODUCERS")
	int64Val(&cfg.IngestMaxBodyBytes, "MIKROSCOPE_INGEST_MAX_BODY_BYTES")
	intVal(&cfg.IngestIntervalMs, "MIKROSCOPE_INGEST_INTERVAL_MS")
	boolVal(&cfg.DisableAutoIngest, "MIKROSCOPE_DISABLE_AUTO_INGEST")
	boolVal(&cfg.IngestAsyncQueue, "MIKROSCOPE_INGEST_ASYNC_QUEUE")
	intVal(&cfg.IngestQueueFlushMs, "MIKROSCOPE_INGEST_QUEUE_FLUSH_MS")
	intVal(&cfg.LogRetentionDays, "MIKROSCOPE_LOG_RETENTION_DAYS")
	intVal(&cfg.LogAuditRetentionDays, "MIKROSCOPE_LOG_AUDIT_RETENTION_DAYS")
	intVal(&cfg.DBRetentionDays, "MIKROSCOPE_DB_RETENTION_DAYS")
	intVal(&cfg.DBAuditRetentionDays, "MIKROSCOPE_DB_AUDIT_RETENTION_DAYS")
	intVal(&cfg.MaintenanceIntervalMs, "MIKROSCOPE_MAINTENANCE_INTERVAL_MS")
	str(&cfg.AuditBackupDirectory, "MIKROSCOPE_AUDIT_BACKUP_DIRECTORY")
	boolVal(&cfg.AlertingEnabled, "MIKROSCOPE_ALERT_ENABLED")
	str(&cfg.AlertWebhookURL, "MIKROSCOPE_ALERT_WEBHOOK_URL")
	intVal(&cfg.AlertIntervalMs, "MIKROSCOPE_ALERT_INTERVAL_MS")
	intVal(&cfg.AlertWindowMinutes, "MIKROSCOPE_ALERT_WINDOW_MINUTES")
	intVal(&cfg.AlertErrorThreshold, "MIKROSCOPE_ALERT_ERROR_THRESHOLD")
	intVal(&cfg.AlertNoLogsThresholdMinutes, "MIKROSCOPE_ALERT_NO_LOGS_THRESHOLD_MINUTES")
	intVal(&cfg.AlertCooldownMs, "MIKROSCOPE_ALERT_COOLDOWN_MS")
	intVal(&cfg.AlertWebhookTimeoutMs, "MIKROSCOPE_ALERT_WEBHOOK_TIMEOUT_MS")
	intVal(&cfg.AlertWebhookRetryAttempts, "MIKROSCOPE_ALERT_WEBHOOK_RETRY_ATTEMPTS")
	intVal(&cfg.AlertWebhookBackoffMs, "MIKROSCOPE_ALERT_WEBHOOK_BACKOFF_MS")
	boolVal(&cfg.AlertAllowPrivateWebhookTargets, "MIKROSCOPE_ALERT_ALLOW_PRIVATE_WEBHOOK_TARGETS")
	str(&cfg.AlertConfigPath, "MIKROSCOPE_ALERT_CONFIG_PATH")
	uint64Val(&cfg.MinFreeBytes, "MIKROSCOPE_MIN_FREE_BYTES")
	return cfg
}

// ApplyFlags overlays command-line flags onto cfg. Flags default to the
// already-layered value so an unset flag never clobbers it.
func ApplyFlags(cfg Config, args []string) (Config, error) {
	fs := flag.NewFlagSet("mikroscope", flag.ContinueOnError)

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the index database file")
	fs.StringVar(&cfg.LogsPath, "logs-path", cfg.LogsPath, "path to the raw NDJSON logs root")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	fs.StringVar(&cfg.Protocol, "protocol", cfg.Protocol, "http or https")
	fs.StringVar(&cfg.TLSCert, "tls-cert-path", cfg.TLSCert, "TLS certificate path")
	fs.StringVar(&cfg.TLSKey, "tls-key-path", cfg.TLSKey, "TLS key path")
	fs.StringVar(&cfg.APIToken, "api-token", cfg.APIToken, "bearer token for /api/*")
	fs.StringVar(&cfg.AuthUsername, "auth-username", cfg.AuthUsername, "basic auth username")
	fs.StringVar(&cfg.AuthPassword, "auth-password", cfg.AuthPassword, "basic auth password")
	fs.StringVar(&cfg.CORSOrigin, "cors-allow-origin", cfg.CORSOrigin, "comma-separated origin allowlist, or *")
	fs.StringVar(&cfg.IngestProducersRaw, "ingest-producers", cfg.IngestProducersRaw, "comma list of token=producerId")
	fs.Int64Var(&cfg.IngestMaxBodyBytes, "ingest-max-body-bytes", cfg.IngestMaxBodyBytes, "ingest request body ceiling")
	fs.IntVar(&cfg.IngestIntervalMs, "ingest-interval-ms", cfg.IngestIntervalMs, "auto-ingest ticker interval")
	fs.BoolVar(&cfg.DisableAutoIngest, "disable-auto-ingest", cfg.DisableAutoIngest, "disable the auto-ingest ticker")
	fs.BoolVar(&cfg.IngestAsyncQueue, "ingest-async-queue", cfg.IngestAsyncQueue, "queue ingest batches instead of writing synchronously")
	fs.IntVar(&cfg.IngestQueueFlushMs, "ingest-queue-flush-ms", cfg.IngestQueueFlushMs, "async queue coalescing window")
	fs.IntVar(&cfg.LogRetentionDays, "log-retention-days", cfg.LogRetentionDays, "normal NDJSON retention, 0 disables")
	fs.IntVar(&cfg.LogAuditRetentionDays, "log-audit-retention-days", cfg.LogAuditRetentionDays, "audit NDJSON retention, 0 disables")
	fs.IntVar(&cfg.DBRetentionDays, "db-retention-days", cfg.DBRetentionDays, "normal entry retention, 0 disables")
	fs.IntVar(&cfg.DBAuditRetentionDays, "db-audit-retention-days", cfg.DBAuditRetentionDays, "audit entry retention, 0 disables")
	fs.IntVar(&cfg.MaintenanceIntervalMs, "maintenance-interval-ms", cfg.MaintenanceIntervalMs, "maintenance loop interval, minimum 1000")
	fs.StringVar(&cfg.AuditBackupDirectory, "audit-backup-directory", cfg.AuditBackupDirectory, "directory audit files are copied to before deletion")
	fs.BoolVar(&cfg.AlertingEnabled, "alert-enabled", cfg.AlertingEnabled, "enable the alerting manager")
	fs.StringVar(&cfg.AlertWebhookURL, "alert-webhook-url", cfg.AlertWebhookURL, "alert webhook target")
	fs.IntVar(&cfg.AlertIntervalMs, "alert-interval-ms", cfg.AlertIntervalMs, "alert evaluation interval")
	fs.IntVar(&cfg.AlertWindowMinutes, "alert-window-minutes", cfg.AlertWindowMinutes, "error_threshold window")
	fs.IntVar(&cfg.AlertErrorThreshold, "alert-error-threshold", cfg.AlertErrorThreshold, "error_threshold count")
	fs.IntVar(&cfg.AlertNoLogsThresholdMinutes, "alert-no-logs-threshold-minutes", cfg.AlertNoLogsThresholdMinutes, "no_logs threshold, 0 disables")
	fs.IntVar(&cfg.AlertCooldownMs, "alert-cooldown-ms", cfg.AlertCooldownMs, "per-rule cooldown")
	fs.IntVar(&cfg.AlertWebhookTimeoutMs, "alert-webhook-timeout-ms", cfg.AlertWebhookTimeoutMs, "per-attempt webhook timeout")
	fs.IntVar(&cfg.AlertWebhookRetryAttempts, "alert-webhook-retry-attempts", cfg.AlertWebhookRetryAttempts, "webhook delivery attempts")
	fs.IntVar(&cfg.AlertWebhookBackoffMs, "alert-webhook-backoff-ms", cfg.AlertWebhookBackoffMs, "webhook retry base backoff")
	fs.BoolVar(&cfg.AlertAllowPrivateWebhookTargets, "alert-allow-private-webhook-targets", cfg.AlertAllowPrivateWebhookTargets, "allow webhookUrl to target a loopback/private address")
	fs.StringVar(&cfg.AlertConfigPath, "alert-config-path", cfg.AlertConfigPath, "persisted alert policy path")
	fs.Uint64Var(&cfg.MinFreeBytes, "min-free-bytes", cfg.MinFreeBytes, "minimum free disk space required at preflight")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "path to a JSON config file")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load runs the full defaults -> file -> env -> flags pipeline. The config
// file path itself is resolved from MIKROSCOPE_CONFIG_FILE or -config,
// checked before the JSON overlay so a -config flag can point at a
// different file than the env var.
func Load(args []string) (Config, error) {
	cfg := Defaults()

	configFile := os.Getenv("MIKROSCOPE_CONFIG_FILE")
	for i, a := range args {
		if a == "-config" || a == "--config" {
			if i+1 < len(args) {
				configFile = args[i+1]
			}
		} else if strings.HasPrefix(a, "-config=") {
			configFile = strings.TrimPrefix(a, "-config=")
		} else if strings.HasPrefix(a, "--config=") {
			configFile = strings.TrimPrefix(a, "--config=")
		}
	}

	cfg, err := LoadFile(cfg, configFile)
	if err != nil {
		return cfg, err
	}
	cfg.ConfigFile = configFile

	cfg = ApplyEnv(cfg)

	cfg, err = ApplyFlags(cfg, args)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// IngestProducers parses "token=producerId,token2=producerId2" into a map.
func (c Config) IngestProducers() map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(c.IngestProducersRaw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

func str(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func intVal(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func int64Val(dst *int64, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func uint64Val(dst *uint64, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func boolVal(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
