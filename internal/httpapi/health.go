package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mikroscope/sidecar/internal/diskspace"
)

func (d *Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	queue := d.Pipeline.QueueStats()

	producerCount := len(d.Auth.IngestProducers)
	if d.Auth.BasicUsername != "" && d.Auth.BasicPassword != "" {
		producerCount++
	}

	dbDir := filepath.Dir(d.DBPath)
	dbSize := int64(0)
	if info, err := os.Stat(d.DBPath); err == nil {
		dbSize = info.Size()
	}
	dbFree, _ := diskspace.FreeBytes(dbDir)
	logsFree, _ := diskspace.FreeBytes(d.Indexer.Root)

	resp := map[string]any{
		"ok":        true,
		"service":   "mikroscope",
		"uptimeSec": int64(time.Since(d.StartedAt).Seconds()),
		"ingest":    queue,
		"auth": map[string]any{
			"apiTokenEnabled": d.Auth.BearerToken != "",
			"basicEnabled":    d.Auth.BasicUsername != "" && d.Auth.BasicPassword != "",
		},
		"ingestPolicy": map[string]any{
			"async":      d.Pipeline.Async,
			"flushDelay": d.Pipeline.FlushDelay.String(),
		},
		"ingestEndpoint": map[string]any{
			"enabled":       producerCount > 0,
			"maxBodyBytes":  d.Pipeline.MaxBodyBytes,
			"producerCount": producerCount,
			"queue":         queue,
		},
		"alerting":    d.Alerting.State(),
		"alertPolicy": d.Alerting.Policy().Masked(),
		"maintenance": map[string]any{
			"lastError": d.Maintenance.LastError(),
		},
		"retentionDays": map[string]any{
			"db":        d.Maintenance.DBRetentionDays,
			"dbAudit":   d.Maintenance.DBAuditRetentionDays,
			"logs":      d.Maintenance.LogRetentionDays,
			"logsAudit": d.Maintenance.LogAuditRetentionDays,
		},
		"backup": map[string]any{
			"auditDirectory": d.Maintenance.AuditBackupDirectory,
		},
		"storage": map[string]any{
			"dbApproximateSizeBytes": dbSize,
			"dbDirectoryFreeBytes":   dbFree,
			"logsDirectoryFreeBytes": logsFree,
			"minFreeBytes":           d.MinFreeBytes,
		},
	}

	writeJSON(w, http.StatusOK, resp)
}
