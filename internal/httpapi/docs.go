package httpapi

import "net/http"

// openapiJSON and openapiYAML are static documents describing the routes
// table in §4.7. They are hand-maintained rather than generated, matching
// the teacher's preference for a small number of dependencies over a
// reflection-based spec generator.
const openapiJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "mikroscope", "version": "1"},
  "paths": {
    "/health": {"get": {"summary": "Composite health report"}},
    "/api/ingest": {"post": {"summary": "Accept a batch of NDJSON-shaped log records"}},
    "/api/logs": {"get": {"summary": "Paginated, filtered log query"}},
    "/api/logs/aggregate": {"get": {"summary": "Grouped counts over the log index"}},
    "/api/reindex": {"post": {"summary": "Trigger an on-demand indexing pass"}},
    "/api/alerts/config": {
      "get": {"summary": "Read the alerting policy"},
      "put": {"summary": "Update the alerting policy"}
    },
    "/api/alerts/test-webhook": {"post": {"summary": "Send a manual test webhook"}}
  }
}
`

const openapiYAML = `openapi: 3.0.3
info:
  title: mikroscope
  version: "1"
paths:
  /health:
    get:
      summary: Composite health report
  /api/ingest:
    post:
      summary: Accept a batch of NDJSON-shaped log records
  /api/logs:
    get:
      summary: Paginated, filtered log query
  /api/logs/aggregate:
    get:
      summary: Grouped counts over the log index
  /api/reindex:
    post:
      summary: Trigger an on-demand indexing pass
  /api/alerts/config:
    get:
      summary: Read the alerting policy
    put:
      summary: Update the alerting policy
  /api/alerts/test-webhook:
    post:
      summary: Send a manual test webhook
`

const docsHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>mikroscope</title></head>
<body>
<h1>mikroscope</h1>
<p>Log sidecar HTTP API. See <a href="/openapi.json">/openapi.json</a> or <a href="/openapi.yaml">/openapi.yaml</a>.</p>
</body>
</html>
`

func handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(openapiJSON))
}

func handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write([]byte(openapiYAML))
}

func handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(docsHTML))
}
