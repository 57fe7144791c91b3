package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mikroscope/sidecar/internal/httpmw"
)

// NewRouter assembles the full HTTP surface: ambient middleware, CORS,
// auth, and every route in the table.
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(httpmw.Recover)
	r.Use(httpmw.TraceID)
	r.Use(httpmw.SecurityHeaders(httpmw.DefaultHeaders()))
	r.Use(corsMiddleware(d.CORSAllowOrigin))

	r.Get("/health", d.handleHealth)
	r.Get("/openapi.json", handleOpenAPIJSON)
	r.Get("/openapi.yaml", handleOpenAPIYAML)
	r.Get("/docs", handleDocs)
	r.Get("/docs/", handleDocs)

	maxBody := d.Pipeline.MaxBodyBytes

	r.Route("/api", func(api chi.Router) {
		api.With(httpmw.MaxBody(maxBody)).Post("/ingest", d.handleIngest)

		api.Group(func(protected chi.Router) {
			protected.Use(apiAuth(d.Auth))
			protected.Get("/logs", d.handleListLogs)
			protected.Get("/logs/aggregate", d.handleAggregate)
			protected.Post("/reindex", d.handleReindex)
			protected.Get("/alerts/config", d.handleGetAlertConfig)
			protected.Put("/alerts/config", d.handlePutAlertConfig)
			protected.With(httpmw.MaxBody(1 << 16)).Post("/alerts/test-webhook", d.handleTestWebhook)
		})
	})

	return r
}

// corsMiddleware implements the corsAllowOrigin rule: "*" is a wildcard;
// otherwise a comma-separated allowlist is matched against the request
// Origin, echoing it back with Vary: Origin on a match.
func corsMiddleware(allowOrigin string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	opts := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"authorization", "content-type"},
		AllowCredentials: false,
		MaxAge:           300,
	}

	if allowOrigin == "*" {
		opts.AllowedOrigins = []string{"*"}
	} else {
		allowed := make(map[string]bool)
		for _, origin := range strings.Split(allowOrigin, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowed[origin] = true
			}
		}
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return allowed[origin]
		}
	}

	return cors.Handler(opts)
}
