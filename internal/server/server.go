// Package server is the server orchestrator (C8): preflight checks, the
// full startup sequence wiring every collaborator, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/mikroscope/sidecar/internal/alerting"
	"github.com/mikroscope/sidecar/internal/httpapi"
	"github.com/mikroscope/sidecar/internal/indexer"
	"github.com/mikroscope/sidecar/internal/ingest"
	"github.com/mikroscope/sidecar/internal/loopctl"
	"github.com/mikroscope/sidecar/internal/maintenance"
	"github.com/mikroscope/sidecar/internal/query"
	"github.com/mikroscope/sidecar/internal/store"
)

// Options is the fully-resolved configuration the orchestrator needs. It
// is built by the caller (typically cmd/mikroscope) from the layered
// config package, keeping this package free of config-loading concerns.
type Options struct {
	DBPath   string
	LogsPath string

	Host     string
	Port     int
	Protocol string // http | https
	TLSCert  string
	TLSKey   string

	Auth            httpapi.AuthConfig
	CORSAllowOrigin string

	IngestMaxBodyBytes int64
	IngestIntervalMs   int
	DisableAutoIngest  bool
	IngestAsyncQueue   bool
	IngestQueueFlushMs int

	Maintenance           maintenance.Config
	MaintenanceIntervalMs int
	MinFreeBytes          uint64

	AlertSeed      alerting.Policy
	AlertConfigPath string

	Logger *slog.Logger
}

// Server owns every long-lived collaborator and the HTTP listener.
type Server struct {
	opts Options
	log  *slog.Logger

	Store       *store.Store
	Indexer     *indexer.Indexer
	Query       *query.Service
	Pipeline    *ingest.Pipeline
	Maintenance *maintenance.Loop
	Alerting    *alerting.Manager

	httpServer *http.Server
	listener   net.Listener
	serviceURL string

	maintenanceCancel context.CancelFunc
	ingestCancel      context.CancelFunc
	alertingCancel    context.CancelFunc

	shutdownOnce sync.Once
}

// New runs preflight and the full startup sequence up through HTTP server
// construction, but does not yet listen. Call Serve to start accepting
// connections and background loops.
func New(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = 256 << 20
	}
	if opts.MaintenanceIntervalMs == 0 {
		opts.MaintenanceIntervalMs = 21_600_000
	}

	dbDir := filepath.Dir(opts.DBPath)
	if err := preflightDir(dbDir, opts.MinFreeBytes); err != nil {
		return nil, err
	}
	if err := preflightDir(opts.LogsPath, opts.MinFreeBytes); err != nil {
		return nil, err
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: open store: %w", err)
	}

	ix := indexer.New(opts.LogsPath, st)
	ix.Logger = log

	qsvc := query.New(st)

	flushDelay := time.Duration(opts.IngestQueueFlushMs) * time.Millisecond
	pipeline := ingest.New(opts.LogsPath, ix, opts.IngestMaxBodyBytes, opts.IngestAsyncQueue, flushDelay)
	pipeline.Logger = log

	// Run one incremental indexing pass synchronously so /health reflects
	// current state immediately.
	if _, err := ix.Run(context.Background(), indexer.ModeIncremental); err != nil {
		st.Close()
		return nil, fmt.Errorf("server: initial index pass: %w", err)
	}

	if opts.Protocol == "https" && (opts.TLSCert == "" || opts.TLSKey == "") {
		st.Close()
		return nil, errors.New("server: https protocol requires both tlsCertPath and tlsKeyPath")
	}

	mcfg := opts.Maintenance
	mcfg.LogsRoot = opts.LogsPath
	mloop := maintenance.New(mcfg, st)
	mloop.Logger = log

	// One synchronous maintenance pass before anything is exposed.
	if _, err := mloop.RunOnce(context.Background()); err != nil && !errors.Is(err, maintenance.ErrAlreadyRunning) {
		st.Close()
		return nil, fmt.Errorf("server: initial maintenance pass: %w", err)
	}

	alertConfigPath := opts.AlertConfigPath
	if alertConfigPath == "" {
		alertConfigPath = filepath.Join(dbDir, "mikroscope.alert-config.json")
	}
	serviceURL := fmt.Sprintf("%s://%s:%d", opts.Protocol, opts.Host, opts.Port)
	mgr, err := alerting.New(opts.AlertSeed, alertConfigPath, qsvc, serviceURL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("server: build alerting manager: %w", err)
	}
	mgr.Logger = log

	deps := &httpapi.Deps{
		Store:           st,
		Query:           qsvc,
		Indexer:         ix,
		Pipeline:        pipeline,
		Alerting:        mgr,
		Maintenance:     mloop,
		Auth:            opts.Auth,
		CORSAllowOrigin: opts.CORSAllowOrigin,
		ServiceURL:      serviceURL,
		StartedAt:       time.Now(),
		DBPath:          opts.DBPath,
		MinFreeBytes:    opts.MinFreeBytes,
		Logger:          log,
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: httpapi.NewRouter(deps),
	}
	if opts.Protocol == "https" {
		tlsCfg, err := loadTLSConfig(opts.TLSCert, opts.TLSKey)
		if err != nil {
			st.Close()
			return nil, err
		}
		httpServer.TLSConfig = tlsCfg
	}

	return &Server{
		opts:        opts,
		log:         log,
		Store:       st,
		Indexer:     ix,
		Query:       qsvc,
		Pipeline:    pipeline,
		Maintenance: mloop,
		Alerting:    mgr,
		httpServer:  httpServer,
		serviceURL:  serviceURL,
	}, nil
}

// Serve binds the listener, starts every background loop, and blocks until
// ctx is cancelled, at which point it runs graceful shutdown and returns.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	bgCtx, cancelBg := context.WithCancel(ctx)

	mInterval := s.maintenanceInterval()
	mctx, mcancel := context.WithCancel(bgCtx)
	s.maintenanceCancel = mcancel
	go (&loopctl.Ticker{Interval: mInterval, Name: "maintenance"}).Run(mctx, func(tctx context.Context) {
		if _, err := s.Maintenance.RunOnce(tctx); err != nil && !errors.Is(err, maintenance.ErrAlreadyRunning) {
			s.log.Error("server: maintenance pass failed", "error", err)
		}
	})

	if !s.opts.DisableAutoIngest {
		ictx, icancel := context.WithCancel(bgCtx)
		s.ingestCancel = icancel
		interval := time.Duration(s.opts.IngestIntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = 2 * time.Second
		}
		go (&loopctl.Ticker{Interval: interval, Name: "auto-ingest"}).Run(ictx, func(tctx context.Context) {
			if _, err := s.Indexer.Run(tctx, indexer.ModeIncremental); err != nil && !errors.Is(err, indexer.ErrAlreadyRunning) {
				s.log.Error("server: auto-ingest index pass failed", "error", err)
			}
		})
	}

	actx, acancel := context.WithCancel(bgCtx)
	s.alertingCancel = acancel
	go s.Alerting.Run(actx)

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if s.opts.Protocol == "https" {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		cancelBg()
		s.shutdown()
		return err
	}

	cancelBg()
	s.shutdown()
	<-serveErr
	return nil
}

// maintenanceInterval enforces the 1000ms minimum; C6 owns only the pass
// itself, the orchestrator owns its schedule.
func (s *Server) maintenanceInterval() time.Duration {
	ms := s.opts.MaintenanceIntervalMs
	if ms < 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// shutdown stops every background loop, closes the listener, drains the
// ingest queue once, and closes the store. Idempotent.
func (s *Server) shutdown() {
	s.shutdownOnce.Do(func() {
		if s.maintenanceCancel != nil {
			s.maintenanceCancel()
		}
		if s.ingestCancel != nil {
			s.ingestCancel()
		}
		if s.alertingCancel != nil {
			s.alertingCancel()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server: http shutdown", "error", err)
		}

		s.Pipeline.Drain(context.Background())

		if err := s.Store.Close(); err != nil {
			s.log.Error("server: store close", "error", err)
		}
	})
}

// ServiceURL returns the externally-advertised base URL, used by the
// alerting webhook payload.
func (s *Server) ServiceURL() string { return s.serviceURL }
