// Package server exposes the fetch service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ytget/yt-fetchd/internal/download"
	"github.com/ytget/yt-fetchd/internal/model"
	"github.com/ytget/yt-fetchd/internal/retention"
	"github.com/ytget/yt-fetchd/internal/telemetry"
)

const defaultRequestTimeout = 90 * time.Second

// FetchService admits jobs and serves the read-only info paths
type FetchService interface {
	Submit(ctx context.Context, req download.Request) (string, error)
	Inspect(ctx context.Context, url string) (model.VideoInfo, error)
	ListPlaylist(ctx context.Context, url string) (*model.Playlist, error)
}

// JobReader exposes job snapshots and counters
type JobReader interface {
	Get(token string) (model.Job, error)
	ListByRequester(requestedBy string) []model.Job
	ActiveCount() int
	Len() int
	MaxConcurrent() int
}

// CacheStats exposes artifact cache figures
type CacheStats interface {
	Len() int
	TotalSize() int64
}

// Deliverer streams artifacts to clients
type Deliverer interface {
	Serve(w http.ResponseWriter, r *http.Request, token string) error
}

// Purger forces a full sweep
type Purger interface {
	Purge() retention.Result
}

// Deps are the components the HTTP layer calls into
type Deps struct {
	Fetch     FetchService
	Jobs      JobReader
	Cache     CacheStats
	Delivery  Deliverer
	Purger    Purger
	Metrics   http.Handler
	Telemetry func(http.Handler) http.Handler
}

// Config controls the HTTP layer
type Config struct {
	CleanupAfterMinutes int
	RequestTimeout      time.Duration
}

// Server holds the HTTP handlers
type Server struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New validates deps and creates the server
func New(deps Deps, cfg Config, logger *slog.Logger) (*Server, error) {
	if deps.Fetch == nil {
		return nil, errors.New("fetch service is required")
	}
	if deps.Jobs == nil || deps.Cache == nil {
		return nil, errors.New("job registry and artifact cache are required")
	}
	if deps.Delivery == nil {
		return nil, errors.New("delivery gate is required")
	}
	if deps.Purger == nil {
		return nil, errors.New("purger is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.Middleware("yt-fetchd", logger)
	}
	return &Server{deps: deps, cfg: cfg, logger: logger.With("component", "server")}, nil
}

// Routes constructs the chi router containing all endpoints
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.deps.Telemetry)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	// Streaming is bounded by the client, not by the request timeout
	r.Get("/download_file/{id}", s.handleDownloadFile)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Post("/info", s.handleInfo)
		r.Post("/download", s.handleDownload)
		r.Get("/progress/{id}", s.handleProgress)
		r.Post("/playlist", s.handlePlaylist)
		r.Get("/history", s.handleHistory)
		r.Post("/cleanup_server", s.handleCleanup)
	})

	return r
}
