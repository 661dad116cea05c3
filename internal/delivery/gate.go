// Package delivery streams completed artifacts to clients once and evicts them
// shortly after the transfer completes.
package delivery

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ytget/yt-fetchd/internal/artifacts"
	"github.com/ytget/yt-fetchd/internal/jobs"
	"github.com/ytget/yt-fetchd/internal/model"
)

// DefaultGracePeriod is the wait between a completed transfer and eviction
const DefaultGracePeriod = 5 * time.Second

// Delivery results reported to the Recorder
const (
	ResultServed  = "served"
	ResultPartial = "partial"
	ResultGone    = "gone"
)

// ErrGone is returned for tokens without a retrievable artifact
var ErrGone = errors.New("file not found, expired, or cleaned up")

// ArtifactSource is the subset of the artifact store the gate needs
type ArtifactSource interface {
	Open(token string) (*os.File, model.Artifact, error)
	Evict(token string) bool
}

// JobRemover drops the job record once its artifact is gone
type JobRemover interface {
	Remove(token string) error
}

// Recorder receives delivery outcomes
type Recorder interface {
	ObserveDelivery(result string)
}

// Option configures a Gate
type Option func(*Gate)

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(g *Gate) { g.recorder = recorder }
}

// WithRetention refuses artifacts older than retention even before a sweep reaps them
func WithRetention(retention time.Duration) Option {
	return func(g *Gate) { g.retention = retention }
}

// WithClock overrides the time source used for the retention check
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate serves artifacts and schedules their eviction
type Gate struct {
	source    ArtifactSource
	jobs      JobRemover
	grace     time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
	recorder  Recorder

	mu        sync.Mutex
	inFlight  map[string]bool // full transfers currently streaming
	delivered map[string]bool
	pending   map[string]*time.Timer
}

// NewGate creates a gate evicting artifacts grace after a completed transfer
func NewGate(source ArtifactSource, jobs JobRemover, grace time.Duration, logger *slog.Logger, opts ...Option) *Gate {
	if grace < 0 {
		grace = DefaultGracePeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		source:    source,
		jobs:      jobs,
		grace:     grace,
		now:       time.Now,
		logger:    logger.With("component", "delivery"),
		inFlight:  make(map[string]bool),
		delivered: make(map[string]bool),
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Serve streams the artifact of token as an attachment. It returns ErrGone
// without writing anything when the artifact is unknown, expired, evicted,
// already delivered or being delivered to another client. A full GET claims
// the token for its duration; a transfer that sent the whole file schedules
// eviction, anything else releases the claim.
func (g *Gate) Serve(w http.ResponseWriter, r *http.Request, token string) error {
	claim := r.Method == http.MethodGet && r.Header.Get("Range") == ""

	g.mu.Lock()
	if g.delivered[token] || g.inFlight[token] {
		g.mu.Unlock()
		g.observe(ResultGone)
		return ErrGone
	}
	if claim {
		g.inFlight[token] = true
	}
	g.mu.Unlock()

	served := false
	if claim {
		defer func() {
			if !served {
				g.release(token)
			}
		}()
	}

	f, artifact, err := g.source.Open(token)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			g.observe(ResultGone)
			return ErrGone
		}
		return err
	}
	defer f.Close()

	if g.retention > 0 && artifact.ExpiredAt(g.now(), g.retention) {
		g.logger.InfoContext(r.Context(), "refusing expired artifact", "job_id", token, "created_at", artifact.CreatedAt)
		g.evict(token)
		g.observe(ResultGone)
		return ErrGone
	}

	modTime := artifact.CreatedAt
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": artifact.DownloadName(),
	}))
	cw := &countingWriter{ResponseWriter: w}
	http.ServeContent(cw, r, artifact.DownloadName(), modTime, f)

	// ServeContent returning is the transfer-complete signal
	if claim && cw.status == http.StatusOK && cw.written >= artifact.Size {
		served = true
		g.observe(ResultServed)
		g.logger.InfoContext(r.Context(), "artifact delivered", "job_id", token, "bytes", cw.written)
		g.schedule(token)
		return nil
	}
	g.observe(ResultPartial)
	return nil
}

func (g *Gate) release(token string) {
	g.mu.Lock()
	delete(g.inFlight, token)
	g.mu.Unlock()
}

// schedule arranges a single eviction for token after the grace period
func (g *Gate) schedule(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inFlight, token)
	g.delivered[token] = true
	if _, exists := g.pending[token]; exists {
		return
	}
	g.pending[token] = time.AfterFunc(g.grace, func() {
		g.evict(token)
	})
}

func (g *Gate) evict(token string) {
	g.mu.Lock()
	delete(g.pending, token)
	delete(g.delivered, token)
	g.mu.Unlock()

	evicted := g.source.Evict(token)
	if err := g.jobs.Remove(token); err != nil && !errors.Is(err, jobs.ErrNotFound) {
		g.logger.Warn("failed to remove delivered job", "job_id", token, "error", err)
	}
	g.logger.Debug("delivered artifact evicted", "job_id", token, "evicted", evicted)
}

// Pending returns the number of scheduled evictions
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Flush runs every scheduled eviction immediately
func (g *Gate) Flush() {
	g.mu.Lock()
	tokens := make([]string, 0, len(g.pending))
	for token, timer := range g.pending {
		if timer.Stop() {
			tokens = append(tokens, token)
		}
	}
	g.mu.Unlock()

	for _, token := range tokens {
		g.evict(token)
	}
}

func (g *Gate) observe(result string) {
	if g.recorder != nil {
		g.recorder.ObserveDelivery(result)
	}
}

// countingWriter records the status code and body bytes of a response
type countingWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *countingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// ReadFrom keeps the underlying writer's sendfile path available to ServeContent
func (w *countingWriter) ReadFrom(src io.Reader) (int64, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	var (
		n   int64
		err error
	)
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(src)
	} else {
		n, err = io.Copy(w.ResponseWriter, src)
	}
	w.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *countingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
