package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ytget/yt-fetchd/internal/jobs"
	"github.com/ytget/yt-fetchd/internal/model"
	"github.com/ytget/yt-fetchd/internal/platform"
)

const tracerName = "github.com/ytget/yt-fetchd/internal/download"

// Defaults
const (
	DefaultFetchTimeout = 15 * time.Minute
	DefaultInfoTimeout  = 60 * time.Second
	DefaultRetryBackoff = 2 * time.Second
	DefaultMaxRetries   = 1
)

// Admission results reported to the Recorder
const (
	AdmissionAccepted = "accepted"
	AdmissionBusy     = "busy"
	AdmissionInvalid  = "invalid"
)

// Fetch outcomes reported to the Recorder
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// ErrClosed is returned by Submit after Shutdown
var ErrClosed = errors.New("coordinator is shut down")

// Config configures a Coordinator
type Config struct {
	OutputDir    string
	FetchTimeout time.Duration
	InfoTimeout  time.Duration
	RetryBackoff time.Duration
	MaxRetries   int
}

// Request is a fetch request as received from a client
type Request struct {
	URL         string
	Type        string
	Quality     string
	RequestedBy string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPlaylistLister enables playlist listing
func WithPlaylistLister(lister PlaylistLister) Option {
	return func(c *Coordinator) { c.playlists = lister }
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(c *Coordinator) { c.recorder = recorder }
}

// WithPublisher sets the job event publisher
func WithPublisher(publisher Publisher) Option {
	return func(c *Coordinator) { c.publisher = publisher }
}

// Coordinator admits fetch jobs and runs each one on its own goroutine
type Coordinator struct {
	jobs      JobTracker
	artifacts ArtifactSink
	inspector Inspector
	fetcher   Fetcher
	playlists PlaylistLister
	recorder  Recorder
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer

	baseCtx context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator. Zero durations in cfg fall back to defaults.
func NewCoordinator(tracker JobTracker, sink ArtifactSink, inspector Inspector, fetcher Fetcher, cfg Config, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if tracker == nil || sink == nil || inspector == nil || fetcher == nil {
		return nil, fmt.Errorf("coordinator requires a job tracker, artifact sink, inspector and fetcher")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("coordinator requires an output directory")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.InfoTimeout <= 0 {
		cfg.InfoTimeout = DefaultInfoTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		jobs:      tracker,
		artifacts: sink,
		inspector: inspector,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger.With("component", "download"),
		tracer:    otel.Tracer(tracerName),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OutputStem returns the on-disk file name stem for a job token
func OutputStem(token string) string {
	return platform.FallbackNamePrefix + token
}

// Submit validates the request, admits a job and starts it in the background.
// Validation failures never consume a concurrency slot.
func (c *Coordinator) Submit(ctx context.Context, req Request) (string, error) {
	url := strings.TrimSpace(req.URL)
	spec, err := c.validate(url, req.Type, req.Quality)
	if err != nil {
		c.observeAdmission(AdmissionInvalid)
		return "", err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", ErrClosed
	}

	token, err := c.jobs.Admit(jobs.Admission{
		URL:         url,
		Type:        spec.Type,
		Quality:     req.Quality,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			c.observeAdmission(AdmissionBusy)
		}
		return "", err
	}
	c.observeAdmission(AdmissionAccepted)

	spec.OutputDir = c.cfg.OutputDir
	spec.OutputStem = OutputStem(token)

	c.logger.InfoContext(ctx, "job admitted", "job_id", token, "type", spec.Type, "quality", req.Quality)
	c.publish(token)

	c.wg.Add(1)
	go c.run(token, spec, req.RequestedBy)
	return token, nil
}

func (c *Coordinator) validate(url, mediaType, quality string) (model.FetchSpec, error) {
	if err := platform.ValidateVideoURL(url); err != nil {
		return model.FetchSpec{}, invalid("url", err.Error())
	}
	t, err := model.ParseMediaType(mediaType)
	if err != nil {
		return model.FetchSpec{}, invalid("type", err.Error())
	}
	return BuildFetchSpec(url, t, quality)
}

// run drives one job to a terminal state
func (c *Coordinator) run(token string, spec model.FetchSpec, requestedBy string) {
	defer c.wg.Done()

	started := time.Now()
	ctx, span := c.tracer.Start(c.baseCtx, "download.fetch", trace.WithAttributes(
		attribute.String("job.id", token),
		attribute.String("job.type", string(spec.Type)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			c.fail(ctx, token, spec, started, fmt.Errorf("%w: %v", ErrInternal, r))
		}
	}()

	if err := c.jobs.MarkInProgress(token); err != nil {
		c.fail(ctx, token, spec, started, fmt.Errorf("%w: %v", ErrInternal, err))
		return
	}
	c.publish(token)

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	var progress func(int)
	if c.fetcher.ProgressCapability() != model.ProgressNone {
		progress = func(percent int) {
			_ = c.jobs.UpdateProgress(token, percent)
		}
	}

	result, err := c.fetchWithRetry(fetchCtx, token, spec, progress)
	if err != nil {
		c.fail(ctx, token, spec, started, err)
		return
	}

	displayName := platform.DisplayFilename(result.Title, result.Path, token)
	artifact, err := c.artifacts.Put(token, result.Path, displayName, requestedBy)
	if err != nil {
		c.fail(ctx, token, spec, started, fmt.Errorf("%w: register artifact: %v", ErrInternal, err))
		return
	}

	if err := c.jobs.MarkCompleted(token, artifact.DisplayName); err != nil {
		c.artifacts.Evict(token)
		c.fail(ctx, token, spec, started, fmt.Errorf("%w: complete job: %v", ErrInternal, err))
		return
	}

	span.SetAttributes(attribute.Int64("artifact.size", artifact.Size))
	c.logger.InfoContext(ctx, "job completed", "job_id", token, "filename", artifact.DisplayName, "size", artifact.Size, "duration", time.Since(started))
	c.observeFetch(spec.Type, OutcomeCompleted, time.Since(started))
	c.publish(token)
}

// fetchWithRetry attempts the fetch with retry logic
func (c *Coordinator) fetchWithRetry(ctx context.Context, token string, spec model.FetchSpec, progress func(int)) (model.FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// Backoff delay
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return model.FetchResult{}, collaboratorFailure("download", ctx.Err())
			}

			c.observeRetry()
			c.logger.WarnContext(ctx, "retrying download", "job_id", token, "attempt", attempt+1)
		}

		result, err := c.fetcher.Fetch(ctx, spec, progress)
		if err == nil {
			return result, nil
		}

		lastErr = collaboratorFailure("download", err)
		c.logger.WarnContext(ctx, "download attempt failed", "job_id", token, "attempt", attempt+1, "error", err)

		// Timeouts and cancellation are final
		if ctx.Err() != nil {
			return model.FetchResult{}, lastErr
		}
	}

	return model.FetchResult{}, lastErr
}

// fail marks the job failed and removes anything it left on disk
func (c *Coordinator) fail(ctx context.Context, token string, spec model.FetchSpec, started time.Time, err error) {
	message := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		message = fmt.Sprintf("download timed out after %s", c.cfg.FetchTimeout)
	} else if errors.Is(err, context.Canceled) {
		message = "download cancelled: server shutting down"
	}

	if markErr := c.jobs.MarkFailed(token, message); markErr != nil {
		c.logger.ErrorContext(ctx, "failed to mark job failed", "job_id", token, "error", markErr)
	}
	removed := platform.RemoveOutputFiles(spec.OutputDir, spec.OutputStem)

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, message)

	c.logger.ErrorContext(ctx, "job failed", "job_id", token, "error", message, "removed_files", removed)
	c.observeFetch(spec.Type, OutcomeFailed, time.Since(started))
	c.publish(token)
}

// Inspect resolves metadata and stream variants for a URL. It does not create a
// job and is not subject to the concurrency ceiling.
func (c *Coordinator) Inspect(ctx context.Context, rawURL string) (model.VideoInfo, error) {
	url := strings.TrimSpace(rawURL)
	if err := platform.ValidateVideoURL(url); err != nil {
		return model.VideoInfo{}, invalid("url", err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.InfoTimeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "download.inspect")
	defer span.End()

	meta, err := c.inspector.Inspect(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inspection failed")
		c.logger.WarnContext(ctx, "inspection failed", "error", err)
		return model.VideoInfo{}, collaboratorFailure("inspect", err)
	}
	return BuildVideoInfo(meta), nil
}

// ListPlaylist lists the entries of a playlist URL. Like Inspect it creates no job.
func (c *Coordinator) ListPlaylist(ctx context.Context, rawURL string) (*model.Playlist, error) {
	if c.playlists == nil {
		return nil, fmt.Errorf("%w: playlist listing is not configured", ErrInternal)
	}
	url := strings.TrimSpace(rawURL)
	if err := platform.ValidateVideoURL(url); err != nil {
		return nil, invalid("url", err.Error())
	}
	if !platform.IsPlaylistURL(url) {
		return nil, invalid("url", "URL does not reference a playlist")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.InfoTimeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "download.playlist")
	defer span.End()

	playlist, err := c.playlists.ListPlaylist(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "playlist listing failed")
		return nil, collaboratorFailure("playlist", err)
	}
	return playlist, nil
}

// Shutdown stops admitting jobs, cancels running collaborators and waits for
// their goroutines to record a terminal state.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) publish(token string) {
	if c.publisher == nil {
		return
	}
	job, err := c.jobs.Get(token)
	if err != nil {
		return
	}
	c.publisher.PublishJob(c.baseCtx, job)
}

func (c *Coordinator) observeAdmission(result string) {
	if c.recorder != nil {
		c.recorder.ObserveAdmission(result)
	}
}

func (c *Coordinator) observeFetch(mediaType model.MediaType, outcome string, d time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveFetch(mediaType, outcome, d)
	}
}

func (c *Coordinator) observeRetry() {
	if c.recorder != nil {
		c.recorder.ObserveRetry()
	}
}
