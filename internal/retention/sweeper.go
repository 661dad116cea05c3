// Package retention evicts cached artifacts and finished jobs once they outlive
// the retention window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ytget/yt-fetchd/internal/model"
)

// Sweep triggers
const (
	TriggerScheduled = "scheduled"
	TriggerForced    = "forced"
)

// ArtifactStore is the part of the artifact store the sweeper needs
type ArtifactStore interface {
	List() []model.Artifact
	Evict(token string) bool
}

// JobRegistry is the part of the job registry the sweeper needs
type JobRegistry interface {
	List() []model.Job
	Remove(token string) error
}

// Recorder receives sweep outcomes
type Recorder interface {
	ObserveSweep(trigger string, evicted, removed int)
}

// Result summarizes one sweep
type Result struct {
	ArtifactsEvicted int `json:"artifacts_evicted"`
	JobsRemoved      int `json:"jobs_removed"`
}

// Config controls the sweeper
type Config struct {
	Retention time.Duration
	Interval  time.Duration
}

// Sweeper periodically removes expired artifacts and their jobs
type Sweeper struct {
	artifacts ArtifactStore
	jobs      JobRegistry
	cfg       Config
	now       func() time.Time
	recorder  Recorder
	logger    *slog.Logger

	// sweeps are serialized so a forced purge never interleaves with a scheduled pass
	mu sync.Mutex
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *Sweeper) { s.recorder = recorder }
}

// New creates a sweeper. Interval is clamped to the retention window.
func New(artifacts ArtifactStore, jobs JobRegistry, cfg Config, logger *slog.Logger, opts ...Option) (*Sweeper, error) {
	if artifacts == nil || jobs == nil {
		return nil, errors.New("retention: artifact store and job registry are required")
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("retention: invalid retention window %s", cfg.Retention)
	}
	if cfg.Interval <= 0 || cfg.Interval > cfg.Retention {
		cfg.Interval = cfg.Retention
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sweeper{
		artifacts: artifacts,
		jobs:      jobs,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With("component", "retention"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps on every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started",
		"interval", s.cfg.Interval.String(),
		"retention", s.cfg.Retention.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evicts artifacts older than the retention window and removes their
// jobs, along with finished jobs that ended before the window.
func (s *Sweeper) Sweep() Result {
	cutoff := s.now().Add(-s.cfg.Retention)
	return s.sweep(TriggerScheduled, func(a model.Artifact) bool {
		return a.CreatedAt.Before(cutoff)
	}, func(j model.Job) bool {
		return j.FinishedBefore(cutoff)
	})
}

// Purge evicts every cached artifact and removes every finished job regardless of age.
// Active jobs and their artifacts are left alone.
func (s *Sweeper) Purge() Result {
	return s.sweep(TriggerForced, func(model.Artifact) bool {
		return true
	}, func(j model.Job) bool {
		return j.Status.IsFinished()
	})
}

func (s *Sweeper) sweep(trigger string, artifactDue func(model.Artifact) bool, jobDue func(model.Job) bool) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Result

	jobs := s.jobs.List()
	active := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if !job.Status.IsFinished() {
			active[job.ID] = true
		}
	}

	// an active job may have registered its artifact but not completed yet
	for _, artifact := range s.artifacts.List() {
		if active[artifact.Token] || !artifactDue(artifact) {
			continue
		}
		evicted, removed := s.reap(artifact.Token)
		if evicted {
			result.ArtifactsEvicted++
		}
		if removed {
			result.JobsRemoved++
		}
	}

	for _, job := range jobs {
		if !jobDue(job) {
			continue
		}
		evicted, removed := s.reap(job.ID)
		if evicted {
			result.ArtifactsEvicted++
		}
		if removed {
			result.JobsRemoved++
		}
	}

	if result.ArtifactsEvicted > 0 || result.JobsRemoved > 0 {
		s.logger.Info("retention sweep finished",
			"trigger", trigger,
			"artifacts_evicted", result.ArtifactsEvicted,
			"jobs_removed", result.JobsRemoved)
	}
	if s.recorder != nil {
		s.recorder.ObserveSweep(trigger, result.ArtifactsEvicted, result.JobsRemoved)
	}
	return result
}

// reap evicts one token's artifact and job; a failure here never aborts the sweep
func (s *Sweeper) reap(token string) (evicted, removed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("retention sweep item failed", "job_id", token, "panic", r)
		}
	}()

	evicted = s.artifacts.Evict(token)
	if err := s.jobs.Remove(token); err != nil {
		s.logger.Debug("job not removed", "job_id", token, "error", err)
		return evicted, false
	}
	return evicted, true
}
