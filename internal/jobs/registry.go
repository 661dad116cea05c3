package jobs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/yt-fetchd/internal/model"
)

var (
	// ErrBusy is returned by Admit when the concurrency ceiling is reached
	ErrBusy = errors.New("server busy")
	// ErrNotFound is returned for unknown or reaped tokens
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a mutation would regress the lifecycle
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrJobActive is returned by Remove for jobs that still hold a slot
	ErrJobActive = errors.New("job is still active")
)

const (
	// maxInProgressPercent keeps progress below 100 until the job completes
	maxInProgressPercent = 99
	unknownFailure       = "unknown error"
)

// Admission describes the request that created a job
type Admission struct {
	URL         string
	Type        model.MediaType
	Quality     string
	RequestedBy string
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithTokenGenerator overrides token generation
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newToken = gen }
}

// WithUpdateCallback registers a callback invoked after every successful mutation.
// It runs outside the registry lock with a snapshot of the job.
func WithUpdateCallback(callback func(model.Job)) Option {
	return func(r *Registry) { r.onUpdate = callback }
}

// Registry tracks fetch jobs by token
type Registry struct {
	mu            sync.RWMutex
	jobs          map[string]*model.Job
	active        int
	maxConcurrent int
	now           func() time.Time
	newToken      func() (string, error)
	onUpdate      func(model.Job)
}

// NewRegistry creates a registry admitting at most maxConcurrent active jobs
func NewRegistry(maxConcurrent int, opts ...Option) *Registry {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	r := &Registry{
		jobs:          make(map[string]*model.Job),
		maxConcurrent: maxConcurrent,
		now:           time.Now,
		newToken:      NewToken,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewToken returns a 128-bit random token, hex-encoded
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(id[:]), nil
}

// Admit reserves a concurrency slot and records a pending job.
// It returns ErrBusy when the ceiling is reached.
func (r *Registry) Admit(req Admission) (string, error) {
	r.mu.Lock()

	if r.active >= r.maxConcurrent {
		r.mu.Unlock()
		return "", ErrBusy
	}

	var token string
	for {
		t, err := r.newToken()
		if err != nil {
			r.mu.Unlock()
			return "", err
		}
		if _, exists := r.jobs[t]; !exists {
			token = t
			break
		}
	}

	job := &model.Job{
		ID:          token,
		URL:         req.URL,
		Type:        req.Type,
		Quality:     req.Quality,
		Status:      model.JobStatusPending,
		RequestedBy: req.RequestedBy,
		CreatedAt:   r.now(),
	}
	r.jobs[token] = job
	r.active++
	snapshot := *job
	r.mu.Unlock()

	r.notifyUpdate(snapshot)
	return token, nil
}

// MarkInProgress moves a pending job to in_progress
func (r *Registry) MarkInProgress(token string) error {
	return r.mutate(token, func(job *model.Job) error {
		if !job.Status.CanTransitionTo(model.JobStatusInProgress) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobStatusInProgress)
		}
		started := r.now()
		job.Status = model.JobStatusInProgress
		job.StartedAt = &started
		return nil
	})
}

// UpdateProgress records progress for an in_progress job. Values are clamped to
// 0..99 and never decrease.
func (r *Registry) UpdateProgress(token string, percent int) error {
	return r.mutate(token, func(job *model.Job) error {
		if job.Status != model.JobStatusInProgress {
			return fmt.Errorf("%w: progress update while %s", ErrInvalidTransition, job.Status)
		}
		percent = min(max(percent, 0), maxInProgressPercent)
		if percent > job.Progress {
			job.Progress = percent
		}
		return nil
	})
}

// MarkCompleted finishes a job successfully, pins progress to 100 and releases its slot
func (r *Registry) MarkCompleted(token, filename string) error {
	return r.mutate(token, func(job *model.Job) error {
		if !job.Status.CanTransitionTo(model.JobStatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobStatusCompleted)
		}
		finished := r.now()
		job.Status = model.JobStatusCompleted
		job.Progress = 100
		job.Filename = filename
		job.FinishedAt = &finished
		r.release()
		return nil
	})
}

// MarkFailed finishes a job with an error message and releases its slot
func (r *Registry) MarkFailed(token, message string) error {
	return r.mutate(token, func(job *model.Job) error {
		if !job.Status.CanTransitionTo(model.JobStatusFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobStatusFailed)
		}
		if message == "" {
			message = unknownFailure
		}
		finished := r.now()
		job.Status = model.JobStatusFailed
		job.Error = message
		job.FinishedAt = &finished
		r.release()
		return nil
	})
}

// Get returns a snapshot of the job
func (r *Registry) Get(token string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[token]
	if !exists {
		return model.Job{}, ErrNotFound
	}
	return *job, nil
}

// List returns snapshots of all jobs
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// ListByRequester returns the jobs created by a client identity, newest first
func (r *Registry) ListByRequester(requestedBy string) []model.Job {
	r.mu.RLock()
	jobs := make([]model.Job, 0)
	for _, job := range r.jobs {
		if job.RequestedBy == requestedBy {
			jobs = append(jobs, *job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Remove deletes a terminal job. Active jobs cannot be removed because their
// slot is released only by the terminal transition.
func (r *Registry) Remove(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[token]
	if !exists {
		return ErrNotFound
	}
	if job.Status.IsActive() {
		return ErrJobActive
	}
	delete(r.jobs, token)
	return nil
}

// ActiveCount returns the number of jobs holding a concurrency slot
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Len returns the number of tracked jobs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// MaxConcurrent returns the admission ceiling
func (r *Registry) MaxConcurrent() int {
	return r.maxConcurrent
}

// mutate applies fn to the job under the write lock and notifies on success
func (r *Registry) mutate(token string, fn func(*model.Job) error) error {
	r.mu.Lock()
	job, exists := r.jobs[token]
	if !exists {
		r.mu.Unlock()
		return ErrNotFound
	}
	if err := fn(job); err != nil {
		r.mu.Unlock()
		return err
	}
	snapshot := *job
	r.mu.Unlock()

	r.notifyUpdate(snapshot)
	return nil
}

// release frees a concurrency slot; callers hold the write lock
func (r *Registry) release() {
	if r.active > 0 {
		r.active--
	}
}

// notifyUpdate calls the update callback if set
func (r *Registry) notifyUpdate(job model.Job) {
	if r.onUpdate != nil {
		r.onUpdate(job)
	}
}
