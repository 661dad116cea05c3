// Package artifacts tracks files produced by completed jobs. The store owns the
// files it records: nothing else deletes them outside Evict.
package artifacts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ytget/yt-fetchd/internal/model"
)

var (
	// ErrAlreadyExists is returned by Put when the token already has an artifact
	ErrAlreadyExists = errors.New("artifact already exists")
	// ErrNotFound is returned for unknown or evicted tokens
	ErrNotFound = errors.New("artifact not found")
)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for creation timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRemoveFunc overrides the physical delete, mainly for tests
func WithRemoveFunc(remove func(string) error) Option {
	return func(s *Store) { s.remove = remove }
}

// Store maps job tokens to cached files.
// Entries are removed together with their file under the write lock, so a
// lookup racing an eviction sees either the old entry or nothing.
type Store struct {
	mu     sync.RWMutex
	items  map[string]model.Artifact
	now    func() time.Time
	remove func(string) error
	logger *slog.Logger
}

// NewStore creates an empty store
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		items:  make(map[string]model.Artifact),
		now:    time.Now,
		remove: os.Remove,
		logger: logger.With("component", "artifacts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put records the file at path as the artifact of token
func (s *Store) Put(token, path, displayName, ownerIP string) (model.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("stat artifact file: %w", err)
	}
	if info.IsDir() {
		return model.Artifact{}, fmt.Errorf("artifact path is a directory: %s", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[token]; exists {
		return model.Artifact{}, fmt.Errorf("%w: %s", ErrAlreadyExists, token)
	}

	artifact := model.Artifact{
		Token:       token,
		Path:        path,
		DisplayName: displayName,
		Size:        info.Size(),
		OwnerIP:     ownerIP,
		CreatedAt:   s.now(),
	}
	s.items[token] = artifact
	return artifact, nil
}

// Get returns the artifact recorded for token
func (s *Store) Get(token string) (model.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.items[token]
	if !exists {
		return model.Artifact{}, ErrNotFound
	}
	return artifact, nil
}

// Open returns an open handle to the artifact's file. The handle is obtained
// under the read lock, so it stays valid for streaming even if the entry is
// evicted afterwards. The caller must close it.
func (s *Store) Open(token string) (*os.File, model.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.items[token]
	if !exists {
		return nil, model.Artifact{}, ErrNotFound
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.Artifact{}, ErrNotFound
		}
		return nil, model.Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	return f, artifact, nil
}

// Evict removes the entry and deletes its file. It reports whether this call
// removed anything; concurrent calls for one token delete the file at most once.
// Delete failures are logged and the entry is dropped regardless.
func (s *Store) Evict(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, exists := s.items[token]
	if !exists {
		return false
	}
	delete(s.items, token)

	if err := s.remove(artifact.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("artifact file already gone", "job_id", token)
		} else {
			s.logger.Error("failed to delete artifact file", "job_id", token, "error", err)
		}
	} else {
		s.logger.Info("artifact evicted", "job_id", token, "filename", artifact.DisplayName)
	}
	return true
}

// List returns a snapshot of all artifacts ordered by creation time
func (s *Store) List() []model.Artifact {
	s.mu.RLock()
	artifacts := make([]model.Artifact, 0, len(s.items))
	for _, artifact := range s.items {
		artifacts = append(artifacts, artifact)
	}
	s.mu.RUnlock()

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts
}

// Len returns the number of cached artifacts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// TotalSize returns the recorded size in bytes of all cached artifacts
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, artifact := range s.items {
		total += artifact.Size
	}
	return total
}
