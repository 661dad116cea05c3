package download

import (
	"context"
	"time"

	"github.com/ytget/yt-fetchd/internal/jobs"
	"github.com/ytget/yt-fetchd/internal/model"
)

// Inspector resolves media metadata without downloading anything
type Inspector interface {
	Inspect(ctx context.Context, url string) (*model.MediaMetadata, error)
}

// Fetcher downloads media described by a FetchSpec
type Fetcher interface {
	Fetch(ctx context.Context, spec model.FetchSpec, progress func(percent int)) (model.FetchResult, error)

	// ProgressCapability reports how much progress Fetch can report
	ProgressCapability() model.ProgressCapability
}

// PlaylistLister lists the entries of a playlist URL
type PlaylistLister interface {
	ListPlaylist(ctx context.Context, url string) (*model.Playlist, error)
}

// JobTracker is the subset of the job registry the coordinator drives
type JobTracker interface {
	Admit(req jobs.Admission) (string, error)
	MarkInProgress(token string) error
	UpdateProgress(token string, percent int) error
	MarkCompleted(token, filename string) error
	MarkFailed(token, message string) error
	Get(token string) (model.Job, error)
}

// ArtifactSink receives the files produced by completed jobs
type ArtifactSink interface {
	Put(token, path, displayName, ownerIP string) (model.Artifact, error)
	Evict(token string) bool
}

// Recorder receives coordinator measurements
type Recorder interface {
	ObserveAdmission(result string)
	ObserveFetch(mediaType model.MediaType, outcome string, duration time.Duration)
	ObserveRetry()
}

// Publisher is notified after every job status transition
type Publisher interface {
	PublishJob(ctx context.Context, job model.Job)
}
