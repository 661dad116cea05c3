package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MediaType selects what the collaborator fetches for a job
type MediaType string

const (
	// MediaTypeVideo prefers a single progressive mp4 file
	MediaTypeVideo MediaType = "video"
	// MediaTypeAudio extracts the best audio track as mp3
	MediaTypeAudio MediaType = "audio"
	// MediaTypeAdaptive merges the best separate video and audio streams
	MediaTypeAdaptive MediaType = "adaptive"
)

// ParseMediaType maps a request value to a MediaType. Empty input means video.
func ParseMediaType(value string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(value))) {
	case "", MediaTypeVideo:
		return MediaTypeVideo, nil
	case MediaTypeAudio:
		return MediaTypeAudio, nil
	case MediaTypeAdaptive:
		return MediaTypeAdaptive, nil
	default:
		return "", fmt.Errorf("unsupported download type: %q", value)
	}
}

// Job is a point-in-time snapshot of one fetch request's lifecycle record
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url,omitempty"`
	Type        MediaType  `json:"type,omitempty"`
	Quality     string     `json:"quality,omitempty"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`           // 0 to 100
	Error       string     `json:"error,omitempty"`    // set iff Status is failed
	Filename    string     `json:"filename,omitempty"` // display name once completed
	RequestedBy string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// FinishedBefore reports whether the job is terminal and finished before t
func (j Job) FinishedBefore(t time.Time) bool {
	return j.Status.IsFinished() && j.FinishedAt != nil && j.FinishedAt.Before(t)
}

// Artifact describes a cached file produced by a completed job
type Artifact struct {
	Token       string    `json:"id"`
	Path        string    `json:"-"`
	DisplayName string    `json:"filename"`
	Size        int64     `json:"size"`
	OwnerIP     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Age returns how long the artifact has been cached at now
func (a Artifact) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

// ExpiredAt reports whether the artifact outlived the retention window at now
func (a Artifact) ExpiredAt(now time.Time, retention time.Duration) bool {
	return a.Age(now) > retention
}

// DownloadName returns the display name, falling back to the file's base name
func (a Artifact) DownloadName() string {
	if name := strings.TrimSpace(a.DisplayName); name != "" {
		return name
	}
	if a.Path == "" {
		return a.Token
	}
	return filepath.Base(a.Path)
}
