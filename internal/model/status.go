package model

// JobStatus represents the lifecycle state of a fetch job
type JobStatus string

const (
	// JobStatusPending means the job was admitted but its task has not started
	JobStatusPending JobStatus = "pending"

	// JobStatusInProgress means the collaborator is fetching the media
	JobStatusInProgress JobStatus = "in_progress"

	// JobStatusCompleted means the artifact is cached and ready for retrieval
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed means the job ended with an error
	JobStatusFailed JobStatus = "failed"

	// JobStatusNotFound is reported to pollers for unknown or reaped tokens.
	// It is never stored in the registry.
	JobStatusNotFound JobStatus = "not_found"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsActive returns true if the job still holds a concurrency slot
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusInProgress
}

// IsFinished returns true if the job reached a terminal state (completed or failed)
func (s JobStatus) IsFinished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses along pending -> in_progress -> {completed|failed}
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusInProgress:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
// Terminal states never change, and pending may fail directly when the task
// cannot start.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 || s.IsFinished() {
		return false
	}
	if next == JobStatusCompleted && s != JobStatusInProgress {
		return false
	}
	return to > from
}
