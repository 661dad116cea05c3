// Package events publishes job lifecycle changes to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ytget/yt-fetchd/internal/model"
)

// DefaultSubjectPrefix is prepended to the job status in every subject
const DefaultSubjectPrefix = "ytfetch.jobs"

// JobEvent is the message body published for a job status change
type JobEvent struct {
	ID         string          `json:"id"`
	Status     model.JobStatus `json:"status"`
	Type       model.MediaType `json:"type,omitempty"`
	Progress   int             `json:"progress"`
	Error      string          `json:"error,omitempty"`
	Filename   string          `json:"filename,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher sends job events to <prefix>.<status>. A nil *Publisher is a no-op.
type Publisher struct {
	conn    *nats.Conn
	publish func(subject string, data []byte) error
	prefix  string
	now     func() time.Time
	logger  *slog.Logger
}

// Connect dials the NATS server at url
func Connect(url, prefix string, logger *slog.Logger, opts ...nats.Option) (*Publisher, error) {
	opts = append([]nats.Option{nats.Name("yt-fetchd")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	p := newPublisher(nc.Publish, prefix, logger)
	p.conn = nc
	return p, nil
}

func newPublisher(publish func(string, []byte) error, prefix string, logger *slog.Logger) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		publish: publish,
		prefix:  prefix,
		now:     time.Now,
		logger:  logger.With("component", "events"),
	}
}

// Subject returns the subject used for status
func (p *Publisher) Subject(status model.JobStatus) string {
	return p.prefix + "." + string(status)
}

// PublishJob publishes the job snapshot. Failures are logged, never returned,
// so event delivery cannot affect the job itself.
func (p *Publisher) PublishJob(ctx context.Context, job model.Job) {
	if p == nil {
		return
	}

	data, err := json.Marshal(JobEvent{
		ID:         job.ID,
		Status:     job.Status,
		Type:       job.Type,
		Progress:   job.Progress,
		Error:      job.Error,
		Filename:   job.Filename,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode job event", "job_id", job.ID, "error", err)
		return
	}

	if err := p.publish(p.Subject(job.Status), data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish job event", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

// Close drains the connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
