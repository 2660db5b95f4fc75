package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/recipe-app/recipe-api/jobs"
)

// JobsCLI wraps queue inspection helpers for Asynq.
type JobsCLI struct {
	inspector jobs.QueueInspector
	closer    func() error
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{inspector: inspector, closer: inspector.Close}
}

// NewJobsCLIWith wraps an existing inspector.
func NewJobsCLIWith(inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the metrics for the default queue. A queue that has
// never received a task reports zeros.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return stats, nil
		}
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}
