package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/recipe-app/recipe-api/internal/jobs"
)

// WelcomeJob handles TaskUserWelcome. Delivery is a structured log line; mail
// transport is outside this service.
type WelcomeJob struct {
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewWelcomeJob builds the welcome handler.
func NewWelcomeJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *WelcomeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WelcomeJob{logger: logger, metrics: metrics}
}

// Handle processes a welcome task.
func (j *WelcomeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskUserWelcome)
	var payload WelcomePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode welcome payload: %v: %w", err, asynq.SkipRetry))
	}
	if payload.UserID <= 0 || payload.Email == "" {
		return tracker.End(fmt.Errorf("welcome payload missing user: %w", asynq.SkipRetry))
	}
	j.logger.InfoContext(ctx, "welcome notification sent",
		slog.Int64("user_id", payload.UserID),
		slog.String("email", payload.Email),
		slog.String("name", payload.Name),
	)
	return tracker.End(nil)
}
