package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/recipe-app/recipe-api/internal/jobs"
)

// ObjectDeleter removes stored objects by key.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// ImageCleanupJob handles TaskRecipeImageCleanup.
type ImageCleanupJob struct {
	store   ObjectDeleter
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewImageCleanupJob builds the cleanup handler. store may be nil when object
// storage is not configured; tasks are then dropped without retry.
func NewImageCleanupJob(store ObjectDeleter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImageCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageCleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle deletes the object named by the task payload.
func (j *ImageCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskRecipeImageCleanup)
	var payload ImageCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode image cleanup payload: %v: %w", err, asynq.SkipRetry))
	}
	if payload.Key == "" {
		return tracker.End(fmt.Errorf("image cleanup payload missing key: %w", asynq.SkipRetry))
	}
	if j.store == nil {
		j.logger.WarnContext(ctx, "image cleanup skipped, storage not configured", slog.String("key", payload.Key))
		return tracker.End(fmt.Errorf("storage not configured: %w", asynq.SkipRetry))
	}
	if err := j.store.Delete(ctx, payload.Key); err != nil {
		return tracker.End(fmt.Errorf("delete image %s: %w", payload.Key, err))
	}
	j.logger.InfoContext(ctx, "recipe image removed", slog.String("key", payload.Key))
	return tracker.End(nil)
}
