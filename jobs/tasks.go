package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUserWelcome greets a newly registered user.
	TaskUserWelcome = "user:welcome"
	// TaskRecipeImageCleanup removes a stale recipe image object.
	TaskRecipeImageCleanup = "recipe:image-cleanup"
)

// WelcomePayload identifies the user to greet.
type WelcomePayload struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// ImageCleanupPayload names the object to delete.
type ImageCleanupPayload struct {
	Key string `json:"key"`
}

// NewWelcomeTask constructs a welcome task.
func NewWelcomeTask(payload WelcomePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUserWelcome, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewImageCleanupTask constructs an image cleanup task.
func NewImageCleanupTask(key string) (*asynq.Task, error) {
	if key == "" {
		return nil, fmt.Errorf("jobs: image cleanup: empty key")
	}
	data, err := json.Marshal(ImageCleanupPayload{Key: key})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecipeImageCleanup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}
