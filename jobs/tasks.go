// Package jobs holds the background task types and the asynq worker.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is enqueued after a user is created.
	TaskTypeWelcomeEmail = "mail:welcome"
	// TaskTypePurgeUsers removes soft-deleted users past retention.
	TaskTypePurgeUsers = "user:purge"
)

// WelcomeEmailPayload describes the welcome mail to send.
type WelcomeEmailPayload struct {
	Email string `json:"email"`
}

// NewWelcomeEmailTask constructs an asynq task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data), nil
}

// NewWelcomeEmailHandler returns the processor for TaskTypeWelcomeEmail
// tasks.
func NewWelcomeEmailHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WelcomeEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		// Placeholder until an SMTP relay is wired up.
		logger.Info("send welcome email", slog.String("email", payload.Email))
		return nil
	}
}

// NewPurgeUsersTask constructs the retention task.
func NewPurgeUsersTask() *asynq.Task {
	return asynq.NewTask(TaskTypePurgeUsers, nil)
}
