package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// UserPurger removes soft-deleted users whose deletion timestamp is older
// than the cutoff. users.Repository satisfies it.
type UserPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// PurgeJob hard-deletes user rows once their retention window has elapsed.
type PurgeJob struct {
	purger    UserPurger
	retention time.Duration
	logger    *slog.Logger
}

// NewPurgeJob constructs a PurgeJob.
func NewPurgeJob(purger UserPurger, retention time.Duration, logger *slog.Logger) *PurgeJob {
	return &PurgeJob{purger: purger, retention: retention, logger: logger}
}

// Handle processes TaskTypePurgeUsers tasks.
func (j *PurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().UTC().Add(-j.retention)
	removed, err := j.purger.Purge(ctx, cutoff)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("purge users", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("purged soft-deleted users",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}
