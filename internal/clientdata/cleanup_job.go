package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes long-expired quote cache entries.
// It should be scheduled to run daily.
type CleanupJob struct {
	repo  *Repository
	grace time.Duration
	log   zerolog.Logger
}

// NewCleanupJob creates a new quote cache cleanup job.
func NewCleanupJob(repo *Repository, grace time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:  repo,
		grace: grace,
		log:   log.With().Str("job", "quote_cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := j.repo.DeleteExpired(ctx, j.grace)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired quote cache entries")
		return err
	}

	var totalDeleted int64
	for kind, count := range results {
		if count > 0 {
			j.log.Info().
				Str("kind", string(kind)).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	if totalDeleted > 0 {
		j.log.Info().Int64("total_deleted", totalDeleted).Msg("Quote cache cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "quote_cache_cleanup"
}
