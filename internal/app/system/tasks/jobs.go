// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"errors"
	"time"

	orphanstore "github.com/dalemusser/stratadrive/internal/app/store/orphans"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/app/system/lifecycle"
	"go.uber.org/zap"
)

// Job names.
const (
	TrashSweep = "trash-sweep"
	OrphanReap = "orphan-reap"
)

// DefaultReapBatch is how many orphans one reaper run retries.
const DefaultReapBatch = 100

// Sweeper purges expired trash. *lifecycle.Engine implements it.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (lifecycle.SweepResult, error)
}

// TrashSweepJob purges trash older than the engine's retention window.
func TrashSweepJob(s Sweeper, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     TrashSweep,
		Interval: interval,
		Timeout:  interval,
		Run: func(ctx context.Context) error {
			res, err := s.SweepExpired(ctx, time.Now())
			if res.Folders > 0 || res.Files > 0 {
				logger.Info("expired trash purged",
					zap.Int("folders", res.Folders),
					zap.Int("files", res.Files))
			}
			return err
		},
	}
}

// OrphanReapJob retries content deletes that failed during a purge. An
// orphan is dropped once its content is gone; otherwise its attempt counter
// is bumped and it is tried again on a later run.
func OrphanReapJob(orphans *orphanstore.Store, blobs blob.Store, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     OrphanReap,
		Interval: interval,
		Timeout:  interval,
		Run: func(ctx context.Context) error {
			_, err := ReapOrphans(ctx, orphans, blobs, DefaultReapBatch, logger)
			return err
		},
	}
}

// ReapOrphans makes one pass over up to limit orphans and returns how many
// were cleared.
func ReapOrphans(ctx context.Context, orphans *orphanstore.Store, blobs blob.Store, limit int64, logger *zap.Logger) (int, error) {
	due, err := orphans.ListDue(ctx, limit)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, o := range due {
		if ctx.Err() != nil {
			return cleared, ctx.Err()
		}
		err := blobs.Delete(ctx, o.ContentID)
		if err != nil && !errors.Is(err, blob.ErrNotFound) {
			logger.Warn("orphan content delete failed",
				zap.String("content_id", o.ContentID),
				zap.Int("attempts", o.Attempts+1),
				zap.Error(err))
			if merr := orphans.MarkFailed(ctx, o.ID, err); merr != nil {
				return cleared, merr
			}
			continue
		}
		if err := orphans.Delete(ctx, o.ID); err != nil {
			return cleared, err
		}
		cleared++
	}

	if cleared > 0 {
		logger.Info("orphaned content removed", zap.Int("count", cleared))
	}
	return cleared, nil
}
