package cleanup

import (
	"context"
	"time"

	"github.com/tsogoevz/gymdesk/backend/internal/common/clock"
	"github.com/tsogoevz/gymdesk/backend/internal/common/logger"
	"github.com/tsogoevz/gymdesk/backend/internal/observability/metrics"
	"github.com/tsogoevz/gymdesk/backend/internal/session/repository"
)

// Worker purges refresh token records whose expiry is older than the
// retention window. The session core itself never deletes records, so
// this is the only place rows leave the table.
type Worker struct {
	store     repository.RefreshTokenStore
	clock     clock.Clock
	log       *logger.Logger
	retention time.Duration
	interval  time.Duration
}

func NewWorker(store repository.RefreshTokenStore, clk clock.Clock, log *logger.Logger, retention, interval time.Duration) *Worker {
	return &Worker{
		store:     store,
		clock:     clk,
		log:       log,
		retention: retention,
		interval:  interval,
	}
}

// Start runs the purge loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
}

func (w *Worker) RunOnce(ctx context.Context) {
	cutoff := w.clock.Now().Add(-w.retention)
	deleted, err := w.store.DeleteStale(ctx, cutoff)
	if err != nil {
		w.log.Errorf("refresh token cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		metrics.RecordsCleanupDeleted.Add(float64(deleted))
		w.log.Infof("refresh token cleanup removed %d stale records", deleted)
	}
}
