package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/interviewprep/internal/shared"
	"github.com/ashureev/interviewprep/internal/store"
)

const (
	sweepAttempts  = 3
	sweepBaseDelay = 100 * time.Millisecond
)

// StartSessionSweeper periodically deletes expired sessions until ctx is done.
// The returned channel is closed when the sweeper exits.
func StartSessionSweeper(ctx context.Context, repo store.Repository, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepSessions(ctx, repo)
			}
		}
	}()
	return done
}

func sweepSessions(ctx context.Context, repo store.Repository) {
	var removed int64
	err := shared.RetryOnConflict(ctx, sweepAttempts, sweepBaseDelay, func(ctx context.Context) error {
		n, err := repo.DeleteExpiredSessions(ctx, time.Now())
		removed = n
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Session sweep failed", "error", err)
		}
		return
	}
	if removed > 0 {
		slog.Info("Expired sessions removed", "count", removed)
	}
}
