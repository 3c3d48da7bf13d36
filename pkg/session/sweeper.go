package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper is implemented by stores that need explicit idle eviction.
// Redis-backed sessions expire through key TTLs instead.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// RunSweeper periodically evicts sessions whose terminal status never arrived.
// It blocks until ctx is cancelled.
func RunSweeper(ctx context.Context, s Sweeper, interval, maxAge time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx, maxAge)
			if err != nil {
				logger.WithError(err).WithField("component", "SessionStore").Error("Session sweep failed")
				continue
			}
			if removed > 0 {
				logger.WithFields(logrus.Fields{
					"component":     "SessionStore",
					"removed_count": removed,
					"max_age":       maxAge,
				}).Info("Swept idle call sessions")
			}
		}
	}
}
