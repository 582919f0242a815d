package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper expires tickets whose response window has closed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// RunExpirySweeper calls SweepExpired every interval until ctx is done.
// Reads expire tickets lazily as well; the sweep makes sure tickets nobody
// looks at still reach Expired and emit their event.
func RunExpirySweeper(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *zap.Logger) {
	if sweeper == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.SweepExpired(ctx)
			if err != nil {
				logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired tickets", zap.Int("count", n))
			}
		}
	}
}
