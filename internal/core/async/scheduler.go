package async

import (
	"context"
	"log/slog"
	"time"
)

// Schedule enqueues a pass immediately, then on every interval tick and on
// every signal from extra, until ctx is done. extra may be nil.
func Schedule(ctx context.Context, q *PassQueue, interval time.Duration, extra <-chan struct{}, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger.Info("scheduler.start", "interval", interval.String())
	q.Enqueue("start")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler.stop")
			return
		case <-ticker.C:
			q.Enqueue("tick")
		case _, ok := <-extra:
			if !ok {
				extra = nil
				continue
			}
			q.Enqueue("watch")
		}
	}
}
