package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper деактивирует устаревшие неверифицированные аккаунты.
type Sweeper interface {
	SweepUnverifiedUsers(ctx context.Context) (int64, error)
}

// SweepWorker периодически запускает деактивацию неверифицированных
// пользователей, аналог планировщика фоновых задач.
type SweepWorker struct {
	log      *slog.Logger
	sweeper  Sweeper
	interval time.Duration
}

func NewSweepWorker(log *slog.Logger, sweeper Sweeper, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		log:      log,
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start крутит таймер до отмены контекста.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info("starting sweep worker", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweep worker stopped")
			return
		case <-ticker.C:
			count, err := w.sweeper.SweepUnverifiedUsers(ctx)
			if err != nil {
				w.log.Error("sweep run failed", slog.Any("error", err))
				continue
			}
			w.log.Info("sweep run finished", slog.Int64("deactivated", count))
		}
	}
}
