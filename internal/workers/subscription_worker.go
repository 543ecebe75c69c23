package workers

import (
	"context"
	"time"

	"commsub_backend/internal/logger"
	"commsub_backend/internal/services"

	"gorm.io/gorm"
)

// SubscriptionWorker периодически завершает подписки с истекшим
// окном действия: применяет отложенные даунгрейды, дозревшие отмены
// и помечает остальные истекшими
type SubscriptionWorker struct {
	db       *gorm.DB
	subs     *services.SubscriptionService
	interval time.Duration
}

func NewSubscriptionWorker(db *gorm.DB, subs *services.SubscriptionService, interval time.Duration) *SubscriptionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SubscriptionWorker{db: db, subs: subs, interval: interval}
}

// Start запускает цикл воркера до отмены контекста.
// Первый проход выполняется сразу, чтобы не ждать целый интервал
// после рестарта сервиса.
func (w *SubscriptionWorker) Start(ctx context.Context) {
	go func() {
		w.runOnce(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("subscription worker stopped")
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

func (w *SubscriptionWorker) runOnce(ctx context.Context) {
	processed, err := w.subs.ProcessExpired(w.db.WithContext(ctx))
	if err != nil {
		logger.Error("expiry sweep failed", "error", err)
		return
	}
	if processed > 0 {
		logger.Info("expiry sweep finished", "processed", processed)
	}
}
