package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/events"
	"github.com/weaveui/dataset-manager/internal/service"
)

// Drainer is implemented by dispatchers that run handlers in the background.
type Drainer interface {
	Wait()
}

// NotificationWorker owns the receipt and timeline handlers for the life of the process.
type NotificationWorker struct {
	drainer Drainer
	logger  *zap.Logger
}

// StartNotificationWorker registers notification handlers. drainer may be nil when the
// dispatcher runs handlers synchronously.
func StartNotificationWorker(notificationService *service.NotificationService, drainer Drainer, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	return &NotificationWorker{drainer: drainer, logger: logger}
}

// Stop waits for in-flight handlers, giving up when ctx is done.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	if w == nil || w.drainer == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		w.drainer.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("notification handlers still running at shutdown")
		return ctx.Err()
	}
}

var _ Drainer = (*events.InMemoryDispatcher)(nil)
