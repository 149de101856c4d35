// Package worker starts the background loops of both binaries.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Syncer is a session that can follow changes made by other contexts.
type Syncer interface {
	StartSync(ctx context.Context) error
	Teardown()
}

// StartSessionSync follows other contexts until ctx ends, then tears the session down.
// The returned channel closes once teardown is complete.
func StartSessionSync(ctx context.Context, s Syncer, logger *zap.Logger) (<-chan struct{}, error) {
	if err := s.StartSync(ctx); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.Teardown()
		logger.Debug("session sync stopped")
	}()
	return done, nil
}
