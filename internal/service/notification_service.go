package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/events"
)

// serviceEvents are the events the stand-in service announces.
var serviceEvents = []events.EventType{
	events.EventClientRegistered,
	events.EventStaffAdded,
	events.EventFeedbackReceived,
	events.EventDatasetUploaded,
	events.EventDatasetPredicted,
	events.EventDatasetExported,
}

// NotificationService writes an audit line for every service event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	unsub      []func()
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, et := range serviceEvents {
		n.unsub = append(n.unsub, n.dispatcher.Subscribe(et, n.handle))
	}
}

// Close removes the handlers.
func (n *NotificationService) Close() {
	for _, fn := range n.unsub {
		fn()
	}
	n.unsub = nil
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload),
		zap.Time("at", event.Timestamp),
	)
	return nil
}
