package notify

import (
	"context"

	"github.com/threadline/fulfillment/internal/domain/notification"
	"github.com/threadline/fulfillment/internal/observability"
)

// LoggingDispatcher stands in for the real message transport: it logs
// each notification instead of sending it.
type LoggingDispatcher struct {
	log observability.Logger
}

var _ notification.Dispatcher = (*LoggingDispatcher)(nil)

func NewLoggingDispatcher(logger observability.Logger) *LoggingDispatcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LoggingDispatcher{log: logger.With(observability.F("component", "notification_dispatcher"))}
}

func (d *LoggingDispatcher) Send(ctx context.Context, userID string, template notification.Template, data map[string]any) error {
	_ = ctx
	d.log.Info("notification_sent",
		observability.F("user_id", userID),
		observability.F("template", string(template)),
		observability.F("data", data),
	)
	return nil
}
