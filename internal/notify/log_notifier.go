package notify

import (
	"context"

	"github.com/smallbiznis/seatfee/internal/observability/logger"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. It is used when no delivery
// endpoint is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify.log")}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	if err := validate(notification); err != nil {
		return err
	}
	logger.WithContext(ctx, n.log).Info("notification",
		zap.String("subscriber_id", notification.SubscriberID),
		zap.String("type", notification.Type),
		zap.String("title", notification.Title),
		zap.String("message", notification.Message),
	)
	return nil
}
