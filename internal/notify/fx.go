package notify

import (
	"github.com/smallbiznis/seatfee/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New picks the webhook notifier when an endpoint is configured.
func New(cfg config.Config, log *zap.Logger) Notifier {
	if cfg.NotifyWebhookURL != "" {
		return NewWebhookNotifier(cfg.NotifyWebhookURL, log)
	}
	return NewLogNotifier(log)
}

var Module = fx.Module("notify",
	fx.Provide(New),
)
