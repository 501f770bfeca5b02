package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/smallbiznis/seatfee/internal/observability/tracing"
	"go.uber.org/zap"
)

// WebhookNotifier posts notifications as JSON to a fixed endpoint, retrying
// transient failures with backoff.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
	log    *zap.Logger
}

type WebhookOption func(*retryablehttp.Client)

func WithRetryMax(n int) WebhookOption {
	return func(c *retryablehttp.Client) { c.RetryMax = n }
}

func WithRetryWait(min, max time.Duration) WebhookOption {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = min
		c.RetryWaitMax = max
	}
}

func NewWebhookNotifier(url string, log *zap.Logger, opts ...WebhookOption) *WebhookNotifier {
	named := log.Named("notify.webhook")

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.HTTPClient.Transport = tracing.WrapTransport(client.HTTPClient.Transport)
	client.Logger = &retryLogger{log: named}
	for _, opt := range opts {
		opt(client)
	}

	return &WebhookNotifier{url: url, client: client, log: named}
}

func (n *WebhookNotifier) Send(ctx context.Context, notification Notification) error {
	if err := validate(notification); err != nil {
		return err
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook delivery: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// retryLogger adapts zap to retryablehttp's leveled logger.
type retryLogger struct {
	log *zap.Logger
}

func (l *retryLogger) Error(msg string, kv ...interface{}) { l.log.Sugar().Errorw(msg, kv...) }
func (l *retryLogger) Info(msg string, kv ...interface{})  { l.log.Sugar().Debugw(msg, kv...) }
func (l *retryLogger) Debug(msg string, kv ...interface{}) { l.log.Sugar().Debugw(msg, kv...) }
func (l *retryLogger) Warn(msg string, kv ...interface{})  { l.log.Sugar().Warnw(msg, kv...) }
