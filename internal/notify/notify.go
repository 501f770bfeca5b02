// Package notify delivers reminder notifications to subscribers.
package notify

import (
	"context"
	"errors"
)

// Notification types.
const (
	TypeDueReminder = "due_reminder"
)

type Notification struct {
	SubscriberID string         `json:"subscriber_id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Type         string         `json:"type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Notifier sends one notification. Callers treat failures as non-fatal.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

var ErrInvalidNotification = errors.New("invalid_notification")

func validate(n Notification) error {
	if n.SubscriberID == "" || n.Type == "" {
		return ErrInvalidNotification
	}
	return nil
}
