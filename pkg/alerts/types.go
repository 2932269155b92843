package alerts

import (
	"context"

	"github.com/shopspring/decimal"
)

// Alert is a single daily-threshold notification.
type Alert struct {
	Topic     string          `json:"topic"`
	Subject   string          `json:"subject"`
	Message   string          `json:"message"`
	UserID    string          `json:"userId"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Threshold decimal.Decimal `json:"threshold"`
}

// Notifier publishes alerts to an external system.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Publish delivers alert.Message with alert.Subject to alert.Topic.
	// Implementations must be safe for concurrent use.
	Publish(ctx context.Context, alert Alert) error
}

// TopicResolver picks the topic a user's alerts are published to.
type TopicResolver interface {
	TopicFor(userID string) string
}

// GlobalTopic sends every user's alerts to the same topic.
type GlobalTopic string

func (t GlobalTopic) TopicFor(string) string { return string(t) }

// PerUserTopic routes each user to their own topic, named Prefix + userID.
type PerUserTopic struct {
	Prefix string
}

func (t PerUserTopic) TopicFor(userID string) string { return t.Prefix + userID }
