package alerts

import (
	"context"
	"log/slog"
)

// LogNotifier writes alerts to the structured log instead of a broker.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Publish(ctx context.Context, alert Alert) error {
	l.logger.InfoContext(ctx, "alert published",
		"topic", alert.Topic,
		"subject", alert.Subject,
		"user_id", alert.UserID,
		"date", alert.Date,
		"message", alert.Message,
	)
	return nil
}
