package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ogulcanaydogan/spendwatch/pkg/alerts"
	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/shopspring/decimal"
)

// DefaultSubject is the subject line of every daily alert.
const DefaultSubject = "Daily Expense Alert"

// Evaluation trigger paths, used as metric labels.
const (
	PathWrite = "write"
	PathSweep = "sweep"
)

// DefaultThreshold is the daily spending limit when none is configured.
var DefaultThreshold = decimal.NewFromInt(50)

// Evaluate sums records for one user and day and decides whether the total is
// strictly above threshold. It has no side effects.
func Evaluate(userID, date string, records []model.ExpenseRecord, threshold decimal.Decimal) model.Decision {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}

	d := model.Decision{
		UserID:      userID,
		Date:        date,
		Total:       total,
		ShouldAlert: total.GreaterThan(threshold),
	}
	if d.ShouldAlert {
		d.Message = AlertMessage(total, threshold)
	}
	return d
}

// AlertMessage renders the notification text. The total always has two decimals;
// the threshold is printed as configured, e.g. "$50" or "$50.5".
func AlertMessage(total, threshold decimal.Decimal) string {
	return fmt.Sprintf("Daily expense threshold exceeded! You've spent $%s today (threshold: $%s).",
		total.StringFixed(2), threshold.String())
}

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	Threshold decimal.Decimal
	Subject   string
	Topics    alerts.TopicResolver
}

// Evaluator is the single place where daily totals are compared with the threshold
// and alerts are requested. Every call that crosses the threshold publishes; there
// is no deduplication between calls.
type Evaluator struct {
	store     storage.ExpenseStore
	notifier  alerts.Notifier
	topics    alerts.TopicResolver
	threshold decimal.Decimal
	subject   string
	metrics   *Metrics
	logger    *slog.Logger
}

// NewEvaluator creates an evaluator. A zero threshold, empty subject or nil topic
// resolver fall back to 50, DefaultSubject and a global "daily-expense-alerts" topic.
func NewEvaluator(store storage.ExpenseStore, notifier alerts.Notifier, opts EvaluatorOptions, metrics *Metrics, logger *slog.Logger) *Evaluator {
	if opts.Threshold.IsZero() {
		opts.Threshold = DefaultThreshold
	}
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.Topics == nil {
		opts.Topics = alerts.GlobalTopic("daily-expense-alerts")
	}
	return &Evaluator{
		store:     store,
		notifier:  notifier,
		topics:    opts.Topics,
		threshold: opts.Threshold,
		subject:   opts.Subject,
		metrics:   metrics,
		logger:    logger,
	}
}

// Threshold returns the configured daily limit.
func (e *Evaluator) Threshold() decimal.Decimal {
	return e.threshold
}

// EvaluateDay re-reads every record of userID on date and checks the total.
// Only the read can fail; publish failures are logged and leave Notified false.
func (e *Evaluator) EvaluateDay(ctx context.Context, userID, date string) (model.Decision, error) {
	records, err := e.store.QueryByUserAndDate(ctx, userID, date)
	if err != nil {
		return model.Decision{}, fmt.Errorf("query expenses of %s on %s: %w", userID, date, err)
	}
	return e.check(ctx, PathWrite, userID, date, records), nil
}

// check evaluates records already known to belong to userID and date.
func (e *Evaluator) check(ctx context.Context, path, userID, date string, records []model.ExpenseRecord) model.Decision {
	d := Evaluate(userID, date, records, e.threshold)
	e.metrics.evaluated(path)
	if !d.ShouldAlert {
		return d
	}

	e.logger.Warn("daily threshold exceeded",
		"user_id", userID,
		"date", date,
		"total", d.Total.StringFixed(2),
		"threshold", e.threshold.String(),
		"path", path,
	)
	if e.notifier == nil {
		return d
	}

	alert := alerts.Alert{
		Topic:     e.topics.TopicFor(userID),
		Subject:   e.subject,
		Message:   d.Message,
		UserID:    userID,
		Date:      date,
		Total:     d.Total,
		Threshold: e.threshold,
	}
	if err := e.notifier.Publish(ctx, alert); err != nil {
		e.metrics.alertFailed()
		e.logger.Error("publish alert failed",
			"notifier", e.notifier.Name(),
			"user_id", userID,
			"topic", alert.Topic,
			"error", err,
		)
		return d
	}

	e.metrics.alertPublished()
	d.Notified = true
	return d
}
