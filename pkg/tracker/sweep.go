package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// SweepCompleted is the message of every successful SweepReport.
const SweepCompleted = "Threshold check completed"

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	// Location decides which calendar day is "today". Defaults to UTC.
	Location *time.Location
	// Concurrency bounds the users evaluated in parallel. Defaults to 4.
	Concurrency int
}

// Sweeper periodically evaluates every user with expenses dated today.
type Sweeper struct {
	store       storage.ExpenseStore
	evaluator   *Evaluator
	loc         *time.Location
	concurrency int
	now         func() time.Time
	metrics     *Metrics
	logger      *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(store storage.ExpenseStore, evaluator *Evaluator, opts SweeperOptions, metrics *Metrics, logger *slog.Logger) *Sweeper {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Sweeper{
		store:       store,
		evaluator:   evaluator,
		loc:         opts.Location,
		concurrency: opts.Concurrency,
		now:         time.Now,
		metrics:     metrics,
		logger:      logger,
	}
}

// WithClock replaces the time source used to pick today's date.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Today returns the current calendar day in the sweeper's location.
func (s *Sweeper) Today() string {
	return model.DayIn(s.now(), s.loc)
}

// Run evaluates each user's total for today. A failure or panic while handling
// one user is counted and does not stop the others. Only the scan itself can
// fail the run.
func (s *Sweeper) Run(ctx context.Context) (*model.SweepReport, error) {
	started := time.Now()
	today := s.Today()

	all, err := s.store.ScanAll(ctx)
	if err != nil {
		s.metrics.sweepFinished("error", started)
		return nil, fmt.Errorf("scan expenses: %w", err)
	}

	byUser := make(map[string][]model.ExpenseRecord)
	for _, r := range all {
		if r.Date == today {
			byUser[r.UserID] = append(byUser[r.UserID], r)
		}
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	slices.Sort(users)

	report := &model.SweepReport{
		Message:      SweepCompleted,
		Date:         today,
		UsersChecked: len(users),
		Alerts:       []model.Decision{},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, userID := range users {
		records := byUser[userID]
		g.Go(func() error {
			d, ok := s.evaluateUser(gctx, userID, today, records)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				report.Failures++
				return nil
			}
			if d.ShouldAlert {
				report.Alerts = append(report.Alerts, d)
				if d.Notified {
					report.AlertsSent++
				} else {
					report.Failures++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(report.Alerts, func(a, b model.Decision) int {
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})

	s.metrics.sweepFinished("ok", started)
	s.logger.Info("sweep completed",
		"date", today,
		"users_checked", report.UsersChecked,
		"alerts_sent", report.AlertsSent,
		"failures", report.Failures,
		"duration", time.Since(started),
	)
	return report, nil
}

func (s *Sweeper) evaluateUser(ctx context.Context, userID, date string, records []model.ExpenseRecord) (d model.Decision, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep user failed", "user_id", userID, "panic", r)
			ok = false
		}
	}()
	return s.evaluator.check(ctx, PathSweep, userID, date, records), true
}

// Schedule runs a sweep every interval until ctx is cancelled. Errors from a
// single run are logged and the schedule continues.
func (s *Sweeper) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sweep scheduled", "interval", interval, "location", s.loc.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
