package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/ogulcanaydogan/spendwatch/internal/config"
	"github.com/ogulcanaydogan/spendwatch/pkg/alerts"
	"github.com/ogulcanaydogan/spendwatch/pkg/auth"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/ogulcanaydogan/spendwatch/pkg/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "spendwatch",
	Short: "spendwatch - expense tracking with daily spending alerts",
	Long: `spendwatch records per-user expenses behind a token-protected HTTP API and
alerts users whose spending on a single day goes over a fixed threshold.
Alerts are checked after every write and by a periodic sweep.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.spendwatch/config.yaml)")
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// app is the fully wired service graph shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Storage
	notifier  *alerts.Fanout
	registry  *prometheus.Registry
	evaluator *tracker.Evaluator
	expenses  *tracker.ExpenseService
	sweeper   *tracker.Sweeper
	auth      *auth.Service
}

// newApp wires storage, notifiers and the tracker services from config.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	limit, err := cfg.DailyLimit()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	store, err := initStorage(ctx, cfg, loadAWS)
	if err != nil {
		return nil, err
	}

	notifier, err := initNotifiers(cfg, loadAWS, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := tracker.NewMetrics(registry)

	evaluator := tracker.NewEvaluator(store, notifier, tracker.EvaluatorOptions{
		Threshold: limit,
		Subject:   cfg.Threshold.Subject,
		Topics:    initTopics(cfg),
	}, metrics, logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		notifier:  notifier,
		registry:  registry,
		evaluator: evaluator,
		expenses:  tracker.NewExpenseService(store, evaluator, logger),
		sweeper: tracker.NewSweeper(store, evaluator, tracker.SweeperOptions{
			Location:    loc,
			Concurrency: cfg.Sweep.Concurrency,
		}, metrics, logger),
		auth: auth.NewService(store, auth.Options{
			Secret:     []byte(cfg.Auth.JWTSecret),
			TokenTTL:   cfg.Auth.TokenTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		}, logger),
	}

	logger.Debug("app initialized",
		"storage", cfg.Storage.Backend,
		"notifiers", notifier.List(),
		"daily_limit", limit.String(),
		"timezone", loc.String(),
	)
	return a, nil
}

// Close releases notifier connections and storage.
func (a *app) Close() error {
	return errors.Join(a.notifier.Close(), a.store.Close())
}

// initStorage creates a storage backend from config.
func initStorage(ctx context.Context, cfg *config.Config, loadAWS func() (aws.Config, error)) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		return storage.NewPostgres(ctx, cfg.Storage.DSN)
	case config.BackendDynamoDB:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		d := cfg.Storage.DynamoDB
		return storage.NewDynamoDBFromConfig(awsCfg, d.Endpoint, d.ExpensesTable, d.UsersTable), nil
	case config.BackendMemory:
		return storage.NewMemory(), nil
	default:
		return storage.NewSQLite(cfg.Storage.Path)
	}
}

// initNotifiers registers every enabled alert destination on one fanout.
func initNotifiers(cfg *config.Config, loadAWS func() (aws.Config, error), logger *slog.Logger) (*alerts.Fanout, error) {
	fanout := alerts.NewFanout()
	a := cfg.Alerts

	var notifiers []alerts.Notifier
	if a.Log.Enabled {
		notifiers = append(notifiers, alerts.NewLogNotifier(logger))
	}
	if a.AMQP.Enabled {
		n, err := alerts.NewAMQPNotifier(a.AMQP.URL, a.AMQP.Exchange)
		if err != nil {
			closeAll(notifiers)
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if a.Kafka.Enabled {
		n, err := alerts.NewKafkaNotifier(a.Kafka.Brokers)
		if err != nil {
			closeAll(notifiers)
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if a.SNS.Enabled {
		awsCfg, err := loadAWS()
		if err != nil {
			closeAll(notifiers)
			return nil, err
		}
		notifiers = append(notifiers, alerts.NewSNSNotifierFromConfig(awsCfg))
	}
	if a.Slack.Enabled && a.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(a.Slack.WebhookURL, a.Slack.Channel))
	}
	if a.Webhook.Enabled && a.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(a.Webhook.URL, a.Webhook.Secret))
	}

	for _, n := range notifiers {
		if err := fanout.Register(n); err != nil {
			closeAll(notifiers)
			return nil, err
		}
	}
	return fanout, nil
}

func closeAll(notifiers []alerts.Notifier) {
	for _, n := range notifiers {
		if c, ok := n.(interface{ Close() error }); ok {
			c.Close()
		}
	}
}

// initTopics picks the alert routing. Per-user topics are opt-in.
func initTopics(cfg *config.Config) alerts.TopicResolver {
	if cfg.Alerts.PerUserTopics {
		return alerts.PerUserTopic{Prefix: cfg.Alerts.UserTopicPrefix}
	}
	return alerts.GlobalTopic(cfg.Alerts.Topic)
}
