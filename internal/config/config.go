package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds all spendwatch configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Threshold ThresholdConfig `mapstructure:"threshold"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig defines HTTP API settings.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig defines cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Path     string         `mapstructure:"path"`
	DSN      string         `mapstructure:"dsn"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// DynamoDBConfig names the tables of the dynamodb backend.
type DynamoDBConfig struct {
	ExpensesTable string `mapstructure:"expenses_table"`
	UsersTable    string `mapstructure:"users_table"`
	Endpoint      string `mapstructure:"endpoint"`
}

// AWSConfig defines settings shared by AWS clients.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// AuthConfig defines token and password settings.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// ThresholdConfig defines the daily limit.
type ThresholdConfig struct {
	DailyLimit string `mapstructure:"daily_limit"`
	Timezone   string `mapstructure:"timezone"`
	Subject    string `mapstructure:"subject"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Topic           string        `mapstructure:"topic"`
	PerUserTopics   bool          `mapstructure:"per_user_topics"`
	UserTopicPrefix string        `mapstructure:"user_topic_prefix"`
	Log             LogConfig     `mapstructure:"log"`
	AMQP            AMQPConfig    `mapstructure:"amqp"`
	Kafka           KafkaConfig   `mapstructure:"kafka"`
	SNS             SNSConfig     `mapstructure:"sns"`
	Slack           SlackConfig   `mapstructure:"slack"`
	Webhook         WebhookConfig `mapstructure:"webhook"`
}

// LogConfig toggles the log notifier.
type LogConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AMQPConfig defines RabbitMQ settings.
type AMQPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// KafkaConfig defines Kafka settings.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
}

// SNSConfig toggles the SNS notifier. Alert topics are used as topic ARNs.
type SNSConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// SweepConfig defines the periodic threshold sweep.
type SweepConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from a .env file, the config file and environment variables.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".spendwatch"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("server.listen", ":3000")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.max_age", 600)
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.path", filepath.Join(home, ".spendwatch", "spendwatch.db"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.dynamodb.expenses_table", "expenses")
	v.SetDefault("storage.dynamodb.users_table", "users")
	v.SetDefault("storage.dynamodb.endpoint", "")
	v.SetDefault("aws.region", "ap-southeast-2")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("threshold.daily_limit", "50")
	v.SetDefault("threshold.timezone", "Australia/Sydney")
	v.SetDefault("threshold.subject", "Daily Expense Alert")
	v.SetDefault("alerts.topic", "daily-expense-alerts")
	v.SetDefault("alerts.per_user_topics", false)
	v.SetDefault("alerts.user_topic_prefix", "daily-expense-alerts.")
	v.SetDefault("alerts.log.enabled", true)
	v.SetDefault("alerts.amqp.enabled", false)
	v.SetDefault("alerts.amqp.url", "")
	v.SetDefault("alerts.amqp.exchange", "expense-alerts")
	v.SetDefault("alerts.kafka.enabled", false)
	v.SetDefault("alerts.kafka.brokers", []string{})
	v.SetDefault("alerts.sns.enabled", false)
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "#expenses")
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "24h")
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("SPENDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DailyLimit parses the configured threshold.
func (c *Config) DailyLimit() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Threshold.DailyLimit))
	if err != nil {
		return decimal.Zero, fmt.Errorf("threshold.daily_limit %q: %w", c.Threshold.DailyLimit, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("threshold.daily_limit must be positive, got %s", d)
	}
	return d, nil
}

// Location loads the time zone that decides "today" for the sweep.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Threshold.Timezone)
	if err != nil {
		return nil, fmt.Errorf("threshold.timezone %q: %w", c.Threshold.Timezone, err)
	}
	return loc, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	case BackendDynamoDB:
		if c.Storage.DynamoDB.ExpensesTable == "" || c.Storage.DynamoDB.UsersTable == "" {
			errs = append(errs, errors.New("storage.dynamodb tables are required"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	if _, err := c.DailyLimit(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	a := c.Alerts
	if a.AMQP.Enabled && a.AMQP.URL == "" {
		errs = append(errs, errors.New("alerts.amqp.url is required when amqp is enabled"))
	}
	if a.Kafka.Enabled && len(a.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("alerts.kafka.brokers is required when kafka is enabled"))
	}
	if a.Slack.Enabled && a.Slack.WebhookURL == "" {
		errs = append(errs, errors.New("alerts.slack.webhook_url is required when slack is enabled"))
	}
	if a.Webhook.Enabled && a.Webhook.URL == "" {
		errs = append(errs, errors.New("alerts.webhook.url is required when webhook is enabled"))
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("sweep.interval must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateServe runs Validate plus the checks that only matter for the HTTP API.
func (c *Config) ValidateServe() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required to serve the API"))
	}
	return errors.Join(errs...)
}
