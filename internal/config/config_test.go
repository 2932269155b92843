package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogulcanaydogan/spendwatch/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Listen)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, 600, cfg.Server.CORS.MaxAge)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "expenses", cfg.Storage.DynamoDB.ExpensesTable)
	assert.Equal(t, "ap-southeast-2", cfg.AWS.Region)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "50", cfg.Threshold.DailyLimit)
	assert.Equal(t, "Australia/Sydney", cfg.Threshold.Timezone)
	assert.Equal(t, "Daily Expense Alert", cfg.Threshold.Subject)
	assert.Equal(t, "daily-expense-alerts", cfg.Alerts.Topic)
	assert.False(t, cfg.Alerts.PerUserTopics)
	assert.True(t, cfg.Alerts.Log.Enabled)
	assert.Equal(t, "expense-alerts", cfg.Alerts.AMQP.Exchange)
	assert.Equal(t, "#expenses", cfg.Alerts.Slack.Channel)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Sweep.Interval)
	assert.Equal(t, 4, cfg.Sweep.Concurrency)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte(`
storage:
  backend: postgres
  dsn: postgres://localhost/spend
server:
  listen: ":9090"
threshold:
  daily_limit: "75.5"
  timezone: UTC
alerts:
  per_user_topics: true
  kafka:
    enabled: true
    brokers: ["k1:9092", "k2:9092"]
logging:
  level: debug
`)
	err := os.WriteFile(cfgPath, data, 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, config.BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/spend", cfg.Storage.DSN)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.True(t, cfg.Alerts.PerUserTopics)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Alerts.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)

	limit, err := cfg.DailyLimit()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("75.5").Equal(limit))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPENDWATCH_LOGGING_LEVEL", "error")
	t.Setenv("SPENDWATCH_SERVER_LISTEN", ":7070")
	t.Setenv("SPENDWATCH_THRESHOLD_DAILY_LIMIT", "120")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, "120", cfg.Threshold.DailyLimit)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SPENDWATCH_ALERTS_TOPIC=from-dotenv\n"), 0o644))
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("SPENDWATCH_ALERTS_TOPIC") })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Alerts.Topic)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	err := os.WriteFile(cfgPath, []byte("invalid: [yaml"), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Storage.Backend = "cassandra"
	cfg.Threshold.DailyLimit = "-5"
	cfg.Threshold.Timezone = "Mars/Olympus"
	cfg.Alerts.AMQP.Enabled = true
	cfg.Alerts.Webhook.Enabled = true

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown storage.backend")
	assert.Contains(t, msg, "threshold.daily_limit")
	assert.Contains(t, msg, "threshold.timezone")
	assert.Contains(t, msg, "alerts.amqp.url")
	assert.Contains(t, msg, "alerts.webhook.url")
}

func TestValidateServe_RequiresSecret(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	err = cfg.ValidateServe()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret")

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.ValidateServe())
}
