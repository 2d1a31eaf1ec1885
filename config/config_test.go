package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Messaging.Transport)
	assert.Equal(t, 10, cfg.Assessment.MaxQuestions)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Features.Notifications)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  url: postgres://file@localhost/completion
messaging:
  transport: gochannel
assessment:
  max_questions: 5
redis:
  enabled: true
  question_bank_ttl: 2m
`), 0o600))

	t.Setenv("COMPLETION_DATABASE__URL", "postgres://env@localhost/completion")
	t.Setenv("COMPLETION_MESSAGING__TRANSPORT", "nats")
	t.Setenv("COMPLETION_MESSAGING__NATS_URL", "nats://broker:4222")
	t.Setenv("COMPLETION_HTTP__ADDR", ":9090")
	t.Setenv("COMPLETION_MESSAGING__CLOSE_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://env@localhost/completion", cfg.Database.URL)
	assert.Equal(t, "nats", cfg.Messaging.Transport)
	assert.Equal(t, "nats://broker:4222", cfg.Messaging.NATSURL)
	assert.Equal(t, 5*time.Second, cfg.Messaging.CloseTimeout)
	assert.Equal(t, 5, cfg.Assessment.MaxQuestions)
	assert.Equal(t, 2*time.Minute, cfg.Redis.QuestionBankTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"postgres without url", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.url"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, "database.driver"},
		{"memory in production", func(c *Config) { c.App.Environment = EnvProduction }, "not allowed in production"},
		{"unknown transport", func(c *Config) { c.Messaging.Transport = "kafka" }, "messaging.transport"},
		{"nats without url", func(c *Config) { c.Messaging.Transport = "nats"; c.Messaging.NATSURL = "" }, "messaging.nats_url"},
		{"zero questions", func(c *Config) { c.Assessment.MaxQuestions = 0 }, "assessment.max_questions"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad backfill schedule", func(c *Config) { c.Maintenance.BackfillSchedule = "sometimes" }, "maintenance.backfill_schedule"},
		{"maintenance disabled ignores schedules", func(c *Config) { c.Maintenance.Enabled = false; c.Maintenance.PurgeSchedule = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "messaging.nats_url", envKey("COMPLETION_MESSAGING__NATS_URL"))
	assert.Equal(t, "log.level", envKey("COMPLETION_LOG__LEVEL"))
}
