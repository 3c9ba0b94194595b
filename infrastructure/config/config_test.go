package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diarybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func envLoader(path string, env map[string]string) *Loader {
	l := NewLoader(path)
	l.getenv = func(key string) string { return env[key] }
	return l
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := envLoader("", map[string]string{"AWS_REGION": "eu-west-1"}).Load()
	require.NoError(t, err)

	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, DriverDynamoDB, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, ModePolling, cfg.Telegram.Mode)
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeYAML(t, `
environment: staging
log_level: debug
timezone: Europe/Moscow
storage:
  driver: sqlite
  dsn: /tmp/diary.db
  table: users
  timeout: 2s
replies:
  saved: "Noted!"
`)

	cfg, err := envLoader(path, map[string]string{
		"STORAGE_TABLE":  "entries",
		"TELEGRAM_TOKEN": "123:abc",
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, Staging, cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "entries", cfg.Storage.Table)
	assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, "Noted!", cfg.Replies["saved"])
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Contains(t, cfg.LoadedFrom, path)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := envLoader(filepath.Join(t.TempDir(), "absent.yaml"), nil).Load()
	assert.Error(t, err)
}

func TestLoad_BadEnvironmentValues(t *testing.T) {
	_, err := envLoader("", map[string]string{"STORAGE_TIMEOUT": "soon", "AWS_REGION": "eu-west-1"}).Load()
	assert.ErrorContains(t, err, "STORAGE_TIMEOUT")

	_, err = envLoader("", map[string]string{"TELEGRAM_WORKERS": "many", "AWS_REGION": "eu-west-1"}).Load()
	assert.ErrorContains(t, err, "TELEGRAM_WORKERS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid memory config", func(c *Config) { c.Storage.Driver = DriverMemory }, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"sqlite needs dsn", func(c *Config) { c.Storage.Driver = DriverSQLite }, "storage.dsn"},
		{"postgres needs dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "storage.dsn"},
		{"dynamodb needs region", func(c *Config) { c.Storage.Driver = DriverDynamoDB }, "aws.region"},
		{"webhook needs url", func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Telegram.Mode = ModeWebhook
			c.Telegram.WebhookSecret = "s3cretvalue"
		}, "telegram.webhook_url"},
		{"zero timeout", func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Storage.Timeout = 0
		}, "storage.timeout"},
		{"bad timezone", func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Timezone = "Mars/Olympus"
		}, "timezone"},
		{"short jwt secret", func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Auth.JWTSecret = "short"
		}, "auth.jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
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

func TestRequireTelegram(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.RequireTelegram())

	cfg.Telegram.Token = "123:abc"
	assert.NoError(t, cfg.RequireTelegram())
}

func TestWatcher_ReloadNotifiesCallbacks(t *testing.T) {
	path := writeYAML(t, "storage:\n  driver: memory\nlog_level: info\n")
	loader := envLoader(path, nil)
	cfg, err := loader.Load()
	require.NoError(t, err)

	// Staging does not start the fsnotify loop, so Reload is driven by hand.
	cfg.Environment = Staging
	w, err := NewWatcher(loader, cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	var got *Config
	w.OnChange(func(c *Config) { got = c })
	w.OnChange(func(*Config) { panic("bad subscriber") })

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\nlog_level: debug\n"), 0o600))
	w.Reload()

	require.NotNil(t, got)
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, "debug", w.Config().LogLevel)
}

func TestWatcher_InvalidReloadKeepsPrevious(t *testing.T) {
	path := writeYAML(t, "storage:\n  driver: memory\n")
	loader := envLoader(path, nil)
	cfg, err := loader.Load()
	require.NoError(t, err)
	cfg.Environment = Staging

	w, err := NewWatcher(loader, cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: cassandra\n"), 0o600))
	w.Reload()

	assert.Same(t, cfg, w.Config())
}

func TestWatcher_DevelopmentPicksUpFileChanges(t *testing.T) {
	path := writeYAML(t, "storage:\n  driver: memory\nlog_level: info\n")
	loader := envLoader(path, nil)
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.True(t, cfg.IsDevelopment())

	w, err := NewWatcher(loader, cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan string, 1)
	w.OnChange(func(c *Config) {
		select {
		case changed <- c.LogLevel:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\nlog_level: warn\n"), 0o600))

	select {
	case level := <-changed:
		assert.Equal(t, "warn", level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change was not observed")
	}
}
