package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when CONFIG_FILE is unset and the file exists
const DefaultConfigFile = "config/diarybot.yaml"

// Loader handles loading configuration from multiple sources.
// The loading order (from lowest to highest priority):
//  1. Default values (in code)
//  2. YAML file (CONFIG_FILE, or DefaultConfigFile when present)
//  3. Environment variables
type Loader struct {
	path     string
	explicit bool
	getenv   func(string) string
}

// NewLoader creates a loader for the given YAML path. An empty path means
// DefaultConfigFile, which may be absent.
func NewLoader(path string) *Loader {
	l := &Loader{path: path, explicit: path != "", getenv: os.Getenv}
	if path == "" {
		l.path = DefaultConfigFile
	}
	return l
}

// Load reads the configuration named by CONFIG_FILE
func Load() (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_FILE")).Load()
}

// Path returns the YAML file this loader reads
func (l *Loader) Path() string {
	return l.path
}

// Load builds and validates the configuration
func (l *Loader) Load() (*Config, error) {
	cfg := defaultConfig()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "defaults")

	if err := l.loadFile(cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || l.explicit {
			return nil, fmt.Errorf("failed to load config file %s: %w", l.path, err)
		}
	} else {
		cfg.LoadedFrom = append(cfg.LoadedFrom, l.path)
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	return nil
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	setString := func(key string, target *string) {
		if val := l.getenv(key); val != "" {
			*target = val
		}
	}

	if val := l.getenv("ENVIRONMENT"); val != "" {
		cfg.Environment = Environment(strings.ToLower(val))
	}
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("DIARY_TIMEZONE", &cfg.Timezone)

	// Telegram
	setString("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	setString("TELEGRAM_MODE", &cfg.Telegram.Mode)
	setString("TELEGRAM_WEBHOOK_URL", &cfg.Telegram.WebhookURL)
	setString("TELEGRAM_WEBHOOK_SECRET", &cfg.Telegram.WebhookSecret)
	if val := l.getenv("TELEGRAM_WORKERS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_WORKERS %q: %w", val, err)
		}
		cfg.Telegram.Workers = n
	}

	// Storage
	setString("STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("STORAGE_DSN", &cfg.Storage.DSN)
	setString("STORAGE_DATABASE", &cfg.Storage.Database)
	setString("TABLE_NAME", &cfg.Storage.Table)
	setString("STORAGE_TABLE", &cfg.Storage.Table)
	if val := l.getenv("STORAGE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_TIMEOUT %q: %w", val, err)
		}
		cfg.Storage.Timeout = d
	}

	// AWS
	setString("AWS_REGION", &cfg.AWS.Region)
	setString("DYNAMODB_ENDPOINT", &cfg.AWS.DynamoDBEndpoint)

	// Server
	setString("SERVER_ADDRESS", &cfg.Server.Address)

	// Events, metrics, tracing
	setString("EVENT_BUS_NAME", &cfg.Events.BusName)
	if val := l.getenv("ENABLE_METRICS"); val != "" {
		cfg.Metrics.Enabled = parseBool(val)
	}
	setString("METRICS_PROVIDER", &cfg.Metrics.Provider)
	if val := l.getenv("ENABLE_TRACING"); val != "" {
		cfg.Tracing.Enabled = parseBool(val)
	}

	// Operator API
	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("JWT_ISSUER", &cfg.Auth.JWTIssuer)
	if val := l.getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.CORS.AllowedOrigins = splitList(val)
	}

	if val := l.getenv("IS_LAMBDA"); val != "" {
		cfg.IsLambda = parseBool(val)
	} else if l.getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		cfg.IsLambda = true
	}

	return nil
}

// defaultConfig returns a configuration with sensible defaults.
// The service can run without a configuration file.
func defaultConfig() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Telegram: Telegram{
			Mode:        ModePolling,
			Workers:     8,
			PollTimeout: 60 * time.Second,
		},
		Storage: Storage{
			Driver:          DriverDynamoDB,
			Database:        "diary",
			Table:           "diary-users",
			Timeout:         5 * time.Second,
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
		},
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: Metrics{
			Provider:  "prometheus",
			Namespace: "diarybot",
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
		},
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
