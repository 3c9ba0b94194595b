// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

// Environment represents the deployment environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Storage drivers
const (
	DriverDynamoDB = "dynamodb"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Telegram update delivery modes
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development staging production"`
	LogLevel    string      `yaml:"log_level" validate:"required,oneof=debug info warn error"`
	// Timezone is the IANA zone in which "today" is computed. Empty means the server's zone.
	Timezone string `yaml:"timezone"`

	Telegram Telegram `yaml:"telegram"`
	Storage  Storage  `yaml:"storage"`
	AWS      AWS      `yaml:"aws"`
	Server   Server   `yaml:"server"`
	Events   Events   `yaml:"events"`
	Metrics  Metrics  `yaml:"metrics"`
	Tracing  Tracing  `yaml:"tracing"`
	Auth     Auth     `yaml:"auth"`
	CORS     CORS     `yaml:"cors"`

	// Replies overrides individual reply texts by key
	Replies map[string]string `yaml:"replies"`

	IsLambda   bool     `yaml:"-"`
	LoadedFrom []string `yaml:"-"`
}

// Telegram configures the chat transport
type Telegram struct {
	Token         string        `yaml:"token"`
	Mode          string        `yaml:"mode" validate:"oneof=polling webhook"`
	WebhookURL    string        `yaml:"webhook_url" validate:"required_if=Mode webhook,omitempty,url"`
	WebhookSecret string        `yaml:"webhook_secret" validate:"required_if=Mode webhook,omitempty,min=8,max=256"`
	Workers       int           `yaml:"workers" validate:"min=1,max=256"`
	PollTimeout   time.Duration `yaml:"poll_timeout" validate:"min=0"`
}

// Storage configures the entry store
type Storage struct {
	Driver   string `yaml:"driver" validate:"oneof=dynamodb sqlite postgres memory"`
	DSN      string `yaml:"dsn" validate:"required_if=Driver sqlite,required_if=Driver postgres"`
	Database string `yaml:"database"`
	Table    string `yaml:"table" validate:"required,max=255"`
	// Timeout bounds every persistence call
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"min=1"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for" validate:"gt=0"`
}

// AWS holds AWS SDK settings
type AWS struct {
	Region           string `yaml:"region"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint" validate:"omitempty,url"`
}

// Server configures the HTTP server for webhooks, health and the operator API
type Server struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Events configures domain event publishing
type Events struct {
	BusName string `yaml:"bus_name"`
}

// Metrics configures the metrics sink
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider" validate:"oneof=prometheus cloudwatch"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// Tracing configures X-Ray tracing
type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// Auth configures the operator API
type Auth struct {
	JWTSecret string `yaml:"jwt_secret" validate:"omitempty,min=16"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

// CORS configures cross-origin access to the operator API
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and the rules that span several fields
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid configuration: timezone %q: %w", c.Timezone, err)
	}

	if c.Storage.Driver == DriverDynamoDB && c.AWS.Region == "" && c.AWS.DynamoDBEndpoint == "" {
		return fmt.Errorf("invalid configuration: aws.region is required for the dynamodb driver")
	}

	if c.Metrics.Enabled && c.Metrics.Provider == "cloudwatch" && c.AWS.Region == "" {
		return fmt.Errorf("invalid configuration: aws.region is required for cloudwatch metrics")
	}

	return nil
}

// RequireTelegram checks the settings needed to talk to Telegram
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("invalid configuration: TELEGRAM_TOKEN is required")
	}
	return nil
}

// Location returns the time zone used to date new entries
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// OperatorAPIEnabled reports whether the JWT-protected API is mounted
func (c *Config) OperatorAPIEnabled() bool {
	return c.Auth.JWTSecret != ""
}
