package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/commands/bus"
	"github.com/maxsergeev/YD-Project-2/application/conversation"
	"github.com/maxsergeev/YD-Project-2/application/ports"
	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
	"github.com/maxsergeev/YD-Project-2/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Level      zap.AtomicLevel
	Store      ports.EntryStore
	Publisher  ports.EventPublisher
	Metrics    observability.Recorder
	Tracer     *observability.Tracer
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Router     *conversation.Router
}

// CheckStorage pings the store and fails when it cannot be reached within timeout
func (c *Container) CheckStorage(ctx context.Context, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Store.Ping(pingCtx); err != nil {
		c.Logger.Error("Storage unavailable at startup",
			zap.String("driver", c.Config.Storage.Driver),
			zap.Error(err),
		)
		return fmt.Errorf("storage unavailable: %w", err)
	}
	return nil
}

// MetricsHandler returns the /metrics handler, or nil when Prometheus is not the sink
func (c *Container) MetricsHandler() http.Handler {
	if collector, ok := c.Metrics.(*observability.Collector); ok {
		return collector.Handler()
	}
	return nil
}

// FlushMetrics ships buffered CloudWatch datums. Other sinks need no flush.
func (c *Container) FlushMetrics(ctx context.Context) error {
	if publisher, ok := c.Metrics.(*observability.Publisher); ok {
		return publisher.Flush(ctx)
	}
	return nil
}

// ApplyConfig applies the settings that may change at runtime
func (c *Container) ApplyConfig(cfg *config.Config) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		c.Logger.Warn("Ignoring invalid log level", zap.String("level", cfg.LogLevel))
		return
	}
	c.Level.SetLevel(level.Level())
}
