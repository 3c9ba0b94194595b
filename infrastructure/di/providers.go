package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maxsergeev/YD-Project-2/application/commands"
	"github.com/maxsergeev/YD-Project-2/application/commands/bus"
	commandhandlers "github.com/maxsergeev/YD-Project-2/application/commands/handlers"
	"github.com/maxsergeev/YD-Project-2/application/conversation"
	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/application/queries"
	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	queryhandlers "github.com/maxsergeev/YD-Project-2/application/queries/handlers"
	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
	"github.com/maxsergeev/YD-Project-2/infrastructure/messaging/eventbridge"
	"github.com/maxsergeev/YD-Project-2/infrastructure/persistence/decorators"
	"github.com/maxsergeev/YD-Project-2/infrastructure/persistence/dynamodb"
	"github.com/maxsergeev/YD-Project-2/infrastructure/persistence/memory"
	"github.com/maxsergeev/YD-Project-2/infrastructure/persistence/sqlstore"
	"github.com/maxsergeev/YD-Project-2/pkg/observability"
)

const serviceName = "diarybot"

// ProvideLogLevel parses the configured level into a level the watcher can change
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// ProvideLogger creates a new logger instance writing to stderr
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build(zap.Fields(
		zap.String("service", serviceName),
		zap.String("environment", string(cfg.Environment)),
	))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.Tracing.Enabled)
}

// ProvideAWSConfig creates AWS configuration. SDK calls are traced when tracing is on.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config, tracer *observability.Tracer) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if tracer.Enabled() {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at a local endpoint when configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.AWS.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics selects the metrics sink
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) observability.Recorder {
	if !cfg.Metrics.Enabled {
		return observability.NewNop()
	}
	if cfg.Metrics.Provider == "cloudwatch" {
		namespace := fmt.Sprintf("%s/%s", cfg.Metrics.Namespace, cfg.Environment)
		return observability.NewPublisher(namespace, client)
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideEntryStore opens the configured engine and wraps it with timeouts and a circuit breaker
func ProvideEntryStore(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics observability.Recorder,
	logger *zap.Logger,
) (ports.EntryStore, func(), error) {
	inner, err := openStore(ctx, cfg, client, logger)
	if err != nil {
		return nil, nil, err
	}

	resilience := decorators.DefaultResilienceConfig(cfg.Storage.Driver)
	resilience.Timeout = cfg.Storage.Timeout
	resilience.MaxFailures = cfg.Storage.BreakerFailures
	resilience.OpenFor = cfg.Storage.BreakerOpenFor
	store := decorators.NewResilientStore(inner, resilience, metrics, logger)

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close entry store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.EntryStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverDynamoDB:
		store := dynamodb.NewEntryStore(client, cfg.Storage.Table, logger)
		if cfg.AWS.DynamoDBEndpoint != "" {
			if err := store.EnsureTable(ctx); err != nil {
				return nil, err
			}
		}
		logger.Info("DynamoDB entry store ready", zap.String("table", cfg.Storage.Table))
		return store, nil
	case config.DriverSQLite:
		return sqlstore.Open(ctx, sqlstore.SQLite(), cfg.Storage.DSN, cfg.Storage.Table, logger)
	case config.DriverPostgres:
		return sqlstore.Open(ctx, sqlstore.Postgres(cfg.Storage.Database), cfg.Storage.DSN, cfg.Storage.Table, logger)
	case config.DriverMemory:
		logger.Warn("Using in-memory entry store, entries are lost on restart")
		return memory.NewEntryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// ProvideEventPublisher publishes to EventBridge, or drops events when no bus is configured
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.Events.BusName == "" {
		return eventbridge.NoopPublisher{}
	}
	return eventbridge.NewPublisher(client, cfg.Events.BusName, logger)
}

// ProvideCommandBus creates the command bus with its handlers registered
func ProvideCommandBus(
	store ports.EntryStore,
	publisher ports.EventPublisher,
	metrics observability.Recorder,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(busLogger{logger.Sugar()}))

	appendHandler := commandhandlers.NewAppendEntryHandler(store, publisher, metrics, logger)
	if err := commandBus.Register(commands.AppendEntryCommand{}, appendHandler.BusHandler()); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus with its handlers registered
func ProvideQueryBus(store ports.EntryStore, metrics observability.Recorder, logger *zap.Logger) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.MetricsMiddleware(metrics))

	entriesHandler := queryhandlers.NewGetEntriesHandler(store, logger)
	if err := queryBus.Register(queries.GetEntriesQuery{}, entriesHandler.BusHandler()); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideRouter creates the conversation router with configured replies and time zone
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics observability.Recorder,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*conversation.Router, error) {
	replies, err := conversation.DefaultReplies().WithOverrides(cfg.Replies)
	if err != nil {
		return nil, err
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return conversation.NewRouter(commandBus, queryBus, metrics, logger,
		conversation.WithReplies(replies),
		conversation.WithLocation(location),
		conversation.WithTracer(tracer),
	), nil
}

// busLogger adapts a sugared logger to the command bus logging interface
type busLogger struct {
	sugar *zap.SugaredLogger
}

func (l busLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l busLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

