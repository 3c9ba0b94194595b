// Injector for the provider graph declared in wire.go. Written in the shape
// wire emits; running `wire` in this directory replaces it.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"context"

	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
)

// Injectors from wire.go:

// InitializeContainer creates a fully wired container. The cleanup func
// closes the store and flushes the logger.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	atomicLevel, err := ProvideLogLevel(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, cleanup, err := ProvideLogger(cfg, atomicLevel)
	if err != nil {
		return nil, nil, err
	}
	tracer := ProvideTracer(cfg)
	awsConfig, err := ProvideAWSConfig(ctx, cfg, tracer)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	client := ProvideDynamoDBClient(awsConfig, cfg)
	cloudwatchClient := ProvideCloudWatchClient(awsConfig)
	recorder := ProvideMetrics(cloudwatchClient, cfg)
	entryStore, cleanup2, err := ProvideEntryStore(ctx, cfg, client, recorder, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	eventbridgeClient := ProvideEventBridgeClient(awsConfig)
	eventPublisher := ProvideEventPublisher(eventbridgeClient, cfg, logger)
	commandBus, err := ProvideCommandBus(entryStore, eventPublisher, recorder, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	queryBus, err := ProvideQueryBus(entryStore, recorder, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	router, err := ProvideRouter(cfg, commandBus, queryBus, recorder, tracer, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	container := &Container{
		Config:     cfg,
		Logger:     logger,
		Level:      atomicLevel,
		Store:      entryStore,
		Publisher:  eventPublisher,
		Metrics:    recorder,
		Tracer:     tracer,
		CommandBus: commandBus,
		QueryBus:   queryBus,
		Router:     router,
	}
	return container, func() {
		cleanup2()
		cleanup()
	}, nil
}
