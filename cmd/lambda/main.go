package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
	"github.com/maxsergeev/YD-Project-2/infrastructure/di"
	"github.com/maxsergeev/YD-Project-2/interfaces/http/rest"
	"github.com/maxsergeev/YD-Project-2/interfaces/telegram"
	"github.com/maxsergeev/YD-Project-2/pkg/auth"
)

const (
	flushTimeout       = 2 * time.Second
	startupPingTimeout = 5 * time.Second
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart = true
)

// coldStartBuild wires the container and the webhook router once per
// execution environment. It fails when the store cannot be reached.
func coldStartBuild(ctx context.Context, cfg *config.Config) (*chiadapter.ChiLambdaV2, *di.Container, error) {
	started := time.Now()

	c, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	if err := c.CheckStorage(ctx, startupPingTimeout); err != nil {
		cleanup()
		return nil, nil, err
	}
	logger := c.Logger

	bot, err := telegram.NewBot(cfg.Telegram.Token, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	dispatcher := telegram.NewDispatcher(bot, c.Router, logger)

	opts := rest.Options{
		Webhook:        telegram.NewWebhookHandler(bot, dispatcher, cfg.Telegram.WebhookSecret, logger),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.OperatorAPIEnabled() {
		opts.Validator, err = auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create JWT validator: %w", err)
		}
	}

	handler := rest.NewRouter(c.QueryBus, c.Store, opts, logger).Setup()
	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		cleanup()
		return nil, nil, fmt.Errorf("failed to cast handler to chi.Mux")
	}

	logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(started)),
		zap.String("storage", cfg.Storage.Driver),
	)
	return chiadapter.NewV2(chiRouter), c, nil
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	container.Logger.Debug("Lambda response",
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("route", req.RouteKey),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Int("status_code", resp.StatusCode),
		zap.Bool("cold_start", coldStart),
	)
	coldStart = false

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if ferr := container.FlushMetrics(flushCtx); ferr != nil {
		container.Logger.Warn("Failed to flush metrics", zap.Error(ferr))
	}

	return resp, err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("%v", err)
	}

	// The store lives as long as the execution environment.
	chiLambda, container, err = coldStartBuild(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Cold start failed: %v", err)
	}

	lambda.Start(Handler)
}
