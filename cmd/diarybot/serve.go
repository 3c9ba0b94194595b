package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
	"github.com/maxsergeev/YD-Project-2/infrastructure/di"
	"github.com/maxsergeev/YD-Project-2/interfaces/http/rest"
	"github.com/maxsergeev/YD-Project-2/interfaces/telegram"
	"github.com/maxsergeev/YD-Project-2/pkg/auth"
)

const startupPingTimeout = 10 * time.Second

func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Run the Telegram bot and the HTTP server

USAGE:
    diarybot serve [--config path]

The update mode comes from telegram.mode (TELEGRAM_MODE): "polling" pulls
updates from Telegram, "webhook" registers <webhook_url>/telegram/webhook/<secret>.
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()
	logger := container.Logger

	if err := container.CheckStorage(ctx, startupPingTimeout); err != nil {
		return err
	}

	watcher, err := config.NewWatcher(loader, cfg, logger)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.OnChange(container.ApplyConfig)

	bot, err := telegram.NewBot(cfg.Telegram.Token, logger)
	if err != nil {
		return err
	}
	dispatcher := telegram.NewDispatcher(bot, container.Router, logger)

	opts, err := routerOptions(cfg, container)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		opts.Webhook = telegram.NewWebhookHandler(bot, dispatcher, cfg.Telegram.WebhookSecret, logger)
		url := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + "/telegram/webhook/" + cfg.Telegram.WebhookSecret
		if err := telegram.RegisterWebhook(bot, url); err != nil {
			return err
		}
		logger.Info("Telegram webhook registered", zap.String("base_url", cfg.Telegram.WebhookURL))
	default:
		if err := telegram.DeleteWebhook(bot); err != nil {
			return err
		}
		poller := telegram.NewPoller(bot, dispatcher, cfg.Telegram.Workers, cfg.Telegram.PollTimeout, logger)
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      rest.NewRouter(container.QueryBus, container.Store, opts, logger).Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("mode", cfg.Telegram.Mode),
			zap.String("storage", cfg.Storage.Driver),
			zap.Strings("config_sources", cfg.LoadedFrom),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func routerOptions(cfg *config.Config, container *di.Container) (rest.Options, error) {
	opts := rest.Options{
		Metrics:        container.MetricsHandler(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Debug:          cfg.IsDevelopment(),
	}
	if cfg.OperatorAPIEnabled() {
		validator, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			return rest.Options{}, err
		}
		opts.Validator = validator
	}
	return opts, nil
}
