package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
	"github.com/maxsergeev/YD-Project-2/infrastructure/di"
	"github.com/maxsergeev/YD-Project-2/interfaces/mcptools"
)

func mcpCommand(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Serve the diary as MCP tools over stdio

USAGE:
    diarybot mcp [--config path]

MCP client configuration:

  {
    "mcpServers": {
      "diarybot": {
        "command": "diarybot",
        "args": ["mcp"],
        "env": {"STORAGE_DRIVER": "sqlite", "STORAGE_DSN": "diary.db"}
      }
    }
  }
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()

	if err := container.CheckStorage(ctx, startupPingTimeout); err != nil {
		return err
	}

	s := mcptools.NewServer(container.Router, container.QueryBus, Version)
	container.Logger.Info("Serving MCP on stdio", zap.String("storage", cfg.Storage.Driver))

	// Logs go to stderr; stdout belongs to the protocol.
	return server.ServeStdio(s)
}
