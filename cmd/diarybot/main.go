// diarybot: a personal diary you keep by chatting with a bot.
//
// Usage:
//
//	diarybot serve     # Telegram bot (polling or webhook) plus the HTTP server
//	diarybot mcp       # MCP server on stdio
//	diarybot token     # Mint an operator API token
//	diarybot version   # Print the version
package main

import (
	"fmt"
	"os"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serveCommand(os.Args[2:])
	case "mcp":
		err = mcpCommand(os.Args[2:])
	case "token":
		err = tokenCommand(os.Args[2:])
	case "--version", "-v", "version":
		fmt.Printf("diarybot %s\n", Version)
		return
	case "--help", "-h", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `diarybot %s, a personal diary bot

USAGE:
    diarybot <command> [flags]

COMMANDS:
    serve      Run the Telegram bot and the HTTP server
    mcp        Serve the diary as MCP tools over stdio
    token      Mint a JWT for the operator API
    version    Print the version
    help       Show this help

CONFIGURATION:
    Settings come from defaults, then the YAML file named by CONFIG_FILE
    (config/diarybot.yaml when present), then environment variables such as
    TELEGRAM_TOKEN, STORAGE_DRIVER and STORAGE_DSN.
`, Version)
}
