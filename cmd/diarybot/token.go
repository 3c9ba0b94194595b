package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/maxsergeev/YD-Project-2/infrastructure/config"
	"github.com/maxsergeev/YD-Project-2/pkg/auth"
)

func tokenCommand(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	subject := fs.String("subject", "", "Operator identity recorded in audit logs (required)")
	roles := fs.String("roles", auth.RoleOperator, "Comma-separated roles")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Mint a JWT for the operator API

USAGE:
    diarybot token --subject <name> [--roles operator] [--ttl 24h]

The token is signed with auth.jwt_secret (JWT_SECRET) and printed to stdout.

FLAGS:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*subject) == "" {
		fs.Usage()
		return errors.New("--subject is required")
	}

	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		return err
	}
	if !cfg.OperatorAPIEnabled() {
		return errors.New("operator API is disabled: set JWT_SECRET")
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := auth.GenerateToken(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, *subject, roleList, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
