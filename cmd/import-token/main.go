package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/hadlocna/operations/internal/config"
	"github.com/hadlocna/operations/internal/container"
	"github.com/hadlocna/operations/pkg/utils"
)

// import-token stores an OAuth token obtained elsewhere (for example with the
// provider's CLI tooling) so headless scans can use it.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	tokenPath := flag.String("token", "token.json", "Path to an OAuth2 token JSON file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewCLILogger("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	raw, err := os.ReadFile(*tokenPath)
	if err != nil {
		logger.Fatal("Failed to read token file", zap.String("path", *tokenPath), zap.Error(err))
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		logger.Fatal("Failed to parse token file", zap.Error(err))
	}
	if tok.RefreshToken == "" {
		logger.Warn("Token has no refresh token; it will stop working when the access token expires")
	}

	cfg.Scheduler.Enabled = false
	ctx := context.Background()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	if err := c.Tokens().Import(ctx, &tok); err != nil {
		logger.Fatal("Failed to import token", zap.Error(err))
	}

	status, err := c.Tokens().Status(ctx)
	if err != nil {
		logger.Fatal("Failed to read credential status", zap.Error(err))
	}
	logger.Info("Token imported",
		zap.Bool("stored", status.Stored),
		zap.Bool("refreshable", status.Refreshable),
		zap.Strings("scopes", status.Scopes))
}
