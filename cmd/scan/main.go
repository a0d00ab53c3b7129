package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/config"
	"github.com/hadlocna/operations/internal/container"
	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/internal/domain/event"
	"github.com/hadlocna/operations/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	from := flag.String("from", "", "Start date (YYYY-MM-DD), defaults to the last 24 hours")
	to := flag.String("to", "", "End date (YYYY-MM-DD)")
	dryRun := flag.Bool("dry-run", false, "Archive to the local directory and ledger to the XLSX workbook")
	preview := flag.Bool("preview", false, "Only list the messages a scan would consider")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewCLILogger(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	req := entity.ScanRequest{Trigger: entity.TriggerCLI}
	if req.DateFrom, err = parseDay(*from); err != nil {
		logger.Fatal("Invalid -from", zap.Error(err))
	}
	if req.DateTo, err = parseDay(*to); err != nil {
		logger.Fatal("Invalid -to", zap.Error(err))
	}

	// One-shot runs never start the scheduler
	cfg.Scheduler.Enabled = false
	if *dryRun {
		cfg.Archive.Backend = config.BackendLocal
		cfg.Ledger.Backend = config.BackendXLSX
		logger.Info("Dry run: using local archive and XLSX ledger",
			zap.String("archive_dir", cfg.Archive.LocalDir),
			zap.String("ledger_path", cfg.Ledger.XLSXPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	if *preview {
		query, messages, err := c.ScanService().Preview(ctx, req)
		if err != nil {
			logger.Fatal("Preview failed", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "query: %s\n", query)
		printJSON(messages)
		return
	}

	// Stop scheduling new candidates on the first signal
	stream := c.ScanService().Stream(ctx, req)
	exitCode := 0
	for ev := range stream.Events() {
		switch ev.Type {
		case event.TypeLog:
			fmt.Fprintf(os.Stderr, "%s  %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Message)
		case event.TypeError:
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
			exitCode = 1
		case event.TypeComplete:
			printJSON(ev.Summary)
			if ev.Summary != nil && len(ev.Summary.Errors) > 0 {
				exitCode = 2
			}
		}
	}

	if exitCode != 0 {
		c.Close()
		os.Exit(exitCode)
	}
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
	}
}
