package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/proofscout/amazon-proof-scraper/internal/auth"
	"github.com/proofscout/amazon-proof-scraper/internal/config"
	"github.com/proofscout/amazon-proof-scraper/internal/export"
	"github.com/proofscout/amazon-proof-scraper/internal/fetcher"
	"github.com/proofscout/amazon-proof-scraper/internal/parser"
	"github.com/proofscout/amazon-proof-scraper/internal/progress"
	"github.com/proofscout/amazon-proof-scraper/internal/ratelimit"
	"github.com/proofscout/amazon-proof-scraper/internal/runner"
	"github.com/proofscout/amazon-proof-scraper/internal/sheets"
)

func main() {
	var (
		sheetID    = flag.String("sheet", "", "Spreadsheet ID (overrides SHEET_ID)")
		worksheet  = flag.String("worksheet", "", "Worksheet name (overrides SHEET_WORKSHEET)")
		chunkSize  = flag.Int("chunk-size", 0, "ASINs per chunk (overrides SCRAPER_CHUNK_SIZE)")
		pageDelay  = flag.Duration("delay", 0, "Minimum delay between page loads (overrides SCRAPER_PAGE_DELAY)")
		reset      = flag.Bool("reset", false, "Discard the saved checkpoint and start over")
		dryRun     = flag.Bool("dry-run", false, "Fetch and extract but skip sheet writes")
		exportPath = flag.String("export", "", "Write collected results to a local .xlsx file")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *sheetID != "" {
		cfg.Sheet.SpreadsheetID = *sheetID
	}
	if *worksheet != "" {
		cfg.Sheet.Worksheet = *worksheet
	}
	if *chunkSize > 0 {
		cfg.Scraper.ChunkSize = *chunkSize
	}
	if *pageDelay > 0 {
		cfg.Scraper.PageDelayMin = *pageDelay
		if cfg.Scraper.PageDelayMax < *pageDelay {
			cfg.Scraper.PageDelayMax = *pageDelay
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting social proof scraper",
		"worksheet", cfg.Sheet.Worksheet,
		"chunk_size", cfg.Scraper.ChunkSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	httpClient, err := auth.Client(ctx, auth.Options{
		CredentialsFile: cfg.Auth.CredentialsFile,
		TokenFile:       cfg.Auth.TokenFile,
	})
	if err != nil {
		logger.Error("authentication failed", "error", err)
		os.Exit(1)
	}

	sheet, err := sheets.NewClient(ctx, httpClient, sheets.Config{
		SpreadsheetID: cfg.Sheet.SpreadsheetID,
		Worksheet:     cfg.Sheet.Worksheet,
		ASINColumn:    cfg.Sheet.ASINColumn,
		ResultColumn:  cfg.Sheet.ResultColumn,
		StartRow:      cfg.Sheet.StartRow,
		MaxRetries:    cfg.Scraper.MaxRetries,
		RetryDelay:    cfg.Scraper.RetryDelay,
	})
	if err != nil {
		logger.Error("failed to create sheets client", "error", err)
		os.Exit(1)
	}

	store, err := progress.NewStore(cfg.Progress.File)
	if err != nil {
		logger.Error("failed to open progress file", "error", err)
		os.Exit(1)
	}

	if *reset {
		if err := store.Reset(); err != nil {
			logger.Error("failed to reset progress", "error", err)
			os.Exit(1)
		}
		logger.Info("checkpoint cleared")
	}

	r := runner.New(runner.Options{
		Reader: sheet,
		Writer: sheet,
		Fetcher: fetcher.New(fetcher.Options{
			UserAgents: cfg.Scraper.UserAgents,
			MaxRetries: cfg.Scraper.MaxRetries,
			RetryDelay: cfg.Scraper.RetryDelay,
			Timeout:    cfg.Scraper.Timeout,
		}),
		Parser:    parser.NewSocialProofParser(),
		Limiter:   ratelimit.NewAdaptiveLimiter(cfg.Scraper.PageDelayMin, cfg.Scraper.PageDelayMax),
		Store:     store,
		ChunkSize: cfg.Scraper.ChunkSize,
		DryRun:    *dryRun,
		Logger:    logger,
	})

	summary, err := r.Run(ctx)
	if err != nil {
		logger.Error("run halted", "error", err,
			"chunks_done", summary.ChunksDone,
			"chunks_total", summary.ChunksTotal,
		)
		logger.Info("progress is saved; rerun to continue from the last checkpoint")
		os.Exit(1)
	}

	logger.Info("run finished",
		"processed", summary.Processed,
		"with_data", summary.WithData,
		"no_data", summary.NoData,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)

	if *exportPath != "" {
		if err := export.WriteWorkbook(*exportPath, store.Results()); err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		logger.Info("results exported", "path", *exportPath)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
