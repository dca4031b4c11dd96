package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/proofscout/amazon-proof-scraper/internal/api"
	"github.com/proofscout/amazon-proof-scraper/internal/auth"
	"github.com/proofscout/amazon-proof-scraper/internal/config"
	"github.com/proofscout/amazon-proof-scraper/internal/fetcher"
	"github.com/proofscout/amazon-proof-scraper/internal/parser"
	"github.com/proofscout/amazon-proof-scraper/internal/progress"
	"github.com/proofscout/amazon-proof-scraper/internal/ratelimit"
	"github.com/proofscout/amazon-proof-scraper/internal/runner"
	"github.com/proofscout/amazon-proof-scraper/internal/sheets"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// Initialize services
	scrapeRunner := runner.New(runner.Options{
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
		Logger:    logger,
	})

	runManager := api.NewRunManager(ctx, scrapeRunner, logger)
	handlers := api.NewHandlers(runManager, store, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", handlers.Health)

	// API Routes
	handlers.Routes(r)

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
