package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockfolio/internal/auth"
	"stockfolio/internal/clients/alphavantage"
	"stockfolio/internal/config"
	"stockfolio/internal/database"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/performance"
	"stockfolio/internal/modules/portfolio"
	"stockfolio/internal/modules/prices"
	"stockfolio/internal/modules/prices/jobs"
	"stockfolio/internal/modules/users"
	"stockfolio/internal/modules/valuation"
	"stockfolio/internal/scheduler"
	"stockfolio/internal/server"
	"stockfolio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info", Pretty: true})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Stockfolio")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Create schemas
	if err := initSchemas(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to create schemas")
	}

	// Price history store (separate database file)
	history, err := prices.NewHistoryStore(cfg.HistoryPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history store")
	}
	defer history.Close()

	// Quote source and price cache
	avClient := alphavantage.NewClient(cfg.AlphaVantageBaseURL, cfg.AlphaVantageAPIKey, log)
	priceService := prices.NewService(avClient, history, prices.Config{TTL: cfg.QuoteTTL}, log)

	// Repositories
	userRepo := users.NewRepository(db.Conn(), log)
	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	ledgerRepo := ledger.NewRepository(db.Conn(), log)

	// Services
	tokens := auth.NewTokens(cfg.JWTSecret, 24*time.Hour)
	userService := users.NewService(db.Conn(), userRepo, portfolioRepo, tokens, log)
	valuationEngine := valuation.NewEngine(log)
	portfolioService := portfolio.NewService(portfolioRepo, ledgerRepo, priceService, valuationEngine, log)
	performanceService := performance.NewService(portfolioRepo, ledgerRepo, avClient, history, log)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.QuoteRefreshCron, jobs.NewQuoteRefresh(ledgerRepo, priceService, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register quote refresh job")
	}
	healthCheck := scheduler.NewHealthCheckJob(map[string]*sql.DB{
		"main":    db.Conn(),
		"history": history.Conn(),
	}, log)
	if err := sched.AddJob("@every 6h", healthCheck); err != nil {
		log.Fatal().Err(err).Msg("Failed to register health check job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		DevMode:     cfg.DevMode,
		Auth:        auth.NewMiddleware(tokens, log),
		Users:       users.NewHandlers(userService, log),
		Portfolio:   portfolio.NewHandlers(portfolioService, log),
		Performance: performance.NewHandlers(performanceService, log),
		System:      server.NewSystemHandlers(log, db, priceService),
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func initSchemas(db *database.DB) error {
	if err := users.InitSchema(db.Conn()); err != nil {
		return err
	}
	if err := portfolio.InitSchema(db.Conn()); err != nil {
		return err
	}
	return ledger.InitSchema(db.Conn())
}
