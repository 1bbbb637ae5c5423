// Package main is the entry point for the riskd portfolio and
// counterparty risk analytics service. It wires the engines to their
// SQLite-backed collaborators, exposes the risk API over HTTP, and runs
// the nightly report snapshot job.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/riskd/internal/config"
	"github.com/aristath/riskd/internal/database"
	"github.com/aristath/riskd/internal/marketdata"
	"github.com/aristath/riskd/internal/modules/concentration"
	concentrationhandlers "github.com/aristath/riskd/internal/modules/concentration/handlers"
	"github.com/aristath/riskd/internal/modules/contagion"
	contagionhandlers "github.com/aristath/riskd/internal/modules/contagion/handlers"
	"github.com/aristath/riskd/internal/modules/credit"
	credithandlers "github.com/aristath/riskd/internal/modules/credit/handlers"
	"github.com/aristath/riskd/internal/modules/factors"
	factorshandlers "github.com/aristath/riskd/internal/modules/factors/handlers"
	"github.com/aristath/riskd/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/riskd/internal/modules/portfolio/handlers"
	"github.com/aristath/riskd/internal/modules/report"
	reporthandlers "github.com/aristath/riskd/internal/modules/report/handlers"
	"github.com/aristath/riskd/internal/modules/stress"
	stresshandlers "github.com/aristath/riskd/internal/modules/stress/handlers"
	"github.com/aristath/riskd/internal/modules/varengine"
	varhandlers "github.com/aristath/riskd/internal/modules/varengine/handlers"
	"github.com/aristath/riskd/internal/scheduler"
	"github.com/aristath/riskd/internal/server"
	"github.com/aristath/riskd/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting riskd")

	// Databases: portfolio state (positions, counterparties, report
	// snapshots) and price history.
	portfolioDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"),
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	historyDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	// Collaborators.
	history := marketdata.NewHistoryDB(historyDB.Conn(), log)
	if err := history.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price history schema")
	}

	repo := portfolio.NewRepository(portfolioDB.Conn(), log)
	if err := repo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio schema")
	}

	snapshots := report.NewSnapshotStore(portfolioDB.Conn(), log)
	if err := snapshots.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot schema")
	}

	// Engines.
	varEngine := varengine.New(history, log)
	stressEngine := stress.New(log)
	factorEngine := factors.New(history, log)
	concentrationEngine := concentration.New(log)
	creditEngine := credit.New(history, log)
	contagionEngine := contagion.New(log)
	assembler := report.NewAssembler(history, varEngine, stressEngine, factorEngine, creditEngine, log)

	reportHandler := reporthandlers.NewHandler(assembler, snapshots, repo, log)

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		PortfolioDB: portfolioDB,
		HistoryDB:   historyDB,

		VaRHandler:           varhandlers.NewHandler(varEngine, log),
		StressHandler:        stresshandlers.NewHandler(stressEngine, repo, log),
		FactorsHandler:       factorshandlers.NewHandler(factorEngine, log),
		ConcentrationHandler: concentrationhandlers.NewHandler(concentrationEngine, repo, log),
		CreditHandler:        credithandlers.NewHandler(creditEngine, repo, log),
		ContagionHandler:     contagionhandlers.NewHandler(contagionEngine, creditEngine, repo, log),
		ReportHandler:        reportHandler,
		PortfolioHandler:     portfoliohandlers.NewHandler(repo, log),
	})

	// Nightly report snapshot.
	sched := scheduler.New(log)
	snapshotJob := report.NewSnapshotJob(assembler, snapshots, repo, cfg.SnapshotLookback, log)
	if err := sched.AddJob(cfg.SnapshotSchedule, snapshotJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot job")
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
