package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notehouse/config"
	"notehouse/core/state"
	"notehouse/native/auction"
	"notehouse/native/ledger"
	"notehouse/native/note"
	"notehouse/native/token"
	"notehouse/native/vault"
	"notehouse/observability/logging"
	"notehouse/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NOTEHOUSE_ENV"))
	logger := logging.Setup("notehoused", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	custody, err := cfg.Custody()
	if err != nil {
		logger.Error("invalid custody address", "error", err)
		os.Exit(1)
	}
	collector, err := cfg.Collector()
	if err != nil {
		logger.Error("invalid collector address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := state.NewStore(db)
	book := token.NewBook(custody)
	factory, err := vault.NewFactory()
	if err != nil {
		logger.Error("failed to create vault factory", "error", err)
		os.Exit(1)
	}
	notes := note.NewRegistry(book, collector, custody, cfg.FeeEnabled, cfg.FeeBps)

	ledgerEngine := ledger.NewEngine(cfg.SettlementAsset, custody)
	ledgerEngine.SetState(store)
	ledgerEngine.SetMover(book)

	registry := auction.NewRegistry()
	registry.SetState(store)
	registry.SetVaultFactory(factory)
	registry.SetMover(book)

	engine := auction.NewEngine(registry, cfg.SettlementAsset, custody)
	engine.SetLedger(ledgerEngine)
	engine.SetNoteRegistry(notes)
	engine.SetMover(book)
	engine.SetFeeBps(cfg.FeeBps)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	logger.Info("auction house ready",
		"asset", cfg.SettlementAsset,
		"dataDir", cfg.DataDir,
		"metrics", cfg.MetricsAddress,
		"feeEnabled", cfg.FeeEnabled,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", "error", err)
	}
	logger.Info("auction house stopped")
}
