package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"architex/config"
	"architex/core/types"
	"architex/gateway"
	"architex/native/arbitration"
	"architex/native/escrow"
	"architex/native/governance"
	"architex/observability/logging"
	"architex/state"
	"architex/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.toml", "path to service config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("architexd", "").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("architexd", cfg.Environment)

	var db storage.Database
	if cfg.DataDir == "" {
		logger.Warn("no data dir configured, using in-memory storage")
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer func() { _ = db.Close() }()

	manager := state.NewManager(db)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(manager)
	if cfg.TreasuryAccount != "" {
		escrowEngine.SetTreasury(cfg.TreasuryAccount)
	} else {
		escrowEngine.SetTreasury(types.TreasuryAccountID)
	}

	disputeEngine := arbitration.NewEngine()
	disputeEngine.SetState(manager)
	disputeEngine.SetEscrow(escrowEngine)

	govEngine := governance.NewEngine()
	govEngine.SetState(manager)
	if cfg.VotingPeriodSeconds > 0 {
		govEngine.SetVotingPeriod(cfg.VotingPeriodSeconds)
	}

	auth := gateway.NewAuthenticator(cfg.APIKeys, time.Duration(cfg.AuthSkewSeconds)*time.Second, nil)
	server := gateway.NewServer(gateway.Deps{
		Escrow:   escrowEngine,
		Disputes: disputeEngine,
		Gov:      govEngine,
		State:    manager,
		Auth:     auth,
		Log:      logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.ListenAddress, "auth", auth.Enabled())
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	}
}
