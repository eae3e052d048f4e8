package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"

	"github.com/rlagura/transferbot/internal/config"
	"github.com/rlagura/transferbot/internal/ledger"
	"github.com/rlagura/transferbot/internal/logging"
	"github.com/rlagura/transferbot/internal/server"
	"github.com/rlagura/transferbot/internal/service"
	"github.com/rlagura/transferbot/internal/store"
	"github.com/rlagura/transferbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledgerClient, err := ledger.NewSheetsClient(ctx, ledger.Options{
		SpreadsheetID:   cfg.Ledger.SpreadsheetID,
		CredentialsJSON: cfg.Ledger.CredentialsJSON,
		CredentialsFile: cfg.Ledger.CredentialsFile,
	})
	if err != nil {
		logger.Error("failed to create ledger client", "error", err)
		os.Exit(1)
	}

	syncer, err := ledger.NewSyncer(ledgerClient, loc, logger, ledger.SyncerOptions{
		LedgerSheet:  cfg.Ledger.LedgerSheet,
		SummarySheet: cfg.Ledger.SummarySheet,
	})
	if err != nil {
		logger.Error("failed to create ledger syncer", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := syncer.Run(ctx); err != nil {
			logger.Error("ledger syncer stopped", "error", err)
		}
	}()
	<-syncer.Running()
	defer func() {
		if err := syncer.Close(); err != nil {
			logger.Warn("closing ledger syncer failed", "error", err)
		}
	}()

	claims := store.New()
	ids := service.NewIDGenerator(loc)
	svc := service.NewClaimService(claims, ids, syncer, logger, loc)

	b, err := bot.New(cfg.Bot.Token)
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	gateway := telegram.New(b, cfg.Bot.ChatID, svc, logger)
	gateway.Attach(b)

	router := server.NewRouter(logger, server.LedgerHealthService{Client: ledgerClient}, claims)
	healthSrv := server.New(logger, cfg.Health, router)
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("health server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	logger.Info("transfer claim bot is running", "chat_id", cfg.Bot.ChatID, "timezone", cfg.Timezone)
	b.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Health.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
