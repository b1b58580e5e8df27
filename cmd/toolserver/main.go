package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"encompass-agent/agent"
	"encompass-agent/api"
	"encompass-agent/cmd/internal/setup"
	"encompass-agent/docsearch"

	"go.uber.org/zap"
)

func main() {
	cfg, err := setup.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := setup.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := setup.NewStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	embedder, err := setup.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("failed to create embedder", zap.Error(err))
	}
	loans, err := setup.NewLoanClient(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to create loan client", zap.Error(err))
	}
	docs := docsearch.NewService(store, embedder, "", logger)

	var a *agent.Agent
	if a, err = setup.NewAgent(cfg, docs, loans, logger); err != nil {
		logger.Warn("agent endpoint disabled", zap.Error(err))
		a = nil
	}

	server := api.NewServer(cfg.AppPort, api.NewHandler(docs, loans, a), logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		logger.Fatal("tool server stopped", zap.Error(err))
	}
}
