package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"encompass-agent/cmd/internal/setup"
	"encompass-agent/docsearch"

	"go.uber.org/zap"
)

func main() {
	question := flag.String("q", "fetch top ten FHA loans", "question to ask the agent")
	source := flag.String("source", "", "documentation source to search")
	flag.Parse()

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

	docs := docsearch.NewService(store, embedder, *source, logger)
	a, err := setup.NewAgent(cfg, docs, loans, logger)
	if err != nil {
		logger.Fatal("failed to create agent", zap.Error(err))
	}

	answer, err := a.Run(ctx, *question)
	if err != nil {
		logger.Fatal("agent failed", zap.Error(err))
	}
	fmt.Println(answer)
}
