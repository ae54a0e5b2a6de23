package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/combined-epg/internal/app"
	"github.com/Adda-Baaj/combined-epg/internal/config"
	"github.com/Adda-Baaj/combined-epg/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "combined epg failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("combiner starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	combiner, err := app.NewCombiner(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize combiner", "error", err)
		return err
	}

	summary, err := combiner.Run(ctx)
	if err != nil {
		return fmt.Errorf("combiner run: %w", err)
	}

	fmt.Printf("Combined EPG saved to %s\n", summary.OutputPath)
	return nil
}
