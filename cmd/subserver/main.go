package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nodesieve/internal/service/web"
	"nodesieve/internal/shared/config"
	"nodesieve/internal/shared/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file (.yaml or .ini)")
	listen := flag.String("listen", "", "Listen address, overrides [web] listen")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)
	if *listen != "" {
		cfg.Listen = *listen
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cfgErr != nil {
		logger.Warn().Err(cfgErr).Msgf("Failed to load config file '%s', using defaults", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := web.NewServer(cfg).Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Result server failed")
	}
}
