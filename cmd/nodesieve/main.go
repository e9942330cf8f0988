package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nodesieve/internal/notify"
	"nodesieve/internal/shared/config"
	"nodesieve/internal/shared/logger"
	"nodesieve/nodepool"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file (.yaml or .ini)")
	progress := flag.Bool("progress", false, "Show a progress bar while probing")
	flag.Parse()

	// 1. 加载配置。配置错误不致命，使用默认值继续
	cfg, cfgErr := config.Load(*configPath)
	if *progress {
		cfg.Progress = true
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cfgErr != nil {
		logger.Warn().Err(cfgErr).Msgf("Failed to load config file '%s', using defaults", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 组装并运行
	manager, err := nodepool.NewManager(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create node pool manager")
	}

	for _, n := range notify.FromEnv(os.Getenv) {
		manager.AddNotifier(n)
	}

	_, err = manager.Run(ctx)
	if closeErr := manager.Close(); closeErr != nil {
		logger.Warn().Err(closeErr).Msg("Failed to close verdict cache")
	}
	if err != nil {
		if errors.Is(err, nodepool.ErrInputMissing) {
			logger.Error().Msg("Nothing to filter: run the collector first or configure subscription sources.")
		} else {
			logger.Error().Err(err).Msg("Node quality filter failed")
		}
		os.Exit(1)
	}
}
