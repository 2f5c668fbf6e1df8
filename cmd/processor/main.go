package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sensoralarm/internal/config"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/pipeline"
	"sensoralarm/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	if err := server.New(cfg, p).Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	log.Info().Msg("exited")
}
