package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brickshare-backend/internal/config"
	"brickshare-backend/internal/interfaces/router"
	"brickshare-backend/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	app, deps, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}
	defer deps.Close()

	if deps.Rdb != nil {
		if err := deps.Rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}

	sched, err := scheduler.New(cfg.SweepSchedule, deps.Sweep, deps.OnSweep)
	if err != nil {
		log.Fatal().Err(err).Msg("Scheduler setup failed")
	}
	sched.Start()

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server running")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Sweep did not finish before shutdown deadline")
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown failed")
	}
}
