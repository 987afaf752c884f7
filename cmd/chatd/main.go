// Command chatd runs the line-oriented TCP chat server.
//
// @title        go-chat-tcp admin API
// @version      1.0
// @description  Health, statistics and metrics of the TCP chat server.
// @BasePath     /
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-tcp/internal/app"
	"github.com/tbourn/go-chat-tcp/internal/config"
	"github.com/tbourn/go-chat-tcp/internal/sysutil"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	logger, closer := sysutil.NewLogger(cfg.Log)
	defer closer.Close()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn().Err(envErr).Msg("failed to load .env")
	}
	gin.SetMode(cfg.Admin.GinMode)

	a, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		closer.Close()
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		closer.Close()
		os.Exit(1)
	}
}
