package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/api"
	"github.com/susu3304/warikan/internal/bot"
	"github.com/susu3304/warikan/internal/config"
	"github.com/susu3304/warikan/internal/optimizer"
	"github.com/susu3304/warikan/internal/warikan"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	svc := warikan.NewService(
		warikan.WithLogger(logger.Named("warikan")),
		warikan.WithDefaultStrategy(cfg.Strategy),
		warikan.WithOptimizerOptions(
			optimizer.WithSearchLimit(cfg.SearchLimit),
			optimizer.WithExactMaxGaps(cfg.ExactMaxGaps),
		),
	)

	if cfg.BotEnabled() {
		discordBot, err := bot.New(cfg.DiscordToken, svc, cfg.ReminderInterval, logger.Named("bot"))
		if err != nil {
			logger.Fatal("failed to create discord bot", zap.Error(err))
		}
		if err := discordBot.Start(); err != nil {
			logger.Fatal("failed to start discord bot", zap.Error(err))
		}
		defer discordBot.Stop()
	}

	var apiServer *api.API
	if cfg.WebEnabled {
		apiServer = api.New(cfg, svc, logger.Named("api"))
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server error", zap.Error(err))
			}
		}()
	}

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("api shutdown", zap.Error(err))
		}
	}
}
