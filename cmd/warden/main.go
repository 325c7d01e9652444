package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"warden/internal/automod"
	"warden/internal/bot"
	"warden/internal/cache"
	"warden/internal/config"
	"warden/internal/mod"
	"warden/internal/settings"
	"warden/internal/storage"
	"warden/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(context.Background()); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	guildCache := cache.New(logger)
	resolver := settings.NewResolver(store, logger)

	botSvc, err := bot.New(cfg, logger, store, guildCache, resolver)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	services := mod.NewServices(store, resolver, guildCache, botSvc.Enforcer(), cfg.Embeds, logger)
	chain := automod.NewChain(services, resolver, botSvc.Enforcer(), cfg.DefaultWordList, logger)
	botSvc.Attach(services, chain)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	runner := sweeper.NewRunner(store, resolver, guildCache, botSvc.Enforcer(), cfg.Sweeper, logger)
	runner.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	runner.Stop()
	botSvc.Close()
}
