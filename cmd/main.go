package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/gold_ledger_bot/config"
	"github.com/KotFed0t/gold_ledger_bot/data"
	"github.com/KotFed0t/gold_ledger_bot/data/cache"
	"github.com/KotFed0t/gold_ledger_bot/data/ledgerstore"
	"github.com/KotFed0t/gold_ledger_bot/data/repository/postgres"
	"github.com/KotFed0t/gold_ledger_bot/data/session"
	"github.com/KotFed0t/gold_ledger_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/gold_ledger_bot/internal/externalApi/goldPriceApi"
	"github.com/KotFed0t/gold_ledger_bot/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/gold_ledger_bot/internal/scheduler"
	"github.com/KotFed0t/gold_ledger_bot/internal/service/goldLedgerService"
	"github.com/KotFed0t/gold_ledger_bot/internal/tgbot"
	"github.com/KotFed0t/gold_ledger_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	ledgerStore := ledgerstore.NewStore()

	goldPriceApiClient := goldPriceApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	goldLedgerSrv := goldLedgerService.New(cfg, ledgerStore, pgRepo, redisCache, goldPriceApiClient, reportGenerator, googleCloudStorage)

	sched := scheduler.New()
	sched.NewIntervalJob("fill gold price cache", goldLedgerSrv.FillGoldPriceCache, cfg.Jobs.FillGoldPriceCacheInterval, true)
	sched.NewCrontabJob("ledger backup", goldLedgerSrv.BackupLedgers, cfg.Jobs.LedgerBackupCrontab, false)
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(goldLedgerSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
