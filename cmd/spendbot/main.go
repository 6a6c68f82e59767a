package main

import (
	"context"
	"errors"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"spendbot/internal/amqp"
	"spendbot/internal/bot"
	"spendbot/internal/cache"
	"spendbot/internal/cli"
	"spendbot/internal/config"
	"spendbot/internal/log"
	"spendbot/internal/services"
	"spendbot/internal/session"
	"spendbot/internal/telegram"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting spendbot")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateBot)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	ledgerBackend := cli.OpenLedger(ctx, logger, cfg)
	defer ledgerBackend.Close()

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client",
				log.FieldErrorType, log.ErrorTypeConfiguration,
				log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("Publishing confirmed expenses", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}
	api.Debug = cfg.BotDebug

	sessions := session.NewStore(cfg.SessionMaxUsers, cfg.SessionIdleTimeout, logger)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(sessions.Cache())

	expenses := services.NewExpenseService(ledgerBackend.Ledger, publisher, logger)
	machine := bot.NewMachine(
		sessions,
		ledgerBackend.Ledger,
		expenses,
		telegram.NewTransport(api),
		bot.NewScreens(cfg.CurrencyLabel, cfg.Location()),
		logger,
	)
	dispatcher := telegram.NewDispatcher(api, machine, logger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(cfg.PollTimeout / time.Second)
	updates := api.GetUpdatesChan(u)

	logger.Info("Bot started",
		"username", api.Self.UserName,
		log.FieldBackend, ledgerBackend.Type.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := dispatcher.Run(gctx, updates); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("telegram update channel closed")
		}
		return nil
	})
	g.Go(func() error {
		cacheManager.StartCleanup(cfg.SessionSweepInterval)
		<-gctx.Done()
		cacheManager.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		api.StopReceivingUpdates()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped with error", log.FieldError, err)
	}
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Bot stopped")
}
