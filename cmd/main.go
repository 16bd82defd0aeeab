// Command asterbot runs the AI-signal perpetual futures trading bot on Aster.
//
// Usage:
//
//	asterbot --config config.yaml
//	asterbot --setup            (interactive wizard, writes config.gen.yaml)
//	asterbot --config prod.yaml --yes
//
// Required environment variables:
//
//	ASTER_USER_ADDRESS, ASTER_SIGNER_ADDRESS, ASTER_PRIVATE_KEY
//	DEEPSEEK_API_KEY (or LLM_API_KEY)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/asterbot/config"
	"github.com/vadiminshakov/asterbot/internal"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/events"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"github.com/vadiminshakov/asterbot/internal/setup"
	"github.com/vadiminshakov/asterbot/internal/web"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		if err := setup.RunTUI(setup.DefaultOutput); err != nil {
			log.Fatal(err)
		}
		flags.ConfigPath = setup.DefaultOutput
	}

	conf, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(conf.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	creds, err := config.LoadCredentials()
	if err != nil {
		logger.Fatal("failed to load credentials", zap.Error(err))
	}

	if err := run(logger, conf, creds, flags.AssumeYes); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger, conf config.Config, creds domain.Credentials, assumeYes bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitor.New()

	bot, err := internal.NewTradingBot(ctx, logger, conf, creds, metrics)
	if err != nil {
		return errors.Wrap(err, "failed to create trading bot")
	}
	defer func() {
		if err := bot.Close(); err != nil {
			logger.Error("failed to close trading bot", zap.Error(err))
		}
	}()

	if conf.Mode() == domain.TradingModeProduction && !assumeYes {
		ok, err := setup.ConfirmProduction(bot.Status(), conf.Symbol)
		if err != nil {
			return errors.Wrap(err, "production confirmation")
		}
		if !ok {
			logger.Info("production start declined")
			return nil
		}
	}

	if err := bot.ApplyLeverage(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bot.Run(ctx)
	})

	if conf.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, conf.MetricsAddr, logger)
		})
	}

	if conf.WebAddr != "" {
		server := web.NewServer(conf.WebAddr, logger, bot.Records(), bot, bot.Events(), metrics)
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	if conf.WebhookURL != "" {
		notifier := events.NewWebhookNotifier(logger, conf.WebhookURL)
		g.Go(func() error {
			return notifier.Run(ctx, bot.Events())
		})
	}

	logger.Info("started",
		zap.String("symbol", conf.Symbol),
		zap.String("mode", string(conf.Mode())),
		zap.String("storage", conf.StorageBackend),
		zap.String("market_data", conf.MarketDataSource))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	return cfg.Build()
}
