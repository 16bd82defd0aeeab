package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/asterbot/config"
	"github.com/vadiminshakov/asterbot/internal/clients"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/events"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"github.com/vadiminshakov/asterbot/internal/services/advisor"
	"github.com/vadiminshakov/asterbot/internal/services/execution"
	"github.com/vadiminshakov/asterbot/internal/services/market/collector"
	"github.com/vadiminshakov/asterbot/internal/services/reconciler"
	"github.com/vadiminshakov/asterbot/internal/services/risk"
	"github.com/vadiminshakov/asterbot/internal/storage/records"
	"github.com/vadiminshakov/asterbot/internal/storage/riskstate"
	"github.com/vadiminshakov/asterbot/internal/storage/sqlitestore"
)

const eventBuffer = 64

// NewTradingBot wires the gateway, market data, advisor, risk gate, reconciler, record store
// and orchestrator for conf.
func NewTradingBot(ctx context.Context, logger *zap.Logger, conf config.Config, creds domain.Credentials, metrics *monitor.Metrics) (*TradingBot, error) {
	logger = logger.With(zap.String("symbol", conf.Symbol))

	signer, err := clients.NewRequestSigner(creds)
	if err != nil {
		return nil, err
	}
	if !signer.SignerMatchesKey() {
		logger.Warn("signer address does not match the private key, the exchange may reject requests",
			zap.String("key_address", signer.KeyAddress().Hex()),
			zap.String("signer_address", creds.SignerAddress))
	}

	gateway := clients.NewAsterClient(signer,
		clients.WithBaseURL(conf.AsterBaseURL),
		clients.WithMetrics(metrics),
		clients.WithLogger(logger),
	)

	klines, err := newKlineProvider(conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kline provider")
	}

	llm := clients.NewOpenAICompatibleClient(conf.LLMAPIURL, conf.LLMAPIKey, conf.Model)
	if conf.LLMAPIKey == "" {
		logger.Warn("LLM API key is not set, every cycle will fall back to HOLD")
	}

	stateStore, err := riskstate.NewStore(conf.StateDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open risk state store")
	}

	gate, err := risk.NewGate(logger, risk.Limits{
		TradingEnabled:       conf.TradingEnabled,
		Mode:                 conf.Mode(),
		Exchange:             conf.Exchange,
		MinConfidence:        conf.MinConfidence,
		MaxDailyLoss:         conf.MaxDailyLoss,
		MaxPositionCount:     conf.MaxPositionCount,
		EmergencyStopEnabled: conf.EmergencyStopEnabled,
	}, stateStore, metrics, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create risk gate")
	}

	store, err := newRecordStore(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open record store")
	}

	broadcaster := events.NewBroadcaster(eventBuffer)

	orchestrator := execution.New(logger, execution.Config{
		Symbol:       conf.Symbol,
		Exchange:     conf.Exchange,
		PositionSize: conf.PositionSize,
		Leverage:     conf.Leverage,
		FlipPause:    conf.FlipPause,
	}, execution.Deps{
		Snapshots:  collector.NewSnapshotBuilder(logger, klines, conf.Symbol, conf.KlineInterval, conf.KlineLimit),
		Advisor:    advisor.New(logger, llm, advisor.NewPromptBuilder(conf.Symbol, conf.Mode(), conf.MinConfidence)),
		Gate:       gate,
		Reconciler: reconciler.New(logger, gateway),
		Gateway:    gateway,
		Store:      store,
		Events:     broadcaster,
		Metrics:    metrics,
	})

	return &TradingBot{
		Config:   conf,
		logger:   logger,
		cycles:   orchestrator,
		gate:     gate,
		leverage: gateway,
		records:  store,
		events:   broadcaster,
		metrics:  metrics,
		closers:  []func() error{store.Close},
		now:      time.Now,
	}, nil
}

func newKlineProvider(conf config.Config) (collector.KlineProvider, error) {
	switch conf.MarketDataSource {
	case config.SourceAster:
		return collector.NewFuturesKlineProvider(config.SourceAster, conf.AsterBaseURL), nil
	case config.SourceBinance:
		return collector.NewFuturesKlineProvider(config.SourceBinance, collector.BinanceBaseURL), nil
	case config.SourceBybit:
		return collector.NewBybitKlineProvider(clients.NewBybitMarketClient()), nil
	case config.SourceHyperliquid:
		info, err := clients.NewHyperliquidInfo(clients.HyperliquidMainnetURL)
		if err != nil {
			return nil, err
		}
		return collector.NewHyperliquidKlineProvider(info), nil
	default:
		return nil, fmt.Errorf("unsupported market data source: %s", conf.MarketDataSource)
	}
}

func newRecordStore(ctx context.Context, conf config.Config) (records.Store, error) {
	switch conf.StorageBackend {
	case config.StorageWAL:
		return records.NewWALStore(conf.WALDir)
	case config.StorageSQLite:
		return sqlitestore.New(ctx, conf.DatabasePath)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", conf.StorageBackend)
	}
}
