// Package app wires the swap service and its optional stores from Config.
// Binaries share it so the API and the CLI run the same pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/ai"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/blockfrost"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/cache"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/config"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/confirm"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/flags"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/metrics"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/pools"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/poolstate"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/prices"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/risk"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/server"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/swap"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/wallet"
)

type App struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Indexer *blockfrost.Client
	Swaps   *swap.Service
	Confirm *confirm.Tracker

	// Optional; nil when not configured or unreachable.
	Recent  *cache.RedisStore
	History *cache.ClickHouseStore
	Halts   *flags.Store
	AI      *ai.Parser
	Prices  *prices.Store

	closers []func() error
}

// New validates cfg and builds the pipeline. Core dependencies fail hard;
// optional stores are skipped with a warning.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a := &App{Config: cfg, Logger: logger, Registry: reg, Metrics: metrics.New(reg)}

	indexer, err := blockfrost.NewClient(blockfrost.ClientConfig{
		BaseURL:           cfg.BlockfrostURL,
		ProjectID:         cfg.BlockfrostProjectID,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.BlockfrostRPS,
		Metrics:           a.Metrics,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	a.Indexer = indexer

	poolIndex, err := pools.NewClient(pools.ClientConfig{
		BaseURL: cfg.PoolIndexURL,
		Timeout: cfg.HTTPTimeout,
		Metrics: a.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	policy, err := poolstate.ParsePolicy(cfg.ReservePolicy)
	if err != nil {
		return nil, err
	}

	bridgeCfg := wallet.BridgeConfig{Submitter: indexer, Logger: logger}
	if conn := wallet.NewHTTPConnector(wallet.HTTPConfig{BaseURL: cfg.WalletBridgeURL, Timeout: cfg.HTTPTimeout, Logger: logger}); conn != nil {
		bridgeCfg.Connector = conn
	}

	a.openOptional(ctx)

	limits := risk.NewManager(risk.Config{
		MaxSwapLovelace:    adaToLovelace(cfg.RiskMaxSwapADA),
		DailyLimitLovelace: adaToLovelace(cfg.RiskDailyLimitADA),
		MaxPriceImpactBps:  cfg.RiskMaxImpactBps,
		AllowedUnits:       cfg.RiskAllowedTokens,
	})

	svcCfg := swap.Config{
		Indexer:         indexer,
		Pools:           pools.NewResolver(poolIndex, cfg.LegacyPoolPageSize, logger),
		Reserves:        poolstate.NewReader(indexer, policy, logger),
		Signer:          wallet.NewBridge(bridgeCfg),
		DefaultSlippage: cfg.DefaultSlippage,
		Metrics:         a.Metrics,
		Logger:          logger,
	}
	if a.Halts != nil {
		svcCfg.Gate = a.Halts
	}
	if limits.Enabled() {
		svcCfg.Limits = limits
	}
	if a.Recent != nil {
		svcCfg.Sinks = append(svcCfg.Sinks, a.Recent)
	}
	if a.History != nil {
		svcCfg.Sinks = append(svcCfg.Sinks, a.History)
	}

	svc, err := swap.NewService(svcCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Swaps = svc

	tracker, err := confirm.NewTracker(confirm.TrackerConfig{
		Source:       indexer,
		PollInterval: cfg.ConfirmPollInterval,
		Depth:        cfg.ConfirmDepth,
		Logger:       logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Confirm = tracker

	logger.WithFields(logrus.Fields{
		"indexer":        cfg.BlockfrostURL,
		"pool_index":     cfg.PoolIndexURL,
		"reserve_policy": policy,
		"wallet_bridge":  cfg.WalletBridgeURL != "",
		"redis":          a.Recent != nil,
		"clickhouse":     a.History != nil,
		"ai":             a.AI != nil,
		"limits":         limits.Enabled(),
	}).Info("swap assistant initialised")
	return a, nil
}

func (a *App) openOptional(ctx context.Context) {
	cfg, logger := a.Config, a.Logger

	if cfg.RedisAddr != "" {
		if client, err := cache.DialRedis(ctx, cfg.RedisAddr, 0); err != nil {
			logger.WithError(err).Warn("redis unavailable, swap events and halts disabled")
		} else {
			a.closers = append(a.closers, client.Close)
			a.attachRedis(client)
		}
	}

	if cfg.ClickHouseAddr != "" {
		store, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		switch {
		case err != nil:
			logger.WithError(err).Warn("clickhouse unavailable, swap history disabled")
		default:
			if err := store.EnsureSchema(ctx); err != nil {
				logger.WithError(err).Warn("clickhouse schema check failed")
			}
			a.History = store
			a.closers = append(a.closers, store.Close)
		}
	}

	if cfg.OpenRouterAPIKey != "" {
		p, err := ai.NewParser(ai.ParserConfig{APIKey: cfg.OpenRouterAPIKey, Model: cfg.AIModel, Logger: logger})
		if err != nil {
			logger.WithError(err).Warn("failed to initialize intent parser")
		} else {
			a.AI = p
		}
	}

	if cfg.PriceDBPath != "" {
		store, err := prices.NewStore(cfg.PriceDBPath)
		if err != nil {
			logger.WithError(err).Warn("price store unavailable")
		} else {
			a.Prices = store
			a.closers = append(a.closers, store.Close)
		}
	}
}

func adaToLovelace(ada int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(ada), big.NewInt(1_000_000))
}

func (a *App) attachRedis(client *redis.Client) {
	store, err := cache.NewRedisStore(client, a.Logger)
	if err != nil {
		a.Logger.WithError(err).Warn("redis store disabled")
		return
	}
	halts, err := flags.NewStore(client)
	if err != nil {
		a.Logger.WithError(err).Warn("halt store disabled")
		return
	}
	a.Recent, a.Halts = store, halts
}

// Handlers exposes the configured pieces to the HTTP layer. Absent stores
// stay nil interfaces so their routes answer 503.
func (a *App) Handlers() *server.Handlers {
	h := &server.Handlers{Swaps: a.Swaps, Confirm: a.Confirm, DevMode: a.Config.DevMode, Logger: a.Logger}
	if a.Recent != nil {
		h.Recent = a.Recent
	}
	if a.History != nil {
		h.History = a.History
	}
	if a.Halts != nil {
		h.Halts = a.Halts
	}
	if a.AI != nil {
		h.AI = a.AI
	}
	if a.Prices != nil {
		h.Prices = a.Prices
	}
	return h
}

// Close releases every opened store, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}
