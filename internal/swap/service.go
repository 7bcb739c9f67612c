// Package swap is the assistant's public surface: balances, token metadata,
// quotes, ticker resolution and swap execution. It orchestrates the indexer,
// pool discovery, the quoter, the transaction builder and the wallet bridge.
package swap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/metrics"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/quote"
)

// Config wires the service to its collaborators.
type Config struct {
	Indexer         Indexer
	Pools           PoolFinder
	Reserves        ReserveReader
	Signer          Signer  // nil disables signing
	Gate            Gate    // optional
	Limits          Limiter // optional
	Sinks           []EventSink
	DefaultSlippage float64
	Metrics         *metrics.Metrics
	Logger          *logrus.Logger
}

// Service answers balance, metadata and quote queries and executes swaps.
type Service struct {
	indexer         Indexer
	pools           PoolFinder
	reserves        ReserveReader
	signer          Signer
	gate            Gate
	limits          Limiter
	sinks           []EventSink
	defaultSlippage float64
	metrics         *metrics.Metrics
	logger          *logrus.Logger
	now             func() time.Time

	mu      sync.Mutex
	pending map[string]pendingSwap
}

type pendingSwap struct {
	event   models.SwapEvent
	native  *big.Int // lovelace side, counted against limits on submit
	builtAt time.Time
}

// NewService checks that the required collaborators are present.
func NewService(cfg Config) (*Service, error) {
	if cfg.Indexer == nil || cfg.Pools == nil || cfg.Reserves == nil {
		return nil, fmt.Errorf("%w: swap service needs an indexer, pool finder and reserve reader", apperr.ErrInvalidParameters)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if _, err := quote.SlippagePerMille(cfg.DefaultSlippage); err != nil {
		return nil, fmt.Errorf("default slippage: %w", err)
	}
	return &Service{
		indexer:         cfg.Indexer,
		pools:           cfg.Pools,
		reserves:        cfg.Reserves,
		signer:          cfg.Signer,
		gate:            cfg.Gate,
		limits:          cfg.Limits,
		sinks:           cfg.Sinks,
		defaultSlippage: cfg.DefaultSlippage,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		now:             time.Now,
		pending:         map[string]pendingSwap{},
	}, nil
}

func (s *Service) DefaultSlippage() float64 { return s.defaultSlippage }

// fail logs a failed public operation once and hands the error back as is.
func (s *Service) fail(op string, err error, fields logrus.Fields) error {
	s.logger.WithError(err).WithFields(fields).WithField("op", op).Error("swap operation failed")
	return err
}

// CheckBalance sums assetUnit across every UTxO at address.
func (s *Service) CheckBalance(ctx context.Context, address, assetUnit string) (*big.Int, error) {
	fields := logrus.Fields{"address": address, "unit": assetUnit}
	if strings.TrimSpace(address) == "" || strings.TrimSpace(assetUnit) == "" {
		return nil, s.fail("check_balance", fmt.Errorf("%w: address and asset are required", apperr.ErrInvalidParameters), fields)
	}

	utxos, err := s.indexer.AddressUTxOs(ctx, address)
	if err != nil {
		return nil, s.fail("check_balance", err, fields)
	}
	return models.SumUnit(utxos, assetUnit), nil
}

// GetTokenDecimal returns the registry decimals for assetUnit. The native
// unit is always 6; tokens without registry decimals report 0.
func (s *Service) GetTokenDecimal(ctx context.Context, assetUnit string) (int32, error) {
	if assetUnit == constants.NativeUnit {
		return constants.NativeDecimals, nil
	}
	info, err := s.indexer.Asset(ctx, assetUnit)
	if err != nil {
		return 0, s.fail("token_decimal", err, logrus.Fields{"unit": assetUnit})
	}
	if info.Decimals == nil {
		return 0, nil
	}
	if *info.Decimals < 0 || *info.Decimals > 255 {
		return 0, s.fail("token_decimal", fmt.Errorf("%w: asset %s declares %d decimals", apperr.ErrUpstreamUnavailable, assetUnit, *info.Decimals), logrus.Fields{"unit": assetUnit})
	}
	return int32(*info.Decimals), nil
}

// ResolveTokenAddress maps a ticker to its asset unit. Input that already
// parses as a unit is returned unchanged.
func (s *Service) ResolveTokenAddress(ticker string) (string, error) {
	t := strings.TrimSpace(ticker)
	switch {
	case t == "":
		return "", fmt.Errorf("%w: empty ticker", apperr.ErrInvalidParameters)
	case strings.EqualFold(t, constants.NativeTicker), t == constants.NativeUnit:
		return constants.NativeUnit, nil
	}
	if unit, ok := constants.TokenUnits[strings.ToUpper(t)]; ok {
		return unit, nil
	}
	if len(t) >= constants.PolicyIDLength {
		if a, err := models.ParseAsset(t); err == nil {
			return a.Unit(), nil
		}
	}
	return "", fmt.Errorf("%w: unknown token %q, provide its policy id and hex asset name", apperr.ErrNotFound, ticker)
}

// pairSide checks that exactly one side is native and returns the other.
func pairSide(from, to string) (string, error) {
	if from == to {
		return "", fmt.Errorf("%w: cannot swap %s for itself", apperr.ErrInvalidParameters, from)
	}
	fromNative, toNative := from == constants.NativeUnit, to == constants.NativeUnit
	if fromNative == toNative {
		return "", fmt.Errorf("%w: one side of the pair must be %s", apperr.ErrInvalidParameters, constants.NativeUnit)
	}
	for _, u := range []string{from, to} {
		if _, err := models.ParseAsset(u); err != nil {
			return "", err
		}
	}
	if fromNative {
		return to, nil
	}
	return from, nil
}

// poolSnapshot resolves the pool and reads both reserves from one snapshot.
func (s *Service) poolSnapshot(ctx context.Context, from, to, otherUnit string) (*models.PoolState, error) {
	p, err := s.pools.FindPool(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return s.reserves.GetReserves(ctx, p.Address, otherUnit)
}

// GetAmountOut quotes amountIn of fromAsset against the pair's pool.
// Reserves are oriented by direction: selling the native unit uses the
// native reserve as reserveIn.
func (s *Service) GetAmountOut(ctx context.Context, fromAsset, toAsset string, amountIn *big.Int, slippage float64) (q *models.SwapQuote, err error) {
	fields := logrus.Fields{"from": fromAsset, "to": toAsset, "amount_in": amountIn, "slippage": slippage}
	defer func() { s.metrics.ObserveQuote(err) }()

	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, s.fail("amount_out", fmt.Errorf("%w: amount must be a non-negative integer", apperr.ErrInvalidParameters), fields)
	}
	if _, err := quote.SlippagePerMille(slippage); err != nil {
		return nil, s.fail("amount_out", err, fields)
	}
	other, err := pairSide(fromAsset, toAsset)
	if err != nil {
		return nil, s.fail("amount_out", err, fields)
	}

	st, err := s.poolSnapshot(ctx, fromAsset, toAsset, other)
	if err != nil {
		return nil, s.fail("amount_out", err, fields)
	}

	reserveIn, reserveOut := st.Oriented(fromAsset == constants.NativeUnit)
	res, err := quote.Compute(amountIn, reserveIn, reserveOut, slippage)
	if err != nil {
		return nil, s.fail("amount_out", err, fields)
	}

	return &models.SwapQuote{
		Quote:       *res,
		FromAsset:   fromAsset,
		ToAsset:     toAsset,
		PoolAddress: st.Address,
		QuotedAt:    s.now(),
	}, nil
}
