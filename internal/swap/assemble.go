package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/quote"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/risk"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/txbuilder"
)

func (r SwapRequest) validate() (string, error) {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return "", fmt.Errorf("%w: amount in must be positive", apperr.ErrInvalidParameters)
	}
	if r.AmountOutMin == nil || r.AmountOutMin.Sign() <= 0 {
		return "", fmt.Errorf("%w: minimum amount out must be positive", apperr.ErrInvalidParameters)
	}
	if r.Wallet == "" {
		return "", fmt.Errorf("%w: wallet address is required", apperr.ErrInvalidParameters)
	}
	return pairSide(r.FromAsset, r.ToAsset)
}

func (r SwapRequest) fields() logrus.Fields {
	return logrus.Fields{
		"from":           r.FromAsset,
		"to":             r.ToAsset,
		"amount_in":      r.AmountIn,
		"amount_out_min": r.AmountOutMin,
		"wallet":         r.Wallet,
	}
}

// BuildSwap assembles the unsigned swap transaction. The sender's balance
// of the input asset is checked first, from the same UTxO read that later
// supplies the inputs; nothing else is fetched when it falls short.
func (s *Service) BuildSwap(ctx context.Context, req SwapRequest) (built *BuiltSwap, err error) {
	defer func() { s.metrics.ObserveSwap("build", err) }()

	other, err := req.validate()
	if err != nil {
		return nil, s.fail("build_swap", err, req.fields())
	}
	if s.gate != nil {
		if err := s.gate.Check(ctx, pairName(req.FromAsset, req.ToAsset)); err != nil {
			return nil, s.fail("build_swap", err, req.fields())
		}
	}

	walletUTxOs, err := s.indexer.AddressUTxOs(ctx, req.Wallet)
	if err != nil {
		return nil, s.fail("build_swap", fmt.Errorf("wallet utxos: %w", err), req.fields())
	}
	if have := models.SumUnit(walletUTxOs, req.FromAsset); have.Cmp(req.AmountIn) < 0 {
		err := fmt.Errorf("%w: wallet holds %s of %s, swap needs %s", apperr.ErrInsufficientBalance, have, req.FromAsset, req.AmountIn)
		return nil, s.fail("build_swap", err, req.fields())
	}

	var (
		params *models.ProtocolParams
		tip    *models.ChainTip
		pool   *models.PoolState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.indexer.LatestParameters(gctx)
		if err != nil {
			return fmt.Errorf("protocol parameters: %w", err)
		}
		params = p
		return nil
	})
	g.Go(func() error {
		t, err := s.indexer.LatestBlock(gctx)
		if err != nil {
			return fmt.Errorf("current slot: %w", err)
		}
		tip = t
		return nil
	})
	g.Go(func() error {
		st, err := s.poolSnapshot(gctx, req.FromAsset, req.ToAsset, other)
		if err != nil {
			return fmt.Errorf("pool: %w", err)
		}
		pool = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail("build_swap", err, req.fields())
	}
	trade := tradeFor(req, pool)
	if s.limits != nil {
		if err := s.limits.Check(trade); err != nil {
			return nil, s.fail("build_swap", err, req.fields())
		}
	}

	tx, err := s.assemble(req, walletUTxOs, pool, params, tip)
	if err != nil {
		return nil, s.fail("build_swap", err, req.fields())
	}
	txHex, err := tx.Hex()
	if err != nil {
		return nil, s.fail("build_swap", err, req.fields())
	}

	built = &BuiltSwap{
		ExecutionID: uuid.NewString(),
		TxHash:      tx.Hash(),
		TxHex:       txHex,
		Fee:         tx.Fee,
		TTL:         tx.TTL,
		PoolAddress: pool.Address,
		Pool:        pool,
		Tx:          tx,
		Request:     req,
		BuiltAt:     s.now(),
	}
	s.remember(built, trade.NativeValue)

	s.logger.WithFields(req.fields()).WithFields(logrus.Fields{
		"tx_hash": built.TxHash,
		"fee":     built.Fee,
		"ttl":     built.TTL,
		"pool":    built.PoolAddress,
	}).Info("swap transaction built")
	return built, nil
}

// tradeFor values the swap in lovelace: the input when it is native,
// otherwise the quoted native output.
func tradeFor(req SwapRequest, pool *models.PoolState) risk.Trade {
	fromNative := req.FromAsset == constants.NativeUnit
	reserveIn, reserveOut := pool.Oriented(fromNative)
	t := risk.Trade{
		FromUnit:    req.FromAsset,
		ToUnit:      req.ToAsset,
		AmountIn:    req.AmountIn,
		NativeValue: req.AmountIn,
		ReserveIn:   reserveIn,
	}
	if !fromNative {
		t.NativeValue = req.AmountOutMin
		if out, err := quote.AmountOut(quote.AmountInWithFee(req.AmountIn), reserveIn, reserveOut); err == nil {
			t.NativeValue = out
		}
	}
	return t
}

// assemble lays out the swap: every wallet and pool UTxO as input, the
// wallet's output, the pool's post-swap output, then apollo balances the
// remainder back to the wallet.
func (s *Service) assemble(req SwapRequest, walletUTxOs []models.UTxO, pool *models.PoolState, params *models.ProtocolParams, tip *models.ChainTip) (*txbuilder.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, fmt.Errorf("%w: could not get current slot", apperr.ErrInvalidParameters)
	}
	if pool == nil || pool.Address == "" {
		return nil, fmt.Errorf("%w: pool not resolved", apperr.ErrNotFound)
	}

	b, err := txbuilder.NewBuilder(txbuilder.ConfigFromParams(params))
	if err != nil {
		return nil, err
	}

	poolValue := txbuilder.NewValue(nil)
	owners := []string{req.Wallet, pool.Address}
	for i, group := range [][]models.UTxO{walletUTxOs, pool.UTxOs} {
		for _, u := range group {
			v, err := txbuilder.ValueFromAmounts(u.Amounts)
			if err != nil {
				return nil, fmt.Errorf("utxo %s: %w", u.Ref(), err)
			}
			addr := u.Address
			if addr == "" {
				addr = owners[i]
			}
			in := txbuilder.Input{TxHash: u.TxHash, Index: u.OutputIndex, Address: addr, Amount: v}
			if err := b.AddInput(in); err != nil {
				return nil, fmt.Errorf("utxo %s: %w", u.Ref(), err)
			}
			if i == 1 {
				poolValue = poolValue.Add(v)
			}
		}
	}

	// wallet receives amountOutMin, plus the coin buffer when it is a token
	var received txbuilder.Value
	if req.ToAsset == constants.NativeUnit {
		received = txbuilder.NewValue(req.AmountOutMin)
	} else {
		received = txbuilder.NewValue(big.NewInt(constants.MinOutputLovelace))
		if err := received.AddUnit(req.ToAsset, req.AmountOutMin); err != nil {
			return nil, err
		}
	}
	if err := b.AddOutput(txbuilder.Output{Address: req.Wallet, Amount: received}); err != nil {
		return nil, fmt.Errorf("wallet output: %w", err)
	}

	// pool keeps amountIn and gives up amountOutMin
	paid := txbuilder.NewValue(nil)
	if err := paid.AddUnit(req.FromAsset, req.AmountIn); err != nil {
		return nil, err
	}
	taken := txbuilder.NewValue(nil)
	if err := taken.AddUnit(req.ToAsset, req.AmountOutMin); err != nil {
		return nil, err
	}
	postSwap, err := poolValue.Add(paid).Sub(taken)
	if err != nil {
		return nil, fmt.Errorf("%w: pool cannot pay %s of %s", apperr.ErrInvalidParameters, req.AmountOutMin, req.ToAsset)
	}
	if err := b.AddOutput(txbuilder.Output{Address: pool.Address, Amount: postSwap}); err != nil {
		return nil, fmt.Errorf("pool output: %w", err)
	}

	b.SetTTL(tip.Slot + constants.TTLSlots)

	tx, err := b.Build(req.Wallet)
	if err != nil {
		return nil, fmt.Errorf("balance transaction: %w", err)
	}
	return tx, nil
}
