package swap

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/txbuilder"
)

// pendingTTL bounds how long a built swap is remembered for a later submit;
// it matches the transaction validity window.
const pendingTTL = constants.TTLSlots * time.Second

func (s *Service) remember(b *BuiltSwap, native *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for hash, p := range s.pending {
		if now.Sub(p.builtAt) > pendingTTL {
			delete(s.pending, hash)
		}
	}
	s.pending[b.TxHash] = pendingSwap{event: eventFor(b), native: native, builtAt: b.BuiltAt}
}

func (s *Service) takePending(txHash string) (pendingSwap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[txHash]
	if ok {
		delete(s.pending, txHash)
	}
	return p, ok
}

func eventFor(b *BuiltSwap) models.SwapEvent {
	return models.SwapEvent{
		ExecutionID:  b.ExecutionID,
		TxHash:       b.TxHash,
		Pair:         pairName(b.Request.FromAsset, b.Request.ToAsset),
		FromAsset:    b.Request.FromAsset,
		ToAsset:      b.Request.ToAsset,
		AmountIn:     b.Request.AmountIn.String(),
		AmountOutMin: b.Request.AmountOutMin.String(),
		Fee:          b.Fee,
		Pool:         b.PoolAddress,
		Wallet:       b.Request.Wallet,
		Dex:          constants.DexName,
	}
}

// pairName labels a swap direction with tickers, e.g. "ADA-MIN".
func pairName(from, to string) string {
	return tickerOf(from) + "-" + tickerOf(to)
}

func tickerOf(unit string) string {
	if unit == constants.NativeUnit {
		return constants.NativeTicker
	}
	for t, u := range constants.TokenUnits {
		if u == unit {
			return t
		}
	}
	if len(unit) > 12 {
		return unit[:12]
	}
	return unit
}

// SignAndSubmit has the wallet sign unsignedTx and submits it.
func (s *Service) SignAndSubmit(ctx context.Context, unsignedTx []byte) (string, error) {
	if s.signer == nil {
		return "", s.fail("sign_and_submit", fmt.Errorf("%w: no wallet bridge configured", apperr.ErrWalletUnavailable), nil)
	}

	signed, err := s.signer.Sign(ctx, unsignedTx)
	s.metrics.ObserveSwap("sign", err)
	if err != nil {
		return "", s.fail("sign_and_submit", err, nil)
	}
	return s.submit(ctx, signed)
}

// SubmitWitnessed merges a witness set produced by a browser wallet into a
// previously built transaction and submits it.
func (s *Service) SubmitWitnessed(ctx context.Context, unsignedHex, witnessHex string) (string, error) {
	unsigned, err := hex.DecodeString(unsignedHex)
	if err != nil {
		return "", s.fail("submit_witnessed", fmt.Errorf("%w: transaction is not hex", apperr.ErrInvalidParameters), nil)
	}
	witness, err := hex.DecodeString(witnessHex)
	if err != nil {
		return "", s.fail("submit_witnessed", fmt.Errorf("%w: witness set is not hex", apperr.ErrInvalidParameters), nil)
	}
	signed, err := txbuilder.AssembleSigned(unsigned, witness)
	if err != nil {
		return "", s.fail("submit_witnessed", err, nil)
	}
	return s.submit(ctx, signed)
}

func (s *Service) submit(ctx context.Context, signed []byte) (string, error) {
	if s.signer == nil {
		return "", s.fail("submit", fmt.Errorf("%w: no submitter configured", apperr.ErrUpstreamUnavailable), nil)
	}
	hash, err := s.signer.Submit(ctx, signed)
	s.metrics.ObserveSwap("submit", err)
	if err != nil {
		return "", s.fail("submit", err, nil)
	}

	if p, ok := s.takePending(hash); ok {
		if s.limits != nil {
			s.limits.Record(p.native)
		}
		ev := p.event
		ev.Timestamp = s.now()
		s.publish(ctx, &ev)
	}
	return hash, nil
}

// SwapTokens builds, signs and submits a swap in one call and returns the
// transaction hash. Any failure means the swap did not happen.
func (s *Service) SwapTokens(ctx context.Context, fromAsset, toAsset string, amountIn, amountOutMin *big.Int, walletAddress string) (string, error) {
	// no wallet, no network work
	if s.signer == nil {
		return "", s.fail("swap_tokens", fmt.Errorf("%w: no wallet bridge configured", apperr.ErrWalletUnavailable), nil)
	}
	if err := s.signer.Ready(ctx); err != nil {
		return "", s.fail("swap_tokens", err, nil)
	}

	built, err := s.BuildSwap(ctx, SwapRequest{
		FromAsset:    fromAsset,
		ToAsset:      toAsset,
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Wallet:       walletAddress,
	})
	if err != nil {
		return "", err
	}

	raw, err := built.Tx.Bytes()
	if err != nil {
		return "", s.fail("swap_tokens", err, nil)
	}
	hash, err := s.SignAndSubmit(ctx, raw)
	if err != nil {
		return "", err
	}
	if hash != built.TxHash {
		s.logger.WithFields(logrus.Fields{"built": built.TxHash, "submitted": hash}).Warn("indexer returned a different transaction hash")
	}
	return hash, nil
}

// publish fans the event out to every sink. Sink failures are logged only.
func (s *Service) publish(ctx context.Context, ev *models.SwapEvent) {
	for _, sink := range s.sinks {
		if err := sink.RecordSwap(ctx, ev); err != nil {
			s.logger.WithError(err).WithField("tx_hash", ev.TxHash).Warn("failed to record swap event")
		}
	}
}
