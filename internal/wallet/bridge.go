// Package wallet bridges unsigned transactions to an external CIP-30 wallet
// for signing and hands the result to the indexer for submission. Keys never
// enter this process.
package wallet

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/txbuilder"
)

// API is an enabled wallet session.
type API interface {
	// SignTx returns the hex witness set for txHex. With partialSign the
	// wallet signs only the inputs it controls.
	SignTx(ctx context.Context, txHex string, partialSign bool) (string, error)
}

// Connector detects and enables a wallet.
type Connector interface {
	Available(ctx context.Context) bool
	Enable(ctx context.Context) (API, error)
}

// Submitter posts signed transaction bytes and returns the tx hash.
type Submitter interface {
	SubmitTx(ctx context.Context, signedTx []byte) (string, error)
}

// Bridge hands transactions to a CIP-30 wallet and submits what it signs.
type Bridge struct {
	connector   Connector
	submitter   Submitter
	partialSign bool
	logger      *logrus.Logger
}

// BridgeConfig holds the wallet connector and the submitter.
type BridgeConfig struct {
	Connector Connector // nil means no wallet is present
	Submitter Submitter
	// FullSign asks the wallet to sign every input. Swaps spend pool
	// outputs the wallet cannot sign, so the default is a partial signature.
	FullSign bool
	Logger   *logrus.Logger
}

// NewBridge returns a bridge; a nil connector leaves it unable to sign.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Bridge{
		connector:   cfg.Connector,
		submitter:   cfg.Submitter,
		partialSign: !cfg.FullSign,
		logger:      cfg.Logger,
	}
}

// Ready fails when no wallet connector is configured or the wallet is not
// detected.
func (b *Bridge) Ready(ctx context.Context) error {
	if b.connector == nil {
		return fmt.Errorf("%w: no wallet connector configured", apperr.ErrWalletUnavailable)
	}
	if !b.connector.Available(ctx) {
		return fmt.Errorf("%w: wallet not detected", apperr.ErrWalletUnavailable)
	}
	return nil
}

// Sign has the wallet witness unsignedTx and returns the full signed
// transaction.
func (b *Bridge) Sign(ctx context.Context, unsignedTx []byte) ([]byte, error) {
	if err := b.Ready(ctx); err != nil {
		return nil, err
	}

	api, err := b.connector.Enable(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enable: %v", apperr.ErrWalletUnavailable, err)
	}

	witnessHex, err := api.SignTx(ctx, hex.EncodeToString(unsignedTx), b.partialSign)
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", apperr.ErrWalletUnavailable, err)
	}
	witness, err := hex.DecodeString(witnessHex)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet returned non-hex witness set", apperr.ErrWalletUnavailable)
	}

	return txbuilder.AssembleSigned(unsignedTx, witness)
}

// Submit sends already signed bytes.
func (b *Bridge) Submit(ctx context.Context, signedTx []byte) (string, error) {
	if b.submitter == nil {
		return "", fmt.Errorf("%w: no submitter configured", apperr.ErrUpstreamUnavailable)
	}
	hash, err := b.submitter.SubmitTx(ctx, signedTx)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	b.logger.WithField("tx_hash", hash).Info("transaction submitted")
	return hash, nil
}

// SignAndSubmit signs through the wallet then submits. Nothing is retried and
// confirmation is not awaited.
func (b *Bridge) SignAndSubmit(ctx context.Context, unsignedTx []byte) (string, error) {
	signed, err := b.Sign(ctx, unsignedTx)
	if err != nil {
		return "", err
	}
	return b.Submit(ctx, signed)
}
