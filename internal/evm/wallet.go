// Package evm is the assistant's EVM-side wallet: a key loaded from the
// environment, its address and balance, message signing and receipt waits.
package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

// Client is the subset of the Ethereum RPC the wallet uses.
type Client interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Dial opens an RPC client for endpoint.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: evm endpoint required", apperr.ErrInvalidParameters)
	}
	c, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: dial evm rpc: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return c, nil
}

// LoadKey parses a hex secp256k1 key with or without a 0x prefix.
func LoadKey(material string) (*ecdsa.PrivateKey, error) {
	material = strings.TrimPrefix(strings.TrimSpace(material), "0x")
	if material == "" {
		return nil, fmt.Errorf("%w: ASSISTANT_PRIVATE_KEY not set", apperr.ErrWalletUnavailable)
	}
	if _, err := hex.DecodeString(material); err != nil {
		return nil, fmt.Errorf("%w: private key is not hex", apperr.ErrInvalidParameters)
	}
	key, err := gethcrypto.HexToECDSA(material)
	if err != nil {
		// the key material itself must not reach the error text
		return nil, fmt.Errorf("%w: invalid private key", apperr.ErrInvalidParameters)
	}
	return key, nil
}

type WalletConfig struct {
	PrivateKey   string
	Client       Client
	PollInterval time.Duration
	Logger       *logrus.Logger
}

type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	client  Client
	poll    time.Duration
	logger  *logrus.Logger
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: evm client is nil", apperr.ErrInvalidParameters)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	key, err := LoadKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		key:     key,
		address: gethcrypto.PubkeyToAddress(key.PublicKey),
		client:  cfg.Client,
		poll:    cfg.PollInterval,
		logger:  cfg.Logger,
	}
	w.logger.WithField("address", w.address.Hex()).Info("evm wallet loaded")
	return w, nil
}

func (w *Wallet) Address() common.Address { return w.address }

// Balance returns the wallet's native balance in wei at the latest block.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	bal, err := w.client.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: evm balance: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return bal, nil
}

// SignMessage produces an EIP-191 personal_sign signature with V in {27, 28}.
func (w *Wallet) SignMessage(msg []byte) ([]byte, error) {
	sig, err := gethcrypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[gethcrypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced a SignMessage signature.
func RecoverSigner(msg, sig []byte) (common.Address, error) {
	if len(sig) != gethcrypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes", apperr.ErrInvalidParameters, gethcrypto.SignatureLength)
	}
	s := make([]byte, len(sig))
	copy(s, sig)
	if s[gethcrypto.RecoveryIDOffset] >= 27 {
		s[gethcrypto.RecoveryIDOffset] -= 27
	}
	pub, err := gethcrypto.SigToPub(accounts.TextHash(msg), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recover signer: %v", apperr.ErrInvalidParameters, err)
	}
	return gethcrypto.PubkeyToAddress(*pub), nil
}

// WaitReceipt polls until txHash is mined or ctx ends. A mined but reverted
// transaction is an error.
func (w *Wallet) WaitReceipt(ctx context.Context, txHash string) (*gethtypes.Receipt, error) {
	if !isHash(txHash) {
		return nil, fmt.Errorf("%w: invalid transaction hash", apperr.ErrInvalidParameters)
	}
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	logger := w.logger.WithField("tx_hash", hash.Hex())
	for {
		receipt, err := w.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != gethtypes.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			logger.WithField("block", receipt.BlockNumber).Info("transaction mined")
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("%w: fetch receipt: %v", apperr.ErrUpstreamUnavailable, err)
		}

		logger.Debug("transaction not yet mined")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
