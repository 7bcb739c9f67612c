// Package confirm follows submitted swaps until the indexer sees them in a
// block.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/blockfrost"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

// Source looks up a transaction; mempool transactions are ErrNotFound.
type Source interface {
	Transaction(ctx context.Context, hash string) (*blockfrost.TxInfo, error)
	LatestBlock(ctx context.Context) (*models.ChainTip, error)
}

const (
	StatePending   = "pending"
	StateConfirmed = "confirmed"
	StateFailed    = "failed" // included, but its scripts did not validate
)

// Status is one observation of a transaction.
type Status struct {
	TxHash        string    `json:"tx_hash"`
	State         string    `json:"state"`
	Block         string    `json:"block,omitempty"`
	BlockHeight   uint64    `json:"block_height,omitempty"`
	Slot          uint64    `json:"slot,omitempty"`
	Confirmations uint64    `json:"confirmations"`
	Fee           uint64    `json:"fee,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

type TrackerConfig struct {
	Source       Source
	PollInterval time.Duration
	// Depth is how many blocks must sit on top before Wait returns.
	Depth  uint64
	Logger *logrus.Logger
}

type Tracker struct {
	source   Source
	interval time.Duration
	depth    uint64
	logger   *logrus.Logger
	now      func() time.Time
}

func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: confirmation source is nil", apperr.ErrInvalidParameters)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Tracker{
		source:   cfg.Source,
		interval: cfg.PollInterval,
		depth:    cfg.Depth,
		logger:   cfg.Logger,
		now:      time.Now,
	}, nil
}

// Status reports where txHash is right now.
func (t *Tracker) Status(ctx context.Context, txHash string) (*Status, error) {
	st := &Status{TxHash: txHash, State: StatePending, CheckedAt: t.now().UTC()}

	tx, err := t.source.Transaction(ctx, txHash)
	if errors.Is(err, apperr.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}

	st.State = StateConfirmed
	if !tx.Valid {
		st.State = StateFailed
	}
	st.Block, st.BlockHeight, st.Slot, st.Fee = tx.Block, tx.BlockHeight, tx.Slot, tx.Fee

	tip, err := t.source.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	if tip.Height >= tx.BlockHeight {
		st.Confirmations = tip.Height - tx.BlockHeight + 1
	}
	return st, nil
}

// Wait polls until txHash has Depth confirmations or ctx ends. Lookup
// errors are logged and retried on the next tick.
func (t *Tracker) Wait(ctx context.Context, txHash string) (*Status, error) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log := t.logger.WithField("tx_hash", txHash)
	log.WithField("depth", t.depth).Info("waiting for confirmation")

	for {
		st, err := t.Status(ctx, txHash)
		switch {
		case err != nil:
			log.WithError(err).Warn("confirmation check failed")
		case st.State == StateFailed:
			return st, fmt.Errorf("%w: transaction %s failed script validation", apperr.ErrInvalidParameters, txHash)
		case st.State == StateConfirmed && st.Confirmations >= max(t.depth, 1):
			log.WithFields(logrus.Fields{
				"block":         st.Block,
				"confirmations": st.Confirmations,
			}).Info("transaction confirmed")
			return st, nil
		default:
			log.WithField("state", st.State).Debug("not confirmed yet")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
