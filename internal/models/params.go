package models

import (
	"fmt"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

// ProtocolParams are the epoch parameters a transaction build needs. They are
// read fresh per build and never cached.
type ProtocolParams struct {
	Epoch            uint64
	MinFeeA          uint64
	MinFeeB          uint64
	PoolDeposit      uint64
	KeyDeposit       uint64
	CoinsPerUTxOByte uint64
	MaxValSize       uint64
	MaxTxSize        uint64
}

func (p *ProtocolParams) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: protocol parameters missing", apperr.ErrInvalidParameters)
	}
	if p.CoinsPerUTxOByte == 0 || p.MaxValSize == 0 {
		return fmt.Errorf("%w: could not get protocol parameters (coins_per_utxo_size / max_val_size)", apperr.ErrInvalidParameters)
	}
	if p.MaxTxSize == 0 {
		return fmt.Errorf("%w: protocol parameters missing max_tx_size", apperr.ErrInvalidParameters)
	}
	return nil
}

// ChainTip is the latest block as seen by the indexer.
type ChainTip struct {
	Hash   string
	Height uint64
	Slot   uint64
	Epoch  uint64
}
