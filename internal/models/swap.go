package models

import (
	"math/big"
	"time"
)

// PoolState is one snapshot of a pool address. Both reserves come from the
// same UTxO read and are never mixed across reads.
type PoolState struct {
	Address       string
	OtherUnit     string // unit of the non-native reserve, last seen in the scan
	ReserveNative *big.Int
	ReserveOther  *big.Int
	UTxOs         []UTxO
	FetchedAt     time.Time
}

// Oriented returns (reserveIn, reserveOut) for a swap whose input is native
// when fromNative is true.
func (p *PoolState) Oriented(fromNative bool) (reserveIn, reserveOut *big.Int) {
	if fromNative {
		return p.ReserveNative, p.ReserveOther
	}
	return p.ReserveOther, p.ReserveNative
}

// Quote is the output of the constant-product formula for one trade.
type Quote struct {
	AmountIn         *big.Int `json:"amount_in"`
	AmountInWithFee  *big.Int `json:"amount_in_with_fee"`
	AmountOut        *big.Int `json:"amount_out"`
	AmountOutMin     *big.Int `json:"amount_out_min"`
	ReserveIn        *big.Int `json:"reserve_in"`
	ReserveOut       *big.Int `json:"reserve_out"`
	Slippage         float64  `json:"slippage"`
	SlippagePerMille int64    `json:"slippage_per_mille"`
}

// SwapQuote ties a quote to the pool it was computed against.
type SwapQuote struct {
	Quote
	FromAsset   string    `json:"from_asset"`
	ToAsset     string    `json:"to_asset"`
	PoolAddress string    `json:"pool_address"`
	QuotedAt    time.Time `json:"quoted_at"`
}

// SwapEvent is published after a swap transaction has been accepted by the
// indexer.
type SwapEvent struct {
	ExecutionID  string    `json:"execution_id"`
	TxHash       string    `json:"tx_hash"`
	Timestamp    time.Time `json:"timestamp"`
	Pair         string    `json:"pair"`
	FromAsset    string    `json:"from_asset"`
	ToAsset      string    `json:"to_asset"`
	AmountIn     string    `json:"amount_in"`
	AmountOutMin string    `json:"amount_out_min"`
	Fee          uint64    `json:"fee"`
	Pool         string    `json:"pool"`
	Wallet       string    `json:"wallet"`
	Dex          string    `json:"dex"`
}
