package swap

import (
	"context"
	"math/big"
	"time"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/blockfrost"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/pools"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/risk"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/txbuilder"
)

// Indexer is the chain data the service reads.
type Indexer interface {
	AddressUTxOs(ctx context.Context, address string) ([]models.UTxO, error)
	Asset(ctx context.Context, unit string) (*blockfrost.AssetInfo, error)
	LatestBlock(ctx context.Context) (*models.ChainTip, error)
	LatestParameters(ctx context.Context) (*models.ProtocolParams, error)
}

type PoolFinder interface {
	FindPool(ctx context.Context, from, to string) (*pools.Pool, error)
}

type ReserveReader interface {
	GetReserves(ctx context.Context, poolAddress, otherUnit string) (*models.PoolState, error)
}

// Signer gets a wallet signature and submits signed bytes. Ready reports
// whether a wallet is there to sign at all.
type Signer interface {
	Ready(ctx context.Context) error
	Sign(ctx context.Context, unsignedTx []byte) ([]byte, error)
	Submit(ctx context.Context, signedTx []byte) (string, error)
}

// Gate can refuse new swaps on a pair, such as an operator trading halt.
type Gate interface {
	Check(ctx context.Context, pair string) error
}

// Limiter enforces trade limits on a built swap and counts submitted ones.
type Limiter interface {
	Check(t risk.Trade) error
	Record(lovelace *big.Int)
}

// EventSink receives swaps after submission. Sinks are best effort.
type EventSink interface {
	RecordSwap(ctx context.Context, ev *models.SwapEvent) error
}

// SwapRequest is a swap with amounts already in smallest units.
type SwapRequest struct {
	FromAsset    string
	ToAsset      string
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Wallet       string
}

// BuiltSwap is an unsigned transaction ready for a wallet.
type BuiltSwap struct {
	ExecutionID string                 `json:"execution_id"`
	TxHash      string                 `json:"tx_hash"`
	TxHex       string                 `json:"tx_cbor"`
	Fee         uint64                 `json:"fee"`
	TTL         uint64                 `json:"ttl"`
	PoolAddress string                 `json:"pool_address"`
	Pool        *models.PoolState      `json:"-"`
	Tx          *txbuilder.Transaction `json:"-"`
	Request     SwapRequest            `json:"-"`
	BuiltAt     time.Time              `json:"built_at"`
}
