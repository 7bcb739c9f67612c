package constants

import "time"

// Native unit
const (
	NativeUnit     = "lovelace"
	NativeTicker   = "ADA"
	NativeDecimals = 6
	PolicyIDLength = 56 // hex characters
)

// Swap math. The fee is fixed at 30 bps regardless of the pool's real tier.
const (
	FeeNumerator   = 997
	FeeDenominator = 1000
	SlippageScale  = 1000 // slippage is quantized to per-mille
)

// Transaction assembly
const (
	// MinOutputLovelace rides along with any output that carries a native token.
	MinOutputLovelace = 2_000_000
	// TTLSlots approximates two hours with ~1s slots.
	TTLSlots = 7200
	// UTxOEntryOverhead is the constant added to an output's size for min-UTxO.
	UTxOEntryOverhead = 160
)

// Pool discovery
const (
	DefaultLegacyPoolPageSize = 100
	DexName                   = "Minswap"
)

// Redis keys and channels
const (
	RedisKeyRecentSwaps = "swaps:recent"
	PubSubChannelSwaps  = "swaps:live"
	PubSubPairPrefix    = "swaps:pair:"
	PubSubDexPrefix     = "swaps:dex:"
	MaxRecentSwaps      = 100
	RedisHaltPrefix     = "halts:"
	RedisHaltIndex      = "halts:index"
)

// Timeouts
const (
	DefaultHTTPTimeout = 30 * time.Second
)

// TokenUnits maps upper-case tickers to their policy id + hex asset name.
var TokenUnits = map[string]string{
	"MIN":   "29d222ce763455e3d7a09a665ce554f00ac89d2e99a1a83d267170c6" + "4d494e",
	"SNEK":  "279c909f348e533da5808898f87f9a14bb2c3dfbbacccd631d927a3f" + "534e454b",
	"HOSKY": "a0028f350aaabe0545fdcb56b039bfb08e4bb4d8c4d7c3c7d481c235" + "484f534b59",
	"IUSD":  "f66d78b4a3cb3d37afa0ec36461e51ecbde00f26c8f0a68f94b69880" + "69555344",
}
