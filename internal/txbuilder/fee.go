package txbuilder

import (
	"math/big"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

// vkeyWitnessSize is one [vkey, signature] pair inside the witness set.
const vkeyWitnessSize = 101

// LinearFee is min_fee_a * size + min_fee_b.
type LinearFee struct {
	Coefficient uint64
	Constant    uint64
}

func (f LinearFee) MinFee(txSize int) uint64 {
	return f.Coefficient*uint64(txSize) + f.Constant
}

// Config carries the protocol limits a build is checked against.
type Config struct {
	Fee              LinearFee
	PoolDeposit      uint64
	KeyDeposit       uint64
	CoinsPerUTxOByte uint64
	MaxValueSize     uint64
	MaxTxSize        uint64
	// Witnesses is how many key witnesses the fee estimate leaves room for.
	Witnesses int
}

// ConfigFromParams takes the builder limits from the current epoch's
// protocol parameters.
func ConfigFromParams(p *models.ProtocolParams) Config {
	return Config{
		Fee:              LinearFee{Coefficient: p.MinFeeA, Constant: p.MinFeeB},
		PoolDeposit:      p.PoolDeposit,
		KeyDeposit:       p.KeyDeposit,
		CoinsPerUTxOByte: p.CoinsPerUTxOByte,
		MaxValueSize:     p.MaxValSize,
		MaxTxSize:        p.MaxTxSize,
		Witnesses:        1,
	}
}

// MinCoin is the lovelace an output of the given serialized size must hold.
func (c Config) MinCoin(outputSize int) *big.Int {
	n := new(big.Int).SetUint64(uint64(constants.UTxOEntryOverhead + outputSize))
	return n.Mul(n, new(big.Int).SetUint64(c.CoinsPerUTxOByte))
}

// witnessAllowance is the size the wallet's witnesses will add once signed.
func (c Config) witnessAllowance() int {
	return 3 + vkeyWitnessSize*c.Witnesses
}

// uintSize is the CBOR length of an unsigned integer.
func uintSize(n uint64) int {
	switch {
	case n < 24:
		return 1
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	}
	return 9
}

func bytesSize(n int) int { return uintSize(uint64(n)) + n }

// valueSize is the CBOR length of v: a bare coin, or [coin, multiasset].
func valueSize(v Value) int {
	coin := v.coin()
	coinLen := 9
	if coin.IsUint64() {
		coinLen = uintSize(coin.Uint64())
	}
	if !v.HasAssets() {
		return coinLen
	}

	size := 1 + coinLen + uintSize(uint64(len(v.Assets)))
	for _, names := range v.Assets {
		size += bytesSize(constants.PolicyIDLength/2) + uintSize(uint64(len(names)))
		for name, q := range names {
			size += bytesSize(len(name) / 2)
			if q.IsUint64() {
				size += uintSize(q.Uint64())
			} else {
				size += 9
			}
		}
	}
	return size
}

// outputSize estimates the serialized length of a legacy [address, value]
// output.
func outputSize(addrLen int, v Value) int {
	return 1 + bytesSize(addrLen) + valueSize(v)
}
