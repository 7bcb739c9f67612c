package models

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

var txHashRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Amount is one (unit, quantity) entry of an output.
type Amount struct {
	Unit     string   `json:"unit"`
	Quantity *big.Int `json:"quantity"`
}

// UTxO is an unspent output with validated fields.
type UTxO struct {
	TxHash      string   `json:"tx_hash"`
	OutputIndex uint32   `json:"output_index"`
	Address     string   `json:"address"`
	Amounts     []Amount `json:"amount"`
}

// Ref renders the output reference as hash#index.
func (u UTxO) Ref() string {
	return fmt.Sprintf("%s#%d", u.TxHash, u.OutputIndex)
}

// Quantity sums every entry whose unit equals unit exactly.
func (u UTxO) Quantity(unit string) *big.Int {
	total := new(big.Int)
	for _, a := range u.Amounts {
		if a.Unit == unit {
			total.Add(total, a.Quantity)
		}
	}
	return total
}

// ParseQuantity reads a non-negative integer string without going through
// floating point.
func ParseQuantity(s string) (*big.Int, error) {
	q, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: quantity %q is not an integer", apperr.ErrInvalidParameters, s)
	}
	if q.Sign() < 0 {
		return nil, fmt.Errorf("%w: quantity %q is negative", apperr.ErrInvalidParameters, s)
	}
	return q, nil
}

// Validate rejects outputs with missing required fields.
func (u UTxO) Validate() error {
	if !txHashRe.MatchString(u.TxHash) {
		return fmt.Errorf("utxo: invalid tx hash %q", u.TxHash)
	}
	for i, a := range u.Amounts {
		if a.Unit == "" {
			return fmt.Errorf("utxo %s: amount %d has no unit", u.Ref(), i)
		}
		if a.Quantity == nil || a.Quantity.Sign() < 0 {
			return fmt.Errorf("utxo %s: amount %d has invalid quantity", u.Ref(), i)
		}
	}
	return nil
}

// SumUnit adds up unit across a UTxO set.
func SumUnit(utxos []UTxO, unit string) *big.Int {
	total := new(big.Int)
	for _, u := range utxos {
		total.Add(total, u.Quantity(unit))
	}
	return total
}
