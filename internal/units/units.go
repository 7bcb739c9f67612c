// Package units converts between smallest on-chain units and display units.
//
// Conversions are exact decimal arithmetic. Going from display to smallest
// unit truncates toward zero: fractions below one smallest unit are dropped,
// never rounded up.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

// ToDisplay scales smallest units down by 10^decimals.
func ToDisplay(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToSmallest scales a display amount up by 10^decimals and truncates.
func ToSmallest(display decimal.Decimal, decimals int32) (*big.Int, error) {
	if display.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", apperr.ErrInvalidParameters, display)
	}
	return display.Shift(decimals).Truncate(0).BigInt(), nil
}

// LovelaceToAda converts the native smallest unit to its display unit.
func LovelaceToAda(lovelace *big.Int) decimal.Decimal {
	return ToDisplay(lovelace, constants.NativeDecimals)
}

// AdaToLovelace converts a display amount of the native unit to lovelace.
func AdaToLovelace(ada decimal.Decimal) (*big.Int, error) {
	return ToSmallest(ada, constants.NativeDecimals)
}

// ParseDisplay reads a decimal string such as "12.5".
func ParseDisplay(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q: %v", apperr.ErrInvalidParameters, s, err)
	}
	return d, nil
}
