package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapIntent is a trade request in human terms: tickers or units and a
// display-unit amount. It is resolved into SwapParams before quoting.
type SwapIntent struct {
	FromToken   string          `json:"from_token"`
	ToToken     string          `json:"to_token"`
	Amount      decimal.Decimal `json:"amount"`
	Slippage    *float64        `json:"slippage,omitempty"` // fraction, e.g. 0.01
	Reason      string          `json:"reason,omitempty"`
	Confidence  float64         `json:"confidence,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
}

// SwapParams are resolved, smallest-unit swap parameters.
type SwapParams struct {
	FromUnit     string          `json:"from_unit"`
	ToUnit       string          `json:"to_unit"`
	FromDecimals int32           `json:"from_decimals"`
	ToDecimals   int32           `json:"to_decimals"`
	AmountIn     string          `json:"amount_in"`
	Display      decimal.Decimal `json:"amount_display"`
	Slippage     float64         `json:"slippage"`
	Intent       *SwapIntent     `json:"intent,omitempty"`
	ParsedAt     time.Time       `json:"parsed_at"`
}
