package server

import (
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Unit    string `json:"unit"`
	Balance string `json:"balance"` // smallest units
	Display string `json:"display"`
}

type TokenResponse struct {
	Ticker string `json:"ticker"`
	Unit   string `json:"unit"`
}

type DecimalsResponse struct {
	Unit     string `json:"unit"`
	Decimals int32  `json:"decimals"`
}

// BuildSwapRequest asks for an unsigned swap. Tokens may be tickers or
// units; amounts are in smallest units. When AmountOutMin is empty it is
// quoted with Slippage (or the service default).
type BuildSwapRequest struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	AmountIn     string   `json:"amount_in"`
	AmountOutMin string   `json:"amount_out_min,omitempty"`
	Slippage     *float64 `json:"slippage,omitempty"`
	Wallet       string   `json:"wallet"`
}

// SubmitSwapRequest carries a CIP-30 witness set for a previously built
// transaction.
type SubmitSwapRequest struct {
	TxCBOR     string `json:"tx_cbor"`
	WitnessSet string `json:"witness_set"`
}

type SubmitSwapResponse struct {
	TxHash string `json:"tx_hash"`
}

type SwapsResponse struct {
	Items []*models.SwapEvent `json:"items"`
}

type PriceResponse struct {
	Token     string   `json:"token"`
	Price     float64  `json:"price"`
	Volume24h *float64 `json:"volume_24h,omitempty"`
	Change24h *float64 `json:"change_24h,omitempty"`
	At        string   `json:"at"`
}

// HaltUpsertRequest creates or replaces a trading halt.
type HaltUpsertRequest struct {
	Scope  string `json:"scope"`
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

type HaltUpdateRequest struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// IntentRequest is a natural-language swap request.
type IntentRequest struct {
	Text string `json:"text"`
}

type IntentResponse struct {
	Intent *models.SwapIntent `json:"intent"`
	Params *models.SwapParams `json:"params,omitempty"`
	Quote  *models.SwapQuote  `json:"quote,omitempty"`
	TookMs int64              `json:"took_ms"`
}
