package quote

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

var (
	feeNum   = big.NewInt(constants.FeeNumerator)
	feeDenom = big.NewInt(constants.FeeDenominator)
	scale    = big.NewInt(constants.SlippageScale)
)

// AmountInWithFee applies the fixed 30 bps fee: floor(amountIn * 997 / 1000).
func AmountInWithFee(amountIn *big.Int) *big.Int {
	out := new(big.Int).Mul(amountIn, feeNum)
	return out.Quo(out, feeDenom)
}

// AmountOut is the constant-product output
// floor(inWithFee * reserveOut / (reserveIn + inWithFee)).
func AmountOut(amountInWithFee, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	denominator := new(big.Int).Add(reserveIn, amountInWithFee)
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool has no input-side liquidity", apperr.ErrInvalidParameters)
	}
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	return numerator.Quo(numerator, denominator), nil
}

// SlippagePerMille quantizes the kept fraction: floor((1 - slippage) * 1000).
// The fraction is read through its shortest decimal form so 0.005 keeps 995.
func SlippagePerMille(slippage float64) (int64, error) {
	if math.IsNaN(slippage) || math.IsInf(slippage, 0) || slippage < 0 || slippage >= 1 {
		return 0, fmt.Errorf("%w: slippage %v outside [0, 1)", apperr.ErrInvalidParameters, slippage)
	}
	kept := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippage))
	return kept.Shift(3).Floor().IntPart(), nil
}

// ApplySlippage returns floor(amountOut * perMille / 1000).
func ApplySlippage(amountOut *big.Int, perMille int64) *big.Int {
	out := new(big.Int).Mul(amountOut, big.NewInt(perMille))
	return out.Quo(out, scale)
}

// Compute runs the whole quote. All divisions floor; nothing rounds up.
func Compute(amountIn, reserveIn, reserveOut *big.Int, slippage float64) (*models.Quote, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, fmt.Errorf("%w: nil amount or reserve", apperr.ErrInvalidParameters)
	}
	if amountIn.Sign() < 0 || reserveIn.Sign() < 0 || reserveOut.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount or reserve", apperr.ErrInvalidParameters)
	}

	perMille, err := SlippagePerMille(slippage)
	if err != nil {
		return nil, err
	}

	withFee := AmountInWithFee(amountIn)
	out, err := AmountOut(withFee, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}

	return &models.Quote{
		AmountIn:         new(big.Int).Set(amountIn),
		AmountInWithFee:  withFee,
		AmountOut:        out,
		AmountOutMin:     ApplySlippage(out, perMille),
		ReserveIn:        new(big.Int).Set(reserveIn),
		ReserveOut:       new(big.Int).Set(reserveOut),
		Slippage:         slippage,
		SlippagePerMille: perMille,
	}, nil
}

// PriceImpact reports 1 - executionRate/idealRate for display only.
func PriceImpact(q *models.Quote) float64 {
	if q == nil || q.AmountIn.Sign() == 0 || q.ReserveIn.Sign() == 0 || q.ReserveOut.Sign() == 0 {
		return 0
	}
	ideal := new(big.Rat).SetFrac(q.ReserveOut, q.ReserveIn)
	exec := new(big.Rat).SetFrac(q.AmountOut, q.AmountIn)
	ratio, _ := new(big.Rat).Quo(exec, ideal).Float64()
	return math.Max(0, 1-ratio)
}
