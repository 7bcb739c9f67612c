package swap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/quote"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/units"
)

func ValidateIntent(intent *models.SwapIntent) error {
	if intent == nil {
		return fmt.Errorf("%w: intent is nil", apperr.ErrInvalidParameters)
	}
	if strings.TrimSpace(intent.FromToken) == "" || strings.TrimSpace(intent.ToToken) == "" {
		return fmt.Errorf("%w: from and to token required", apperr.ErrInvalidParameters)
	}
	if strings.EqualFold(intent.FromToken, intent.ToToken) {
		return fmt.Errorf("%w: from and to token must differ", apperr.ErrInvalidParameters)
	}
	if !intent.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be > 0", apperr.ErrInvalidParameters)
	}
	if intent.Slippage != nil {
		if _, err := quote.SlippagePerMille(*intent.Slippage); err != nil {
			return err
		}
	}
	return nil
}

// ParseIntent resolves tickers to units and converts the display amount to
// smallest units using the input token's decimals.
func (s *Service) ParseIntent(ctx context.Context, intent *models.SwapIntent) (*models.SwapParams, error) {
	if err := ValidateIntent(intent); err != nil {
		return nil, err
	}
	if intent.RequestedAt.IsZero() {
		intent.RequestedAt = s.now()
	}
	slippage := s.defaultSlippage
	if intent.Slippage != nil {
		slippage = *intent.Slippage
	}

	from, err := s.ResolveTokenAddress(intent.FromToken)
	if err != nil {
		return nil, err
	}
	to, err := s.ResolveTokenAddress(intent.ToToken)
	if err != nil {
		return nil, err
	}
	fromDec, err := s.GetTokenDecimal(ctx, from)
	if err != nil {
		return nil, err
	}
	toDec, err := s.GetTokenDecimal(ctx, to)
	if err != nil {
		return nil, err
	}

	amountIn, err := units.ToSmallest(intent.Amount, fromDec)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s is below one smallest unit of %s", apperr.ErrInvalidParameters, intent.Amount, intent.FromToken)
	}

	return &models.SwapParams{
		FromUnit:     from,
		ToUnit:       to,
		FromDecimals: fromDec,
		ToDecimals:   toDec,
		AmountIn:     amountIn.String(),
		Display:      intent.Amount,
		Slippage:     slippage,
		Intent:       intent,
		ParsedAt:     s.now(),
	}, nil
}

// QuoteIntent parses intent and quotes it.
func (s *Service) QuoteIntent(ctx context.Context, intent *models.SwapIntent) (*models.SwapParams, *models.SwapQuote, error) {
	params, err := s.ParseIntent(ctx, intent)
	if err != nil {
		return nil, nil, err
	}
	amountIn, err := models.ParseQuantity(params.AmountIn)
	if err != nil {
		return nil, nil, err
	}
	q, err := s.GetAmountOut(ctx, params.FromUnit, params.ToUnit, amountIn, params.Slippage)
	if err != nil {
		return params, nil, err
	}
	return params, q, nil
}
