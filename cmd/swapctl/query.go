package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/units"
)

var balanceToken string

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show a wallet's balance of one asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		unit, err := a.Swaps.ResolveTokenAddress(balanceToken)
		if err != nil {
			return err
		}
		bal, err := a.Swaps.CheckBalance(cmd.Context(), args[0], unit)
		if err != nil {
			return err
		}
		dec, err := a.Swaps.GetTokenDecimal(cmd.Context(), unit)
		if err != nil {
			return err
		}
		return emit(map[string]any{
			"address": args[0],
			"unit":    unit,
			"amount":  bal.String(),
			"display": units.ToDisplay(bal, dec).String(),
		}, fmt.Sprintf("%s %s", units.ToDisplay(bal, dec), balanceToken))
	},
}

var decimalsCmd = &cobra.Command{
	Use:   "decimals <token>",
	Short: "Show how many decimals a token declares",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		unit, err := a.Swaps.ResolveTokenAddress(args[0])
		if err != nil {
			return err
		}
		dec, err := a.Swaps.GetTokenDecimal(cmd.Context(), unit)
		if err != nil {
			return err
		}
		return emit(map[string]any{"unit": unit, "decimals": dec}, fmt.Sprint(dec))
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <ticker>",
	Short: "Print the asset unit for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		unit, err := a.Swaps.ResolveTokenAddress(args[0])
		if err != nil {
			return err
		}
		return emit(map[string]any{"ticker": args[0], "unit": unit}, unit)
	},
}

var quoteSlippage float64

var quoteCmd = &cobra.Command{
	Use:   "quote <from> <to> <amount>",
	Short: "Quote a swap; amount is in display units of <from>",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		intent, err := intentFromArgs(args, quoteSlippage, cmd.Flags().Changed("slippage"))
		if err != nil {
			return err
		}
		params, q, err := a.Swaps.QuoteIntent(cmd.Context(), intent)
		if err != nil {
			return err
		}
		return emit(map[string]any{"params": params, "quote": q}, describeQuote(params, q))
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceToken, "token", constants.NativeTicker, "ticker or asset unit")
	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", 0, "slippage fraction, e.g. 0.01")
	rootCmd.AddCommand(balanceCmd, decimalsCmd, resolveCmd, quoteCmd)
}

// intentFromArgs turns "<from> <to> <amount>" into an intent. The default
// slippage applies unless the flag was set.
func intentFromArgs(args []string, slippage float64, slippageSet bool) (*models.SwapIntent, error) {
	amount, err := units.ParseDisplay(args[2])
	if err != nil {
		return nil, err
	}
	intent := &models.SwapIntent{FromToken: args[0], ToToken: args[1], Amount: amount}
	if slippageSet {
		intent.Slippage = &slippage
	}
	return intent, nil
}

func describeQuote(p *models.SwapParams, q *models.SwapQuote) string {
	out := units.ToDisplay(q.AmountOut, p.ToDecimals)
	minOut := units.ToDisplay(q.AmountOutMin, p.ToDecimals)
	return fmt.Sprintf("%s %s -> %s %s (min %s, slippage %s%%, pool %s)",
		p.Display, p.Intent.FromToken, out, p.Intent.ToToken, minOut,
		decimal.NewFromFloat(q.Slippage).Shift(2).String(), q.PoolAddress)
}

// emit prints v as JSON with --json, otherwise the text line.
func emit(v any, text string) error {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(os.Stdout, text)
	return err
}
