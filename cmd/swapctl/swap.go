package main

import (
	"bufio"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/app"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

var (
	swapWallet   string
	swapSlippage float64
	swapMinOut   string
	swapYes      bool
	swapWait     bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <from> <to> <amount>",
	Short: "Quote, sign through the wallet bridge and submit a swap",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		intent, err := intentFromArgs(args, swapSlippage, cmd.Flags().Changed("slippage"))
		if err != nil {
			return err
		}
		return execute(cmd, a, intent)
	},
}

var intentExecute bool

var intentCmd = &cobra.Command{
	Use:   "intent <text>",
	Short: "Parse a plain-language swap request and quote it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		if a.AI == nil {
			return fmt.Errorf("%w: OPENROUTER_API_KEY is not set", apperr.ErrInvalidParameters)
		}
		intent, err := a.AI.Parse(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if !intentExecute {
			params, q, err := a.Swaps.QuoteIntent(cmd.Context(), intent)
			if err != nil {
				return err
			}
			return emit(map[string]any{"intent": intent, "params": params, "quote": q}, describeQuote(params, q))
		}
		return execute(cmd, a, intent)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Show whether a submitted transaction is on chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.Confirm.Status(cmd.Context(), strings.ToLower(args[0]))
		if err != nil {
			return err
		}
		return emit(st, fmt.Sprintf("%s %s (%d confirmations)", st.TxHash, st.State, st.Confirmations))
	},
}

func init() {
	for _, c := range []*cobra.Command{swapCmd, intentCmd} {
		c.Flags().StringVar(&swapWallet, "wallet", os.Getenv("WALLET_ADDRESS"), "bech32 address that pays for the swap")
		c.Flags().StringVar(&swapMinOut, "min-out", "", "minimum output in smallest units; defaults to the quoted minimum")
		c.Flags().BoolVarP(&swapYes, "yes", "y", false, "do not ask for confirmation")
		c.Flags().BoolVar(&swapWait, "wait", false, "wait until the transaction is confirmed")
	}
	swapCmd.Flags().Float64Var(&swapSlippage, "slippage", 0, "slippage fraction, e.g. 0.01")
	intentCmd.Flags().BoolVar(&intentExecute, "execute", false, "sign and submit the parsed swap")
	rootCmd.AddCommand(swapCmd, intentCmd, statusCmd)
}

// execute quotes intent, confirms with the user and runs the swap.
func execute(cmd *cobra.Command, a *app.App, intent *models.SwapIntent) error {
	if swapWallet == "" {
		return fmt.Errorf("%w: --wallet is required", apperr.ErrInvalidParameters)
	}
	params, q, err := a.Swaps.QuoteIntent(cmd.Context(), intent)
	if err != nil {
		return err
	}
	minOut, err := minOutput(swapMinOut, q.AmountOutMin)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, describeQuote(params, q))
	if !swapYes && !confirm("submit this swap?") {
		return fmt.Errorf("aborted")
	}

	amountIn, err := models.ParseQuantity(params.AmountIn)
	if err != nil {
		return err
	}
	hash, err := a.Swaps.SwapTokens(cmd.Context(), params.FromUnit, params.ToUnit, amountIn, minOut, swapWallet)
	if err != nil {
		return err
	}
	out := map[string]any{"tx_hash": hash, "amount_in": params.AmountIn, "amount_out_min": minOut.String()}
	if !swapWait {
		return emit(out, hash)
	}

	fmt.Fprintln(os.Stderr, "submitted", hash)
	st, err := a.Confirm.Wait(cmd.Context(), hash)
	if err != nil {
		return err
	}
	out["status"] = st
	return emit(out, fmt.Sprintf("%s confirmed in block %d (%d confirmations)", hash, st.BlockHeight, st.Confirmations))
}

func minOutput(flag string, quoted *big.Int) (*big.Int, error) {
	if flag == "" {
		return quoted, nil
	}
	return models.ParseQuantity(flag)
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
