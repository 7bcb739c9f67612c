package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/config"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/evm"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch [channel]",
	Short: "Stream swap events from Redis",
	Long: `Stream swap events published by the assistant. The default channel
carries every swap; use swaps:pair:ADA-MIN or a pattern such as swaps:pair:*.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		if a.Recent == nil {
			return fmt.Errorf("%w: REDIS_ADDR is not set or unreachable", apperr.ErrUpstreamUnavailable)
		}
		channel := constants.PubSubChannelSwaps
		if len(args) == 1 {
			channel = args[0]
		}
		logger.WithField("channel", channel).Info("watching swaps")

		err = a.Recent.Subscribe(cmd.Context(), channel, func(ev *models.SwapEvent) {
			_ = emit(ev, fmt.Sprintf("%s %s %s in=%s min_out=%s wallet=%s",
				ev.Timestamp.Format("15:04:05"), ev.Pair, ev.TxHash, ev.AmountIn, ev.AmountOutMin, ev.Wallet))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var evmWaitTx string

var evmBalanceCmd = &cobra.Command{
	Use:   "evm-balance",
	Short: "Show the assistant's EVM address and balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.EVMRPCURL == "" {
			return fmt.Errorf("%w: EVM_RPC_URL is not set", apperr.ErrInvalidParameters)
		}
		client, err := evm.Dial(cmd.Context(), cfg.EVMRPCURL)
		if err != nil {
			return err
		}
		defer client.Close()

		w, err := evm.NewWallet(evm.WalletConfig{
			PrivateKey: cfg.AssistantPrivateKey,
			Client:     client,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		bal, err := w.Balance(cmd.Context())
		if err != nil {
			return err
		}
		out := map[string]any{"address": w.Address().Hex(), "wei": bal.String()}
		text := fmt.Sprintf("%s %s wei", w.Address().Hex(), bal)

		if evmWaitTx != "" {
			receipt, err := w.WaitReceipt(cmd.Context(), evmWaitTx)
			if err != nil {
				return err
			}
			out["receipt_block"] = receipt.BlockNumber.String()
			text += fmt.Sprintf("\n%s mined in block %s", evmWaitTx, receipt.BlockNumber)
		}
		return emit(out, text)
	},
}

func init() {
	evmBalanceCmd.Flags().StringVar(&evmWaitTx, "wait", "", "also wait for this transaction's receipt")
	rootCmd.AddCommand(watchCmd, evmBalanceCmd)
}
