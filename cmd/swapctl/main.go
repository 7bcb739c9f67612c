// Command swapctl drives the swap assistant from a terminal: balances,
// token lookups, quotes, swaps and the live swap feed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/app"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/config"
)

var (
	debug   bool
	jsonOut bool
)

var logger = newLogger()

// assistant is opened lazily so --help never touches the network.
var assistant *app.App

var rootCmd = &cobra.Command{
	Use:           "swapctl",
	Short:         "Cardano AMM swap assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logger.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.WarnLevel)
	return l
}

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Debugf("no .env file found at %s, using system environment variables", envPath)
	}
}

// open builds the shared pipeline on first use.
func open(ctx context.Context) (*app.App, error) {
	if assistant != nil {
		return assistant, nil
	}
	a, err := app.New(ctx, config.Load(), logger)
	if err != nil {
		return nil, err
	}
	assistant = a
	return a, nil
}

func main() {
	loadEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if assistant != nil {
		_ = assistant.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
