// Command pricecrawler records USD prices for the configured tokens into the
// SQLite store the API serves /v1/prices from.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/config"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/prices"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

func main() {
	once := flag.Bool("once", false, "crawl a single round and exit")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)
	cfg := config.Load()

	store, err := prices.NewStore(cfg.PriceDBPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open price store")
	}
	defer store.Close()

	crawler, err := prices.NewCrawler(prices.CrawlerConfig{
		URL:        cfg.GeckoAPIURL,
		TokenIDs:   cfg.TokenIDs,
		Interval:   cfg.PricePollInterval,
		Store:      store,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("invalid crawler configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		samples, err := crawler.Crawl(ctx)
		if err != nil {
			logger.WithError(err).Fatal("price crawl failed")
		}
		logger.WithField("samples", len(samples)).Info("price crawl done")
		return
	}

	logger.WithFields(logrus.Fields{
		"tokens":   cfg.TokenIDs,
		"interval": cfg.PricePollInterval,
		"db":       cfg.PriceDBPath,
	}).Info("price crawler starting")
	if err := crawler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("price crawler stopped")
	}
	logger.Info("price crawler stopped")
}
