package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/app"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/config"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/server"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main starts the swap assistant HTTP API with graceful shutdown.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if cfg.DevMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise swap assistant")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("close")
		}
	}()

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: a.Handlers(),
		Config: server.ServerConfig{
			Addr:     cfg.APIAddr,
			DevMode:  cfg.DevMode,
			APIKey:   cfg.APIKey,
			Gatherer: a.Registry,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}
	if cfg.APIKey == "" {
		logger.Warn("API_KEY not set, endpoints are unauthenticated")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("wait for shutdown")
	}
}
