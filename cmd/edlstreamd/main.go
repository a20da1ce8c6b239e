// Command edlstreamd runs the build daemon: it drains the build queue,
// maintains the artifact caches, and serves the HTTP status API.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"edlstream/internal/config"
	"edlstream/internal/daemon"
	"edlstream/internal/logging"
)

func main() {
	// Optional .env next to the working directory; absence is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close", logging.Error(err))
		}
	}()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited", logging.Error(err))
	}
	logger.Info("edlstreamd shut down")
}
