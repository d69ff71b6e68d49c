package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kbman99/errtrack"
	"github.com/Kbman99/errtrack/internal/app"
	"github.com/Kbman99/errtrack/internal/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	cronScheduler, err := setupFlushCron(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup flush cron: %v\n", err)
		os.Exit(1)
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			os.Exit(1)
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
			os.Exit(1)
		}
	}
}

// setupFlushCron schedules the periodic reporting flush so session
// aggregates and buffered events leave the process even when traffic is
// idle.
func setupFlushCron(cfg *config.Config) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	schedule := fmt.Sprintf("@every %ds", cfg.FlushSeconds)

	_, err := c.AddFunc(schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Flush job panicked")
			}
		}()

		if !errtrack.Flush(10 * time.Second) {
			log.Warn().Msg("Periodic reporting flush timed out")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule flush job: %w", err)
	}

	return c, nil
}
