package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Kbman99/errtrack"
	"github.com/Kbman99/errtrack/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the daemon state.
type App struct {
	Config *config.Config
	Router http.Handler

	server *http.Server
}

// New creates and initializes a new daemon instance: logger, reporting
// client bound to the process-wide hub, and router.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	setupLogger(cfg.LogLevel)

	log.Info().Msg("Initializing errtrackd")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	err := errtrack.Init(errtrack.ClientOptions{
		Dsn:                 cfg.DSN,
		Debug:               cfg.IsDev(),
		Environment:         cfg.Env,
		Release:             cfg.Release,
		SendDefaultPII:      cfg.SendPII,
		AutoSessionTracking: true,
		SessionMode:         errtrack.SessionModeRequest,
		FlushInterval:       time.Duration(cfg.FlushSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reporting client: %w", err)
	}
	if cfg.DSN == "" {
		log.Warn().Msg("ET_DSN is not set, captured events will be discarded")
	}

	app := &App{
		Config: cfg,
		Router: NewRouter(cfg),
	}

	log.Info().Msg("Application initialized successfully")
	return app, nil
}

// Start starts the HTTP server and blocks until it stops.
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Shutdown gracefully stops the server and drains the reporting client.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down")

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	if !errtrack.Flush(5 * time.Second) {
		log.Warn().Msg("Reporting flush timed out, some events may be lost")
	}
	if client := errtrack.CurrentHub().Client(); client != nil {
		client.Close()
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

// setupLogger configures the global logger.
func setupLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", level).Msg("Logger configured")
}
