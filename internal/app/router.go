package app

import (
	"time"

	errtrackhttp "github.com/Kbman99/errtrack/http"
	"github.com/Kbman99/errtrack/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// NewRouter creates and configures the chi router with all middleware and
// routes. The reporting middleware wraps everything below it, so recovery
// and the handlers report through the per-request hub.
func NewRouter(cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	reporting := errtrackhttp.New(
		errtrackhttp.EmitHeader(cfg.EmitHeader),
		errtrackhttp.CaptureServerErrors(true),
	)

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(reporting.Handle)
	r.Use(ScopeTagMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", handleHealthz)

	r.Route("/demo", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(httprate.Limit(
			cfg.RateLimitRPM,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))

		r.Get("/message", handleMessage)
		r.Get("/fail", handleFail)
		r.Get("/panic", handlePanic)
		r.Get("/orders/{order_id}", handleOrder)
	})

	return r
}
