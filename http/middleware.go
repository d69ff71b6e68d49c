// Package errtrackhttp provides the net/http middleware for errtrack. It
// forks an isolated reporting hub for every request, binds it to the
// request context, attaches a request snapshot to any event captured while
// the request is handled, and mirrors server errors to the client.
//
// The middleware composes with any func(http.Handler) http.Handler chain:
//
//	mw := errtrackhttp.New(errtrackhttp.EmitHeader(true))
//	r := chi.NewRouter()
//	r.Use(mw.Handle)
//
// Handlers report failures that produced a 5xx response by attaching the
// error to the request context with AttachError; handlers that panic are
// captured and the panic is re-raised for the outer chain to handle.
package errtrackhttp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Kbman99/errtrack"
	"github.com/go-chi/chi/v5"
)

const (
	eventIDHeader  = "x-sentry-event"
	sdkPackageName = "errtrack-http"
)

// Handler is the middleware. Configuration is fixed at construction; one
// Handler serves any number of concurrent requests.
type Handler struct {
	hub                 *errtrack.Hub
	emitHeader          bool
	captureServerErrors bool
}

// Option configures a Handler during New.
type Option func(h *Handler)

// WithHub makes per-request hubs fork from the given hub instead of the
// process-wide one.
func WithHub(hub *errtrack.Hub) Option {
	return func(h *Handler) {
		h.hub = hub
	}
}

// WithDefaultHub forks per-request hubs from the process-wide hub. This is
// the default.
func WithDefaultHub() Option {
	return func(h *Handler) {
		h.hub = nil
	}
}

// EmitHeader controls whether the correlation identifier of a captured
// response error is exposed to the caller as an x-sentry-event header.
// Disabled by default.
func EmitHeader(v bool) Option {
	return func(h *Handler) {
		h.emitHeader = v
	}
}

// CaptureServerErrors controls whether handler panics and 5xx responses
// with attached errors are reported. Enabled by default.
func CaptureServerErrors(v bool) Option {
	return func(h *Handler) {
		h.captureServerErrors = v
	}
}

// New builds a middleware Handler: default hub, header emission off, server
// error capture on, unless overridden by options.
func New(opts ...Option) *Handler {
	h := &Handler{captureServerErrors: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle wraps next with per-request error reporting.
func (h *Handler) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parent := h.hub
		if parent == nil {
			parent = errtrack.CurrentHub()
		}
		hub := parent.Clone()

		trackSession := false
		withPII := false
		if client := hub.Client(); client != nil {
			opts := client.Options()
			trackSession = opts.AutoSessionTracking && opts.SessionMode == errtrack.SessionModeRequest
			withPII = opts.SendDefaultPII
		}
		if trackSession {
			hub.StartSession()
			defer hub.EndSession()
		}

		slot := &errorSlot{}
		ctx := errtrack.SetHubOnContext(r.Context(), hub)
		ctx = context.WithValue(ctx, errorSlotContextKey, slot)
		r = r.WithContext(ctx)

		snapshot := errtrack.NewRequest(r, withPII)
		hub.ConfigureScope(func(scope *errtrack.Scope) {
			scope.AddEventProcessor(requestProcessor(snapshot, r))
		})

		rw := &responseWriter{ResponseWriter: w, handler: h, hub: hub, slot: slot}

		defer func() {
			if rec := recover(); rec != nil {
				if h.captureServerErrors {
					hub.Recover(rec)
				}
				panic(rec)
			}
			h.afterResponse(rw, hub)
		}()

		next.ServeHTTP(rw, r)
	})
}

// afterResponse reports an error that was attached only after the 5xx
// status line had already been written. The header cannot be emitted at
// that point.
func (h *Handler) afterResponse(rw *responseWriter, hub *errtrack.Hub) {
	if !h.captureServerErrors || rw.status < http.StatusInternalServerError {
		return
	}
	if err := rw.slot.take(); err != nil {
		hub.CaptureException(err)
	}
}

// requestProcessor attaches the request snapshot to events that carry no
// request data, fills the route-derived transaction label when none was
// set, and marks the event as produced through this integration.
func requestProcessor(snapshot *errtrack.Request, r *http.Request) errtrack.EventProcessor {
	return func(event *errtrack.Event) *errtrack.Event {
		if event.Request == nil {
			event.Request = snapshot
		}
		if event.Transaction == "" {
			event.Transaction = routePattern(r)
		}
		event.Sdk.Packages = append(event.Sdk.Packages, errtrack.SdkPackage{
			Name:    sdkPackageName,
			Version: errtrack.Version,
		})
		return event
	}
}

// routePattern returns the chi route pattern matched for the request, or ""
// when the request is not served through chi. chi resolves the pattern
// during dispatch, after middleware entry, so this must run at capture
// time.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// responseWriter intercepts the status line so that a 5xx response with an
// attached error is reported, and the correlation header emitted, before
// headers go out.
type responseWriter struct {
	http.ResponseWriter
	handler *Handler
	hub     *errtrack.Hub
	slot    *errorSlot

	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.status = code
		if code >= http.StatusInternalServerError {
			w.captureResponseError()
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) captureResponseError() {
	if !w.handler.captureServerErrors {
		return
	}
	err := w.slot.take()
	if err == nil {
		return
	}
	id := w.hub.CaptureException(err)
	if id != nil && w.handler.emitHeader {
		w.Header().Set(eventIDHeader, string(*id))
	}
}

type slotContextKey int

const errorSlotContextKey slotContextKey = iota

// errorSlot carries the error a handler attached to its response. take
// clears the slot so an error is reported at most once.
type errorSlot struct {
	mu  sync.Mutex
	err error
}

func (s *errorSlot) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *errorSlot) take() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// AttachError associates err with the in-flight response. If the handler
// then writes a 5xx status, the middleware reports err and, when enabled,
// emits its correlation identifier as a response header. Attach before
// writing the status line; no-op outside the middleware or with a nil err.
func AttachError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if slot, ok := ctx.Value(errorSlotContextKey).(*errorSlot); ok {
		slot.set(err)
	}
}

// Error attaches err and writes a minimal plain-text response with the
// given status, for handlers that have nothing better to say.
func Error(w http.ResponseWriter, r *http.Request, status int, err error) {
	AttachError(r.Context(), err)
	http.Error(w, fmt.Sprintf("%d %s", status, http.StatusText(status)), status)
}
