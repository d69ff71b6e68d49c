package errtrack

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SessionMode controls what one session covers.
type SessionMode string

const (
	// SessionModeApplication tracks one session per process.
	SessionModeApplication SessionMode = "application"
	// SessionModeRequest tracks one session per handled request.
	SessionModeRequest SessionMode = "request"
)

const defaultFlushInterval = 60 * time.Second

// ClientOptions configures a Client. The zero value yields a client that
// discards everything, which is useful in tests and when no DSN is set.
type ClientOptions struct {
	// Dsn is the ingest endpoint URL. Empty disables delivery.
	Dsn string
	// Debug enables client diagnostics on stderr when no Logger is set.
	Debug bool
	// Environment and Release are stamped on every event.
	Environment string
	Release     string
	// ServerName defaults to the hostname.
	ServerName string
	// SendDefaultPII permits capturing personally identifiable request
	// data such as the remote address.
	SendDefaultPII bool
	// AutoSessionTracking enables session recording for release health.
	AutoSessionTracking bool
	// SessionMode selects per-process or per-request sessions. Defaults
	// to SessionModeApplication.
	SessionMode SessionMode
	// FlushInterval is how often pending session aggregates are reported
	// in the background. Defaults to one minute.
	FlushInterval time.Duration
	// Transport overrides the default buffered HTTP transport.
	Transport Transport
	// Logger overrides the client diagnostics logger.
	Logger *zerolog.Logger
	// BeforeSend can modify or drop (return nil) every outgoing event.
	BeforeSend func(event *Event) *Event
}

func (o ClientOptions) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	if o.Debug {
		return zerolog.New(os.Stderr).With().Timestamp().Str("component", "errtrack").Logger()
	}
	return zerolog.Nop()
}

// Client captures events, applies scope state to them and hands them to the
// transport. A Client is safe for concurrent use and is shared by every hub
// forked from the one it was bound to.
type Client struct {
	options   ClientOptions
	transport Transport
	logger    zerolog.Logger
	sessions  *sessionAggregator
	done      chan struct{}
}

// NewClient validates the options and builds a client. With an empty DSN
// and no explicit Transport, events are discarded.
func NewClient(options ClientOptions) (*Client, error) {
	if options.Dsn != "" {
		u, err := url.Parse(options.Dsn)
		if err != nil {
			return nil, fmt.Errorf("errtrack: invalid DSN %q: %w", options.Dsn, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("errtrack: DSN %q must be an http(s) URL", options.Dsn)
		}
	}
	if options.SessionMode == "" {
		options.SessionMode = SessionModeApplication
	}
	if options.FlushInterval <= 0 {
		options.FlushInterval = defaultFlushInterval
	}
	if options.ServerName == "" {
		options.ServerName, _ = os.Hostname()
	}

	logger := options.logger()

	transport := options.Transport
	if transport == nil {
		if options.Dsn == "" {
			logger.Debug().Msg("No DSN configured, events will be discarded")
			transport = noopTransport{}
		} else {
			transport = NewHTTPTransport()
		}
	}
	transport.Configure(options)

	client := &Client{
		options:   options,
		transport: transport,
		logger:    logger,
		sessions:  newSessionAggregator(),
		done:      make(chan struct{}),
	}

	if options.AutoSessionTracking {
		go client.sessionFlushLoop()
	}

	return client, nil
}

// Options returns the options the client was built with.
func (c *Client) Options() ClientOptions {
	return c.options
}

// CaptureEvent fills in event identity, applies the scope, runs BeforeSend
// and enqueues the event. Returns the event's correlation identifier, or
// nil if the event was dropped.
func (c *Client) CaptureEvent(event *Event, scope *Scope) *EventID {
	if event == nil {
		event = NewEvent()
	}
	c.prepareEvent(event)

	if scope != nil {
		if sess := scope.getSession(); sess != nil {
			switch event.Level {
			case LevelError:
				sess.markError()
			case LevelFatal:
				sess.markError()
				sess.markCrashed()
			}
		}
		event = scope.ApplyToEvent(event)
		if event == nil {
			c.logger.Debug().Msg("Event dropped by scope processor")
			return nil
		}
	}

	if c.options.BeforeSend != nil {
		event = c.options.BeforeSend(event)
		if event == nil {
			c.logger.Debug().Msg("Event dropped by BeforeSend")
			return nil
		}
	}

	c.transport.SendEvent(event)
	id := event.ID
	return &id
}

// CaptureException captures err as an error-level event.
func (c *Client) CaptureException(err error, scope *Scope) *EventID {
	if err == nil {
		return nil
	}
	event := NewEvent()
	event.Level = LevelError
	event.Exception = []Exception{{Type: fmt.Sprintf("%T", err), Value: err.Error()}}
	return c.CaptureEvent(event, scope)
}

// CaptureMessage captures an informational message event.
func (c *Client) CaptureMessage(message string, scope *Scope) *EventID {
	event := NewEvent()
	event.Message = message
	return c.CaptureEvent(event, scope)
}

func (c *Client) prepareEvent(event *Event) {
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}
	if event.ServerName == "" {
		event.ServerName = c.options.ServerName
	}
	if event.Release == "" {
		event.Release = c.options.Release
	}
	if event.Environment == "" {
		event.Environment = c.options.Environment
	}
	if event.Sdk.Name == "" {
		event.Sdk.Name = sdkName
		event.Sdk.Version = Version
	}
}

func (c *Client) recordSession(sess *Session) {
	sess.end()
	c.sessions.record(sess)
}

func (c *Client) flushSessions() {
	agg := c.sessions.flush()
	if agg == nil {
		return
	}
	agg.Release = c.options.Release
	agg.Environment = c.options.Environment

	if st, ok := c.transport.(sessionTransport); ok {
		st.SendSessionAggregates(agg)
		return
	}
	c.logger.Debug().Msg("Transport does not carry session aggregates, report discarded")
}

func (c *Client) sessionFlushLoop() {
	ticker := time.NewTicker(c.options.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flushSessions()
		case <-c.done:
			return
		}
	}
}

// Flush reports pending session aggregates and waits for the transport to
// drain, bounded by the timeout. Returns false on timeout.
func (c *Client) Flush(timeout time.Duration) bool {
	c.flushSessions()
	return c.transport.Flush(timeout)
}

// Close stops the background session flush loop. It does not flush; call
// Flush first during shutdown.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
