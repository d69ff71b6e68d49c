package errtrack

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Transport delivers captured events to the ingest endpoint. Delivery is
// fire-and-forget: SendEvent must not block the caller on network I/O.
type Transport interface {
	Configure(options ClientOptions)
	SendEvent(event *Event)
	Flush(timeout time.Duration) bool
}

// sessionTransport is implemented by transports that can carry aggregate
// session reports.
type sessionTransport interface {
	SendSessionAggregates(agg *SessionAggregates)
}

const (
	defaultBufferSize = 30
	defaultTimeout    = 5 * time.Second
)

// HTTPTransport posts events as JSON to the DSN URL from a single worker
// goroutine fed by a bounded queue. When the queue is full new events are
// dropped and logged at debug level.
type HTTPTransport struct {
	// BufferSize is the queue capacity. Set before Configure.
	BufferSize int
	// Timeout bounds each delivery attempt. Set before Configure.
	Timeout time.Duration

	endpoint string
	client   *http.Client
	logger   zerolog.Logger
	queue    chan any

	startOnce sync.Once
}

// NewHTTPTransport returns a transport with default buffering. Configure
// must be called before use; NewClient does this.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		BufferSize: defaultBufferSize,
		Timeout:    defaultTimeout,
	}
}

type flushBarrier struct {
	done chan struct{}
}

// Configure sets the endpoint from the options and starts the delivery
// worker.
func (t *HTTPTransport) Configure(options ClientOptions) {
	if t.BufferSize <= 0 {
		t.BufferSize = defaultBufferSize
	}
	if t.Timeout <= 0 {
		t.Timeout = defaultTimeout
	}
	t.endpoint = options.Dsn
	t.client = &http.Client{Timeout: t.Timeout}
	t.logger = options.logger()
	t.queue = make(chan any, t.BufferSize)

	t.startOnce.Do(func() {
		go t.worker()
	})
}

// SendEvent enqueues the event for delivery, dropping it if the queue is
// full.
func (t *HTTPTransport) SendEvent(event *Event) {
	select {
	case t.queue <- event:
	default:
		t.logger.Debug().Str("event_id", string(event.ID)).Msg("Event buffer full, dropping event")
	}
}

// SendSessionAggregates enqueues an aggregate session report.
func (t *HTTPTransport) SendSessionAggregates(agg *SessionAggregates) {
	select {
	case t.queue <- agg:
	default:
		t.logger.Debug().Msg("Event buffer full, dropping session aggregates")
	}
}

// Flush blocks until everything enqueued before the call has been attempted
// or the timeout elapses. Returns false on timeout.
func (t *HTTPTransport) Flush(timeout time.Duration) bool {
	barrier := flushBarrier{done: make(chan struct{})}
	deadline := time.After(timeout)

	select {
	case t.queue <- barrier:
	case <-deadline:
		return false
	}

	select {
	case <-barrier.done:
		return true
	case <-deadline:
		return false
	}
}

func (t *HTTPTransport) worker() {
	for item := range t.queue {
		switch v := item.(type) {
		case *Event:
			t.post(v)
		case *SessionAggregates:
			t.post(v)
		case flushBarrier:
			close(v.done)
		}
	}
}

func (t *HTTPTransport) post(payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		t.logger.Debug().Err(err).Msg("Failed to encode payload")
		return
	}

	resp, err := t.client.Post(t.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		t.logger.Debug().Err(err).Msg("Failed to deliver payload")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		t.logger.Debug().Int("status", resp.StatusCode).Msg("Ingest endpoint rejected payload")
	}
}

// noopTransport discards everything. Used when no DSN is configured.
type noopTransport struct{}

func (noopTransport) Configure(options ClientOptions) {}
func (noopTransport) SendEvent(event *Event)          {}
func (noopTransport) Flush(timeout time.Duration) bool {
	return true
}

// TransportMock records sent events and session reports in memory. It is
// intended for tests.
type TransportMock struct {
	mu         sync.Mutex
	events     []*Event
	aggregates []*SessionAggregates
}

func (t *TransportMock) Configure(options ClientOptions) {}

func (t *TransportMock) SendEvent(event *Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *TransportMock) SendSessionAggregates(agg *SessionAggregates) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aggregates = append(t.aggregates, agg)
}

func (t *TransportMock) Flush(timeout time.Duration) bool {
	return true
}

// Events returns the events sent so far.
func (t *TransportMock) Events() []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Event, len(t.events))
	copy(out, t.events)
	return out
}

// Aggregates returns the session reports sent so far.
func (t *TransportMock) Aggregates() []*SessionAggregates {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*SessionAggregates, len(t.aggregates))
	copy(out, t.aggregates)
	return out
}
