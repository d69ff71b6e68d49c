package errtrack

import (
	"fmt"
	"sync"
	"time"
)

// Hub is an isolated handle bundling a client reference with mutable scope
// state. The process owns one hub (CurrentHub); integrations fork a fresh
// hub per unit of work with Clone so that scope mutations and captured
// events never leak between units.
type Hub struct {
	mu          sync.RWMutex
	client      *Client
	scope       *Scope
	lastEventID EventID
}

var currentHub = NewHub(nil, NewScope())

// CurrentHub returns the process-wide hub.
func CurrentHub() *Hub {
	return currentHub
}

// NewHub creates a hub from a client and a scope.
func NewHub(client *Client, scope *Scope) *Hub {
	if scope == nil {
		scope = NewScope()
	}
	return &Hub{client: client, scope: scope}
}

// Clone derives an isolated hub: same client, deep-copied scope, no capture
// history.
func (h *Hub) Clone() *Hub {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return NewHub(h.client, h.scope.Clone())
}

// Client returns the bound client, which may be nil.
func (h *Hub) Client() *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

// Scope returns the hub's scope.
func (h *Hub) Scope() *Scope {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.scope
}

// BindClient binds a client to the hub.
func (h *Hub) BindClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.client = client
}

// LastEventID returns the identifier of the last event captured on this
// hub, or "" if none was.
func (h *Hub) LastEventID() EventID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastEventID
}

// ConfigureScope runs f against the hub's scope.
func (h *Hub) ConfigureScope(f func(scope *Scope)) {
	f(h.Scope())
}

// CaptureEvent captures the event on this hub. Returns nil when no client
// is bound or the event was dropped.
func (h *Hub) CaptureEvent(event *Event) *EventID {
	client, scope := h.Client(), h.Scope()
	if client == nil {
		return nil
	}
	id := client.CaptureEvent(event, scope)
	h.setLastEventID(id)
	return id
}

// CaptureException captures err as an error-level event.
func (h *Hub) CaptureException(err error) *EventID {
	client, scope := h.Client(), h.Scope()
	if client == nil {
		return nil
	}
	id := client.CaptureException(err, scope)
	h.setLastEventID(id)
	return id
}

// CaptureMessage captures an informational message.
func (h *Hub) CaptureMessage(message string) *EventID {
	client, scope := h.Client(), h.Scope()
	if client == nil {
		return nil
	}
	id := client.CaptureMessage(message, scope)
	h.setLastEventID(id)
	return id
}

// Recover captures a recovered panic value as a fatal event, which also
// marks the active session crashed.
func (h *Hub) Recover(v any) *EventID {
	if v == nil {
		return nil
	}
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	event := NewEvent()
	event.Level = LevelFatal
	event.Exception = []Exception{{Type: fmt.Sprintf("%T", err), Value: err.Error()}}
	return h.CaptureEvent(event)
}

// StartSession starts a new session on the hub's scope. Any previous
// session on the scope is discarded unrecorded.
func (h *Hub) StartSession() {
	h.Scope().setSession(newSession())
}

// EndSession ends the scope's session and records it for the next session
// aggregate report. No-op when no session is active.
func (h *Hub) EndSession() {
	scope := h.Scope()
	sess := scope.getSession()
	if sess == nil {
		return
	}
	scope.setSession(nil)
	if client := h.Client(); client != nil {
		client.recordSession(sess)
	}
}

// Flush flushes the bound client. Returns true when no client is bound.
func (h *Hub) Flush(timeout time.Duration) bool {
	client := h.Client()
	if client == nil {
		return true
	}
	return client.Flush(timeout)
}

func (h *Hub) setLastEventID(id *EventID) {
	if id == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEventID = *id
}
