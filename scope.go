package errtrack

import "sync"

// EventProcessor can modify an event before it is sent, or drop it by
// returning nil. Processors run after the scope's own fields have been
// merged into the event.
type EventProcessor func(event *Event) *Event

// Scope holds metadata merged into every event captured while the scope is
// active: a transaction label, tags, a request snapshot, event processors
// and the active session. A Scope is safe for concurrent use.
type Scope struct {
	mu          sync.RWMutex
	transaction string
	tags        map[string]string
	request     *Request
	processors  []EventProcessor
	session     *Session
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{tags: make(map[string]string)}
}

// Clone returns a deep copy of the scope. The active session is not copied:
// a forked scope starts without one.
func (s *Scope) Clone() *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := NewScope()
	clone.transaction = s.transaction
	for k, v := range s.tags {
		clone.tags[k] = v
	}
	clone.request = s.request
	clone.processors = make([]EventProcessor, len(s.processors))
	copy(clone.processors, s.processors)
	return clone
}

// SetTransaction sets the transaction label. It overrides any label derived
// later by an event processor.
func (s *Scope) SetTransaction(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transaction = name
}

// Transaction returns the current transaction label, or "" if unset.
func (s *Scope) Transaction() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transaction
}

// SetTag sets a tag merged into captured events.
func (s *Scope) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

// RemoveTag deletes a tag.
func (s *Scope) RemoveTag(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, key)
}

// SetRequest attaches a request snapshot used for events that carry none.
func (s *Scope) SetRequest(r *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request = r
}

// AddEventProcessor appends a processor run on every event captured on this
// scope.
func (s *Scope) AddEventProcessor(p EventProcessor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors = append(s.processors, p)
}

// ApplyToEvent merges the scope into the event and runs the processors.
// Returns nil if a processor dropped the event.
func (s *Scope) ApplyToEvent(event *Event) *Event {
	s.mu.RLock()
	if s.transaction != "" {
		event.Transaction = s.transaction
	}
	if len(s.tags) > 0 {
		if event.Tags == nil {
			event.Tags = make(map[string]string, len(s.tags))
		}
		for k, v := range s.tags {
			if _, ok := event.Tags[k]; !ok {
				event.Tags[k] = v
			}
		}
	}
	if event.Request == nil {
		event.Request = s.request
	}
	processors := make([]EventProcessor, len(s.processors))
	copy(processors, s.processors)
	s.mu.RUnlock()

	for _, p := range processors {
		event = p(event)
		if event == nil {
			return nil
		}
	}
	return event
}

func (s *Scope) setSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

func (s *Scope) getSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}
