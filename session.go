package errtrack

import (
	"sync"
	"time"
)

// SessionStatus is the terminal state of a session.
type SessionStatus string

// Session states. A session is "ok" while running and ends as exited,
// errored or crashed.
const (
	SessionStatusOK      SessionStatus = "ok"
	SessionStatusExited  SessionStatus = "exited"
	SessionStatusErrored SessionStatus = "errored"
	SessionStatusCrashed SessionStatus = "crashed"
)

// Session records one unit of application execution (one request when the
// client runs in request session mode) for aggregate health reporting.
type Session struct {
	mu        sync.Mutex
	startedAt time.Time
	status    SessionStatus
	errors    int
	crashed   bool
}

func newSession() *Session {
	return &Session{startedAt: time.Now().UTC(), status: SessionStatusOK}
}

func (s *Session) markError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

func (s *Session) markCrashed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashed = true
}

// end transitions the session to its terminal state: crashed if a fatal
// event was captured, errored if any error events were, exited otherwise.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.crashed:
		s.status = SessionStatusCrashed
	case s.errors > 0:
		s.status = SessionStatusErrored
	default:
		s.status = SessionStatusExited
	}
}

// Status returns the session's current state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ErrorCount reports how many error-level events were captured during the
// session.
func (s *Session) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// SessionAggregate counts sessions that started within one minute bucket.
type SessionAggregate struct {
	Started time.Time `json:"started"`
	Exited  int64     `json:"exited,omitempty"`
	Errored int64     `json:"errored,omitempty"`
	Crashed int64     `json:"crashed,omitempty"`
}

// SessionAggregates is one aggregate health report covering all sessions
// ended since the previous flush.
type SessionAggregates struct {
	Aggregates  []SessionAggregate `json:"aggregates"`
	Release     string             `json:"release,omitempty"`
	Environment string             `json:"environment,omitempty"`
}

// sessionAggregator buckets ended sessions by start minute. One flush emits
// at most one report.
type sessionAggregator struct {
	mu      sync.Mutex
	buckets map[time.Time]*SessionAggregate
}

func newSessionAggregator() *sessionAggregator {
	return &sessionAggregator{buckets: make(map[time.Time]*SessionAggregate)}
}

func (a *sessionAggregator) record(s *Session) {
	key := s.startedAt.Truncate(time.Minute)

	a.mu.Lock()
	defer a.mu.Unlock()

	bucket, ok := a.buckets[key]
	if !ok {
		bucket = &SessionAggregate{Started: key}
		a.buckets[key] = bucket
	}
	switch s.Status() {
	case SessionStatusCrashed:
		bucket.Crashed++
	case SessionStatusErrored:
		bucket.Errored++
	default:
		bucket.Exited++
	}
}

// flush returns the pending report and resets the aggregator, or nil when
// no sessions ended since the last flush.
func (a *sessionAggregator) flush() *SessionAggregates {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buckets) == 0 {
		return nil
	}

	agg := &SessionAggregates{Aggregates: make([]SessionAggregate, 0, len(a.buckets))}
	for _, bucket := range a.buckets {
		agg.Aggregates = append(agg.Aggregates, *bucket)
	}
	a.buckets = make(map[time.Time]*SessionAggregate)
	return agg
}
