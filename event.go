package errtrack

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of an event.
type Level string

// Event severity levels, from least to most severe.
const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// EventID is the correlation identifier assigned to a captured event: the
// 32-character hex form of a random UUID.
type EventID string

func newEventID() EventID {
	id := uuid.New()
	return EventID(hex.EncodeToString(id[:]))
}

// Exception describes one captured error value.
type Exception struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SdkPackage identifies one package participating in producing an event,
// e.g. an integration layered on top of the base client.
type SdkPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SdkInfo identifies the client that produced an event.
type SdkInfo struct {
	Name     string       `json:"name"`
	Version  string       `json:"version"`
	Packages []SdkPackage `json:"packages,omitempty"`
}

// Request is a snapshot of an inbound HTTP request, attached to events
// captured while that request was being handled.
type Request struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	QueryString string            `json:"query_string,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// NewRequest builds a request snapshot. The URL is reconstructed from the
// scheme, host and path. The remote address is recorded only when withPII
// is true.
func NewRequest(r *http.Request, withPII bool) *Request {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ",")
	}

	req := &Request{
		URL:         fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path),
		Method:      r.Method,
		QueryString: r.URL.RawQuery,
		Headers:     headers,
	}

	if withPII {
		req.Env = map[string]string{"REMOTE_ADDR": r.RemoteAddr}
	}

	return req
}

// Event is a single report sent to the ingest endpoint.
type Event struct {
	ID          EventID           `json:"event_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Level       Level             `json:"level"`
	Message     string            `json:"message,omitempty"`
	Exception   []Exception       `json:"exception,omitempty"`
	Transaction string            `json:"transaction,omitempty"`
	ServerName  string            `json:"server_name,omitempty"`
	Release     string            `json:"release,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Request     *Request          `json:"request,omitempty"`
	Sdk         SdkInfo           `json:"sdk"`
}

// NewEvent creates an empty event.
func NewEvent() *Event {
	return &Event{Tags: make(map[string]string)}
}
