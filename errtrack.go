// Package errtrack is a small error-tracking client: it captures error
// events and messages, enriches them with scope metadata, and hands them to
// a buffered transport for delivery to an ingest endpoint.
//
// Most applications call Init once at startup and then capture through the
// hub bound to the request context by the errtrackhttp middleware:
//
//	err := errtrack.Init(errtrack.ClientOptions{
//		Dsn:                 os.Getenv("ET_DSN"),
//		AutoSessionTracking: true,
//		SessionMode:         errtrack.SessionModeRequest,
//	})
//
// Capturing through a per-request hub keeps concurrent requests fully
// isolated; the package-level helpers operate on the process-wide hub and
// are intended for code outside any request.
package errtrack

import "time"

// Version is reported as the SDK version on every captured event.
const Version = "0.3.1"

const sdkName = "errtrack.go"

// Init binds a new client built from the given options to the process-wide
// hub.
func Init(options ClientOptions) error {
	client, err := NewClient(options)
	if err != nil {
		return err
	}
	CurrentHub().BindClient(client)
	return nil
}

// CaptureException captures err on the process-wide hub.
func CaptureException(err error) *EventID {
	return CurrentHub().CaptureException(err)
}

// CaptureMessage captures an informational message on the process-wide hub.
func CaptureMessage(message string) *EventID {
	return CurrentHub().CaptureMessage(message)
}

// ConfigureScope mutates the process-wide hub's scope.
func ConfigureScope(f func(scope *Scope)) {
	CurrentHub().ConfigureScope(f)
}

// Flush waits until the underlying transport has drained buffered events or
// the timeout elapses. Session aggregates accumulated since the last flush
// are reported first. Returns false if the timeout was reached.
func Flush(timeout time.Duration) bool {
	return CurrentHub().Flush(timeout)
}
