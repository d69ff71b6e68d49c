package app

import (
	"errors"
	"net/http"

	"github.com/Kbman99/errtrack"
	"github.com/go-chi/chi/v5"
)

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleMessage captures an explicit message on the request's hub.
func handleMessage(w http.ResponseWriter, r *http.Request) {
	hub := errtrack.HubFromContext(r.Context())
	id := hub.CaptureMessage("someone rang the demo bell")

	WriteSuccess(w, r, http.StatusOK, map[string]string{
		"event_id": string(deref(id)),
	})
}

// handleFail produces a server error with an attached error object.
func handleFail(w http.ResponseWriter, r *http.Request) {
	err := errors.New("the demo teapot is broken")
	WriteError(w, r, http.StatusInternalServerError, "demo_failure", "Something went wrong on purpose", err)
}

// handlePanic fails the handler itself rather than producing a response.
func handlePanic(w http.ResponseWriter, r *http.Request) {
	panic("demo panic")
}

// handleOrder overrides the route-derived transaction label before
// capturing.
func handleOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	hub := errtrack.HubFromContext(r.Context())
	hub.ConfigureScope(func(scope *errtrack.Scope) {
		scope.SetTransaction("demo.orders.detail")
		scope.SetTag("order_id", orderID)
	})

	if orderID == "0" {
		WriteNotFound(w, r, "No such order")
		return
	}

	hub.CaptureMessage("order inspected")
	WriteSuccess(w, r, http.StatusOK, map[string]string{"order_id": orderID})
}

func deref(id *errtrack.EventID) errtrack.EventID {
	if id == nil {
		return ""
	}
	return *id
}
