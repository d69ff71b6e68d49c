package errtrackhttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kbman99/errtrack"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, mutate func(options *errtrack.ClientOptions)) (*errtrack.Hub, *errtrack.TransportMock) {
	t.Helper()

	transport := &errtrack.TransportMock{}
	options := errtrack.ClientOptions{Transport: transport}
	if mutate != nil {
		mutate(&options)
	}
	client, err := errtrack.NewClient(options)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return errtrack.NewHub(client, errtrack.NewScope()), transport
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestExplicitMessages_IsolatedPerRequest(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		reqHub := errtrack.GetHubFromContext(r.Context())
		require.NotNil(t, reqHub)
		require.Empty(t, reqHub.LastEventID(), "hub must not carry a previous request's events")

		reqHub.CaptureMessage("Message")
		require.NotEmpty(t, reqHub.LastEventID())

		w.WriteHeader(http.StatusOK)
	})

	// Two sequential calls to ensure the middleware isn't sticky.
	for i := 0; i < 2; i++ {
		rec := serve(router, "GET", "/test")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	events := transport.Events()
	require.Len(t, events, 2)
	for _, event := range events {
		require.Equal(t, "Message", event.Message)
		require.Equal(t, "/test", event.Transaction)
		require.NotNil(t, event.Request)
		require.Equal(t, "GET", event.Request.Method)
	}
	require.Empty(t, hub.LastEventID(), "parent hub must stay untouched")
}

func TestResponseErrors_CapturedWithHeader(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub), EmitHeader(true)).Handle)
	router.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		AttachError(r.Context(), errors.New("database exploded"))
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		rec := serve(router, "GET", "/fail")
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		events := transport.Events()
		require.Len(t, events, i+1)
		require.Equal(t, string(events[i].ID), rec.Header().Get("x-sentry-event"))
	}

	for _, event := range transport.Events() {
		require.Equal(t, errtrack.LevelError, event.Level)
		require.Equal(t, "/fail", event.Transaction)
		require.Len(t, event.Exception, 1)
		require.Equal(t, "database exploded", event.Exception[0].Value)
	}
}

func TestResponseErrors_NoHeaderByDefault(t *testing.T) {
	hub, _ := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusInternalServerError, errors.New("boom"))
	})

	rec := serve(router, "GET", "/fail")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Header().Get("x-sentry-event"))
}

func TestResponseErrors_AttachedAfterStatusStillCaptured(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub), EmitHeader(true)).Handle)
	router.Get("/late", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		AttachError(r.Context(), errors.New("upstream gone"))
	})

	rec := serve(router, "GET", "/late")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Empty(t, rec.Header().Get("x-sentry-event"), "headers are already out")

	events := transport.Events()
	require.Len(t, events, 1)
	require.Equal(t, "upstream gone", events[0].Exception[0].Value)
}

func TestClientErrors_NeverReported(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		AttachError(r.Context(), errors.New("not really a server fault"))
		http.Error(w, "nope", http.StatusNotFound)
	})

	rec := serve(router, "GET", "/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, transport.Events())
}

func TestCaptureDisabled(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub), CaptureServerErrors(false), EmitHeader(true)).Handle)
	router.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusInternalServerError, errors.New("boom"))
	})

	rec := serve(router, "GET", "/fail")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, transport.Events())
	require.Empty(t, rec.Header().Get("x-sentry-event"))
}

func TestTransactionOverride(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		reqHub := errtrack.GetHubFromContext(r.Context())
		reqHub.ConfigureScope(func(scope *errtrack.Scope) {
			scope.SetTransaction("orders.detail")
		})
		reqHub.CaptureMessage("looked up order")
		w.WriteHeader(http.StatusOK)
	})

	serve(router, "GET", "/orders/42")

	events := transport.Events()
	require.Len(t, events, 1)
	require.Equal(t, "orders.detail", events[0].Transaction)
}

func TestRoutePatternAsTransaction(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		errtrack.GetHubFromContext(r.Context()).CaptureMessage("matched")
		w.WriteHeader(http.StatusOK)
	})

	serve(router, "GET", "/orders/42")

	events := transport.Events()
	require.Len(t, events, 1)
	require.Equal(t, "/orders/{id}", events[0].Transaction)
}

func TestWithoutRouter_TransactionUnset(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	handler := New(WithHub(hub)).Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errtrack.GetHubFromContext(r.Context()).CaptureMessage("bare handler")
		w.WriteHeader(http.StatusOK)
	}))

	serve(handler, "GET", "/anything")

	events := transport.Events()
	require.Len(t, events, 1)
	require.Empty(t, events[0].Transaction)
}

func TestPanic_CapturedAndPropagated(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	require.PanicsWithValue(t, "handler exploded", func() {
		serve(router, "GET", "/panic")
	})

	events := transport.Events()
	require.Len(t, events, 1)
	require.Equal(t, errtrack.LevelFatal, events[0].Level)
	require.Equal(t, "handler exploded", events[0].Exception[0].Value)
}

func TestSdkPackageMarker(t *testing.T) {
	hub, transport := newTestHub(t, nil)

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		errtrack.GetHubFromContext(r.Context()).CaptureMessage("hi")
		w.WriteHeader(http.StatusOK)
	})

	serve(router, "GET", "/test")

	events := transport.Events()
	require.Len(t, events, 1)
	require.Len(t, events[0].Sdk.Packages, 1)
	require.Equal(t, sdkPackageName, events[0].Sdk.Packages[0].Name)
	require.Equal(t, errtrack.Version, events[0].Sdk.Packages[0].Version)
}

func TestRemoteAddr_OnlyWithPII(t *testing.T) {
	capture := func(sendPII bool) *errtrack.Event {
		hub, transport := newTestHub(t, func(options *errtrack.ClientOptions) {
			options.SendDefaultPII = sendPII
		})

		router := chi.NewRouter()
		router.Use(New(WithHub(hub)).Handle)
		router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
			errtrack.GetHubFromContext(r.Context()).CaptureMessage("hi")
			w.WriteHeader(http.StatusOK)
		})

		serve(router, "GET", "/test")
		events := transport.Events()
		require.Len(t, events, 1)
		return events[0]
	}

	withPII := capture(true)
	require.NotEmpty(t, withPII.Request.Env["REMOTE_ADDR"])

	withoutPII := capture(false)
	require.Empty(t, withoutPII.Request.Env)
}

func TestRequestSessions_AggregatedAtFlush(t *testing.T) {
	hub, transport := newTestHub(t, func(options *errtrack.ClientOptions) {
		options.AutoSessionTracking = true
		options.SessionMode = errtrack.SessionModeRequest
	})

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	const n = 4
	for i := 0; i < n; i++ {
		rec := serve(router, "GET", "/ok")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.True(t, hub.Flush(time.Second))

	aggregates := transport.Aggregates()
	require.Len(t, aggregates, 1)

	var exited int64
	for _, bucket := range aggregates[0].Aggregates {
		exited += bucket.Exited
	}
	require.Equal(t, int64(n), exited)
}

func TestRequestSessions_ErroredOnCapturedError(t *testing.T) {
	hub, transport := newTestHub(t, func(options *errtrack.ClientOptions) {
		options.AutoSessionTracking = true
		options.SessionMode = errtrack.SessionModeRequest
	})

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusInternalServerError, errors.New("boom"))
	})

	serve(router, "GET", "/fail")
	require.True(t, hub.Flush(time.Second))

	aggregates := transport.Aggregates()
	require.Len(t, aggregates, 1)

	var errored int64
	for _, bucket := range aggregates[0].Aggregates {
		errored += bucket.Errored
	}
	require.Equal(t, int64(1), errored)
}

func TestSessionsNotTracked_InApplicationMode(t *testing.T) {
	hub, transport := newTestHub(t, func(options *errtrack.ClientOptions) {
		options.AutoSessionTracking = true
		options.SessionMode = errtrack.SessionModeApplication
	})

	router := chi.NewRouter()
	router.Use(New(WithHub(hub)).Handle)
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve(router, "GET", "/ok")
	require.True(t, hub.Flush(time.Second))
	require.Empty(t, transport.Aggregates())
}
