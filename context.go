package errtrack

import "context"

type contextKey int

const hubContextKey contextKey = iota

// SetHubOnContext binds a hub to the context. Integrations use this to make
// a per-request hub the ambient one for the lifetime of the request.
func SetHubOnContext(ctx context.Context, hub *Hub) context.Context {
	return context.WithValue(ctx, hubContextKey, hub)
}

// HasHubOnContext reports whether a hub is bound to the context.
func HasHubOnContext(ctx context.Context) bool {
	_, ok := ctx.Value(hubContextKey).(*Hub)
	return ok
}

// GetHubFromContext returns the hub bound to the context, or nil.
func GetHubFromContext(ctx context.Context) *Hub {
	if hub, ok := ctx.Value(hubContextKey).(*Hub); ok {
		return hub
	}
	return nil
}

// HubFromContext returns the hub bound to the context, falling back to the
// process-wide hub. The fallback is intended for code running outside any
// request.
func HubFromContext(ctx context.Context) *Hub {
	if hub := GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return CurrentHub()
}
