package internal

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// GetSentryHubFromContextOrDefault is a version of sentry.GetHubFromContext which
// automatically falls back to sentry.CurrentHub if the given context has not been
// attached a hub.
//
// The transport attaches a cloned hub to the context of each round trip so that
// breadcrumbs from one round do not leak into the next. Listener callbacks and the
// debouncer run on contexts without a hub, hence the fallback.
//
// The returned pointer is always nonnil.
func GetSentryHubFromContextOrDefault(ctx context.Context) *sentry.Hub {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return hub
}

// RoundContext attaches a fresh hub for a single round trip, tagged with the connection position.
func RoundContext(ctx context.Context, pos string) context.Context {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("pos", pos)
	})
	return sentry.SetHubOnContext(ctx, hub)
}
