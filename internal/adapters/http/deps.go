package http

import (
	"context"

	"github.com/samirrijal/brooks/internal/session"
)

// Pinger is a backing store that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Broker reports whether the event broker connection is up.
type Broker interface {
	Connected() bool
}

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Session      *session.Orchestrator
	Cache        Pinger // nil when the in-memory cache is used
	Events       Broker // nil when no broker is configured
	AllowOrigins string
	Version      string
}
