package ports

import (
	"context"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// IdentityProvider issues and revokes session tokens.
type IdentityProvider interface {
	// LoginURL returns the hosted login page to redirect the user to.
	LoginURL(state string, signup bool) string
	// Exchange trades an authorization code for a token grant.
	Exchange(ctx context.Context, code string) (*domain.TokenGrant, error)
	// AcquireToken obtains a fresh access token for the given scopes
	// without user interaction.
	AcquireToken(ctx context.Context, scopes []string) (*domain.TokenGrant, error)
	// Revoke invalidates the session at the provider.
	Revoke(ctx context.Context) error
	// UserInfo returns the profile of the token's subject.
	UserInfo(ctx context.Context, accessToken string) (*domain.User, error)
}

// Geolocator produces a one-shot position fix.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Coordinates, error)
}

// ReverseGeocoder maps coordinates to a named place.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c domain.Coordinates) (*domain.Place, error)
}

// PinService is the remote pins HTTP API.
type PinService interface {
	MapPins(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error)
	CreatePin(ctx context.Context, token string, req *domain.CreatePinRequest) error
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// CacheService provides advisory key/value storage with expiry.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
