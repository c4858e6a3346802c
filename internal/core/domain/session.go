package domain

import "time"

// TokenExpirySkew is how long before its expiry a token is treated as stale.
const TokenExpirySkew = 30 * time.Second

// AuthStatus is the token lifecycle as seen by the rest of the session.
type AuthStatus string

const (
	AuthUnauthenticated AuthStatus = "unauthenticated"
	AuthSecuring        AuthStatus = "securing"
	AuthAuthenticated   AuthStatus = "authenticated"
)

// SessionToken is an opaque bearer credential.
type SessionToken struct {
	Value     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token is past, or within the skew of, its expiry.
// A zero ExpiresAt never expires.
func (t SessionToken) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(TokenExpirySkew).Before(t.ExpiresAt)
}

// TokenGrant is what the identity provider hands back from a code or refresh grant.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    time.Duration
}

// User is the identity provider's profile of the signed-in user.
type User struct {
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// LocationStatus is the location resolver's state.
type LocationStatus string

const (
	LocationIdle     LocationStatus = "idle"
	LocationLocating LocationStatus = "locating"
	LocationReady    LocationStatus = "ready"
	LocationError    LocationStatus = "error"
)

// Place is a reverse-geocoded locality.
type Place struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Label renders "City, Country", whichever parts are known.
func (p Place) Label() string {
	switch {
	case p.City != "" && p.Country != "":
		return p.City + ", " + p.Country
	case p.City != "":
		return p.City
	default:
		return p.Country
	}
}

// Location is the outcome of a successful location resolution.
type Location struct {
	Coordinates Coordinates `json:"coordinates"`
	Place       *Place      `json:"place,omitempty"`
}

// PositionOptions tunes a one-shot position fix.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// SessionEventType names an audit event.
type SessionEventType string

const (
	EventSignedIn        SessionEventType = "signed_in"
	EventSignedOut       SessionEventType = "signed_out"
	EventTokenFailed     SessionEventType = "token_failed"
	EventLocated         SessionEventType = "located"
	EventPinCreated      SessionEventType = "pin_created"
	EventPinRejected     SessionEventType = "pin_rejected"
	EventProviderChanged SessionEventType = "provider_changed"
)

// SessionEvent is an audit record of something that happened in the session.
type SessionEvent struct {
	Type   SessionEventType  `json:"type"`
	At     time.Time         `json:"at"`
	Fields map[string]string `json:"fields,omitempty"`
}
