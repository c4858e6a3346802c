package mapsurface

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// Provider names a map rendering engine.
type Provider string

const (
	ProviderLeaflet Provider = "leaflet"
	ProviderGoogle  Provider = "google"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderLeaflet, ProviderGoogle:
		return p, nil
	default:
		return "", fmt.Errorf("unknown map provider %q", s)
	}
}

// Label is the provider name shown in the HUD.
func (p Provider) Label() string {
	switch p {
	case ProviderGoogle:
		return "Google"
	default:
		return "Leaflet"
	}
}

var (
	ErrClosed       = errors.New("map surface closed")
	ErrUnknownEvent = errors.New("unknown map event")
)

// Callbacks is the engine-independent interaction contract. Every engine
// translates its native pointer events into these calls.
type Callbacks struct {
	OnDoubleActivate func(at domain.Coordinates)
	OnHoldStart      func(anchor domain.Coordinates, x, y float64)
	OnHoldMove       func(x, y float64)
	OnHoldEnd        func()
}

// Options carries the per-engine configuration.
type Options struct {
	LeafletTileURL     string
	LeafletAttribution string
	GoogleAPIKey       string
	Zoom               int
}

// BlurRadiusM is the radius of the area drawn for a blurred pin.
const BlurRadiusM = 150

// Marker is one rendered pin.
type Marker struct {
	ID        string             `json:"id"`
	Position  domain.Coordinates `json:"position"`
	Precision domain.Precision   `json:"precision"`
}

// Frame is what a surface currently shows. Document holds the engine-native
// marker layer.
type Frame struct {
	Provider    Provider           `json:"provider"`
	Label       string             `json:"label"`
	Configured  bool               `json:"configured"`
	Placeholder string             `json:"placeholder,omitempty"`
	Center      domain.Coordinates `json:"center"`
	Zoom        int                `json:"zoom"`
	Markers     []Marker           `json:"markers"`
	TileURL     string             `json:"tileUrl,omitempty"`
	Attribution string             `json:"attribution,omitempty"`
	ContentType string             `json:"contentType,omitempty"`
	Document    string             `json:"document,omitempty"`
}

// Surface is a map rendering backend.
type Surface interface {
	Provider() Provider
	Configured() bool
	// Render replaces the whole marker set and recenters.
	Render(center domain.Coordinates, pins []domain.Pin) error
	Frame() Frame
	// Dispatch feeds one engine-native pointer event. Events on an
	// unconfigured surface are ignored.
	Dispatch(raw []byte) error
	Close()
}

// New builds the surface for provider p.
func New(p Provider, opts Options, cb Callbacks) (Surface, error) {
	switch p {
	case ProviderLeaflet:
		return NewLeaflet(opts, cb), nil
	case ProviderGoogle:
		return NewGoogle(opts, cb), nil
	default:
		return nil, fmt.Errorf("unknown map provider %q", p)
	}
}

func markersFor(pins []domain.Pin) []Marker {
	out := make([]Marker, 0, len(pins))
	for _, p := range pins {
		out = append(out, Marker{ID: p.ID, Position: p.Location, Precision: p.MapPrecision})
	}
	return out
}

func placeholder(p Provider, missing string) string {
	return fmt.Sprintf("%s map unavailable: set %s", p.Label(), missing)
}

// point is the shared x/y payload of native pointer events.
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// dispatch routes a normalized event to the callbacks.
func dispatch(cb Callbacks, kind string, at *domain.Coordinates, px *point) error {
	needAt := func() error {
		if at == nil {
			return fmt.Errorf("%s event without coordinates", kind)
		}
		return at.Validate()
	}
	switch kind {
	case "dblclick":
		if err := needAt(); err != nil {
			return err
		}
		if cb.OnDoubleActivate != nil {
			cb.OnDoubleActivate(*at)
		}
	case "mousedown":
		if err := needAt(); err != nil {
			return err
		}
		if px == nil {
			px = &point{}
		}
		if cb.OnHoldStart != nil {
			cb.OnHoldStart(*at, px.X, px.Y)
		}
	case "mousemove":
		if px == nil {
			return fmt.Errorf("%s event without pixel position", kind)
		}
		if cb.OnHoldMove != nil {
			cb.OnHoldMove(px.X, px.Y)
		}
	case "mouseup", "mouseout", "dragstart":
		if cb.OnHoldEnd != nil {
			cb.OnHoldEnd()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	return nil
}
