package mapsurface

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// Leaflet is a tile-based engine. Its marker layer is a GeoJSON
// FeatureCollection, which Leaflet loads with L.geoJSON.
type Leaflet struct {
	opts Options
	cb   Callbacks

	mu      sync.Mutex
	closed  bool
	center  domain.Coordinates
	markers []Marker
	layer   *geojson.FeatureCollection
}

// NewLeaflet creates a Leaflet surface. It is configured only when both a
// tile URL and an attribution are set.
func NewLeaflet(opts Options, cb Callbacks) *Leaflet {
	return &Leaflet{opts: opts, cb: cb, layer: geojson.NewFeatureCollection()}
}

func (l *Leaflet) Provider() Provider { return ProviderLeaflet }

func (l *Leaflet) Configured() bool {
	return l.opts.LeafletTileURL != "" && l.opts.LeafletAttribution != ""
}

// Render drops the previous layer and builds a fresh one.
func (l *Leaflet) Render(center domain.Coordinates, pins []domain.Pin) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	l.center = center
	l.markers = markersFor(pins)
	if !l.Configured() {
		l.layer = geojson.NewFeatureCollection()
		return nil
	}

	fc := geojson.NewFeatureCollection()
	for _, m := range l.markers {
		f := geojson.NewFeature(orb.Point{m.Position.Lng, m.Position.Lat})
		f.ID = m.ID
		f.Properties["id"] = m.ID
		f.Properties["precision"] = string(m.Precision)
		if m.Precision == domain.PrecisionBlurred {
			f.Properties["blurRadiusM"] = BlurRadiusM
		}
		fc.Append(f)
	}
	l.layer = fc
	return nil
}

func (l *Leaflet) Frame() Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := Frame{
		Provider:   ProviderLeaflet,
		Label:      ProviderLeaflet.Label(),
		Configured: l.Configured(),
		Center:     l.center,
		Zoom:       l.opts.Zoom,
		Markers:    []Marker{},
	}
	if !f.Configured {
		f.Placeholder = placeholder(ProviderLeaflet, "a tile URL and attribution")
		return f
	}
	f.Markers = append(f.Markers, l.markers...)
	f.TileURL = l.opts.LeafletTileURL
	f.Attribution = l.opts.LeafletAttribution
	f.ContentType = "application/geo+json"
	if b, err := l.layer.MarshalJSON(); err == nil {
		f.Document = string(b)
	}
	return f
}

// leafletEvent mirrors L.LeafletMouseEvent.
type leafletEvent struct {
	Type   string `json:"type"`
	LatLng *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"latlng"`
	ContainerPoint *point `json:"containerPoint"`
}

func (l *Leaflet) Dispatch(raw []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !l.Configured() {
		return nil
	}

	var ev leafletEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("decode leaflet event: %w", err)
	}
	var at *domain.Coordinates
	if ev.LatLng != nil {
		at = &domain.Coordinates{Lat: ev.LatLng.Lat, Lng: ev.LatLng.Lng}
	}
	return dispatch(l.cb, ev.Type, at, ev.ContainerPoint)
}

func (l *Leaflet) Close() {
	l.mu.Lock()
	l.closed = true
	l.markers = nil
	l.layer = geojson.NewFeatureCollection()
	l.mu.Unlock()
}
