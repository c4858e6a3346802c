package mapsurface

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"sync"

	"github.com/twpayne/go-kml/v2"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// Google is the Maps JavaScript API engine. Its marker layer is a KML
// document, loadable through google.maps.KmlLayer.
type Google struct {
	opts Options
	cb   Callbacks

	mu      sync.Mutex
	closed  bool
	center  domain.Coordinates
	markers []Marker
	doc     []byte
}

// NewGoogle creates a Google surface. It is configured only with an API key.
func NewGoogle(opts Options, cb Callbacks) *Google {
	return &Google{opts: opts, cb: cb}
}

func (g *Google) Provider() Provider { return ProviderGoogle }

func (g *Google) Configured() bool { return g.opts.GoogleAPIKey != "" }

// Render drops the previous placemarks and writes a fresh document.
func (g *Google) Render(center domain.Coordinates, pins []domain.Pin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	g.center = center
	g.markers = markersFor(pins)
	g.doc = nil
	if !g.Configured() {
		return nil
	}

	placemarks := make([]kml.Element, 0, len(g.markers)+1)
	placemarks = append(placemarks, kml.Name("Pins"))
	for _, m := range g.markers {
		children := []kml.Element{
			kml.Name(m.ID),
			kml.Description(string(m.Precision)),
		}
		if m.Precision == domain.PrecisionBlurred {
			d := kml.Data(kml.Value(strconv.Itoa(BlurRadiusM)))
			d.Attr = append(d.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: "blurRadiusM"})
			children = append(children, kml.ExtendedData(d))
		}
		children = append(children, kml.Point(
			kml.Coordinates(kml.Coordinate{Lon: m.Position.Lng, Lat: m.Position.Lat}),
		))
		placemarks = append(placemarks, kml.Placemark(children...))
	}

	var buf bytes.Buffer
	if err := kml.KML(kml.Document(placemarks...)).WriteIndent(&buf, "", "  "); err != nil {
		return fmt.Errorf("write kml: %w", err)
	}
	g.doc = buf.Bytes()
	return nil
}

func (g *Google) Frame() Frame {
	g.mu.Lock()
	defer g.mu.Unlock()

	f := Frame{
		Provider:   ProviderGoogle,
		Label:      ProviderGoogle.Label(),
		Configured: g.Configured(),
		Center:     g.center,
		Zoom:       g.opts.Zoom,
		Markers:    []Marker{},
	}
	if !f.Configured {
		f.Placeholder = placeholder(ProviderGoogle, "an API key")
		return f
	}
	f.Markers = append(f.Markers, g.markers...)
	f.ContentType = "application/vnd.google-earth.kml+xml"
	f.Document = string(g.doc)
	return f
}

// googleEvent mirrors google.maps.MapMouseEvent serialized by the shell.
type googleEvent struct {
	Type   string `json:"type"`
	LatLng *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"latLng"`
	Pixel *point `json:"pixel"`
}

func (g *Google) Dispatch(raw []byte) error {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !g.Configured() {
		return nil
	}

	var ev googleEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("decode google event: %w", err)
	}
	var at *domain.Coordinates
	if ev.LatLng != nil {
		at = &domain.Coordinates{Lat: ev.LatLng.Lat, Lng: ev.LatLng.Lng}
	}
	return dispatch(g.cb, ev.Type, at, ev.Pixel)
}

func (g *Google) Close() {
	g.mu.Lock()
	g.closed = true
	g.markers = nil
	g.doc = nil
	g.mu.Unlock()
}
