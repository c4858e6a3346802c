package domain

import (
	"fmt"
	"math"
	"strconv"
)

// DefaultBBoxDelta is the half-width in degrees of the viewport box queried
// around the active center.
const DefaultBBoxDelta = 0.04

// Coordinates represents a geographic coordinate (WGS 84).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CoordinateError reports an invalid latitude or longitude.
type CoordinateError struct {
	Field   string
	Value   float64
	Message string
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// Validate checks that both components are finite and within range.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) {
		return &CoordinateError{Field: "lat", Value: c.Lat, Message: "must be a finite number"}
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return &CoordinateError{Field: "lng", Value: c.Lng, Message: "must be a finite number"}
	}
	if c.Lat < -90 || c.Lat > 90 {
		return &CoordinateError{Field: "lat", Value: c.Lat, Message: "must be between -90 and 90"}
	}
	if c.Lng < -180 || c.Lng > 180 {
		return &CoordinateError{Field: "lng", Value: c.Lng, Message: "must be between -180 and 180"}
	}
	return nil
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lng)
}

// BoundingBox is an axis-aligned lat/lng rectangle.
type BoundingBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// String renders the box in the pins service wire order:
// minLng,minLat,maxLng,maxLat.
func (b BoundingBox) String() string {
	return formatFloat(b.MinLng) + "," + formatFloat(b.MinLat) + "," +
		formatFloat(b.MaxLng) + "," + formatFloat(b.MaxLat)
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Coordinates {
	return Coordinates{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
