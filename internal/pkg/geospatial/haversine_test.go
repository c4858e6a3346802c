package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/brooks/internal/pkg/geospatial"
)

func TestHaversine_RomeToParis(t *testing.T) {
	d := geospatial.Haversine(41.9028, 12.4964, 48.8566, 2.3522)
	// ~1105 km
	if d < 1_095_000 || d > 1_115_000 {
		t.Errorf("unexpected distance %.0f m", d)
	}
	if geospatial.Haversine(1, 1, 1, 1) != 0 {
		t.Error("distance to self must be zero")
	}
}

func TestDegreeBox(t *testing.T) {
	minLon, minLat, maxLon, maxLat := geospatial.DegreeBox(41.9028, 12.4964, 0.04)
	check := func(name string, got, want float64) {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}
	check("minLon", minLon, 12.4564)
	check("minLat", minLat, 41.8628)
	check("maxLon", maxLon, 12.5364)
	check("maxLat", maxLat, 41.9428)
}
