package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/pkg/httpx"
)

// DefaultURL is BigDataCloud's keyless client-side reverse geocoding endpoint.
const DefaultURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"

// BigDataCloud implements ports.ReverseGeocoder.
type BigDataCloud struct {
	endpoint string
	language string
	http     *fasthttp.Client
}

// New creates a reverse geocoder. An empty endpoint uses DefaultURL.
func New(endpoint string, timeout time.Duration) *BigDataCloud {
	return NewWithClient(endpoint, httpx.NewClient(timeout))
}

// NewWithClient uses a caller-supplied fasthttp client.
func NewWithClient(endpoint string, c *fasthttp.Client) *BigDataCloud {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &BigDataCloud{endpoint: endpoint, language: "en", http: c}
}

type reverseResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
	CountryCode          string `json:"countryCode"`
}

// Reverse resolves c to a place. The city falls back to locality, then to
// the principal subdivision.
func (g *BigDataCloud) Reverse(ctx context.Context, c domain.Coordinates) (*domain.Place, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.Lng, 'f', -1, 64))
	q.Set("localityLanguage", g.language)

	var r reverseResponse
	if err := httpx.GetJSON(ctx, g.http, g.endpoint+"?"+q.Encode(), "", &r); err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}

	place := &domain.Place{
		City:    firstNonEmpty(r.City, r.Locality, r.PrincipalSubdivision),
		Country: strings.TrimSpace(r.CountryName),
	}
	return place, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
