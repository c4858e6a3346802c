package geolocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/pkg/httpx"
)

// DefaultIPAPIURL is the ip-api.com JSON endpoint.
const DefaultIPAPIURL = "http://ip-api.com/json"

// IPAPI implements ports.Geolocator with a network-derived position fix.
type IPAPI struct {
	endpoint string
	http     *fasthttp.Client
}

// NewIPAPI creates a network geolocator. An empty endpoint uses DefaultIPAPIURL.
func NewIPAPI(endpoint string, timeout time.Duration) *IPAPI {
	return NewIPAPIWithClient(endpoint, httpx.NewClient(timeout))
}

// NewIPAPIWithClient uses a caller-supplied fasthttp client.
func NewIPAPIWithClient(endpoint string, c *fasthttp.Client) *IPAPI {
	if endpoint == "" {
		endpoint = DefaultIPAPIURL
	}
	return &IPAPI{endpoint: endpoint, http: c}
}

type ipapiResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// CurrentPosition returns a single fix bounded by opts.Timeout.
func (g *IPAPI) CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Coordinates, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var r ipapiResponse
	url := g.endpoint + "?fields=status,message,lat,lon"
	if err := httpx.GetJSON(ctx, g.http, url, "", &r); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Coordinates{}, domain.ErrTimeout
		}
		return domain.Coordinates{}, fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, err)
	}
	if r.Status != "success" {
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			msg = "lookup failed"
		}
		return domain.Coordinates{}, fmt.Errorf("%w: %s", domain.ErrPositionUnavailable, msg)
	}

	c := domain.Coordinates{Lat: r.Lat, Lng: r.Lon}
	if err := c.Validate(); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, err)
	}
	return c, nil
}
