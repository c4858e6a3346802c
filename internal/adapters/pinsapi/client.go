package pinsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/pkg/httpx"
)

// Client implements ports.PinService against the pins HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
}

// New creates a pins API client. A trailing "/pins" on baseURL is tolerated.
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithClient(baseURL, httpx.NewClient(timeout))
}

// NewWithClient uses a caller-supplied fasthttp client.
func NewWithClient(baseURL string, c *fasthttp.Client) *Client {
	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, "/pins")
	return &Client{baseURL: base, http: c}
}

type mapPinsResponse struct {
	Pins []domain.Pin `json:"pins"`
}

// MapPins fetches the pins inside bbox.
func (c *Client) MapPins(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error) {
	u := c.baseURL + "/pins/map?bbox=" + url.QueryEscape(bbox.String())

	var resp mapPinsResponse
	if err := httpx.GetJSON(ctx, c.http, u, token, &resp); err != nil {
		return nil, fmt.Errorf("map pins: %w", err)
	}
	if resp.Pins == nil {
		resp.Pins = []domain.Pin{}
	}
	return resp.Pins, nil
}

// CreatePin posts a new pin. Any non-2xx response is a failure.
func (c *Client) CreatePin(ctx context.Context, token string, req *domain.CreatePinRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode pin: %w", err)
	}
	_, err = httpx.Do(ctx, c.http, httpx.Request{
		Method: fasthttp.MethodPost,
		URL:    c.baseURL + "/pins",
		Bearer: token,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("create pin: %w", err)
	}
	return nil
}
