package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
	"github.com/samirrijal/brooks/internal/pkg/geospatial"
	"github.com/samirrijal/brooks/internal/pkg/metrics"
	"github.com/samirrijal/brooks/internal/pkg/telemetry"
)

// TokenSource hands out a usable session token.
type TokenSource interface {
	Acquire(ctx context.Context) (domain.SessionToken, error)
}

// BoxFor returns the query box of half-width delta degrees around center.
func BoxFor(center domain.Coordinates, delta float64) domain.BoundingBox {
	minLng, minLat, maxLng, maxLat := geospatial.DegreeBox(center.Lat, center.Lng, delta)
	return domain.BoundingBox{MinLng: minLng, MinLat: minLat, MaxLng: maxLng, MaxLat: maxLat}
}

type QueryControllerConfig struct {
	BBoxDelta float64
	Logger    *slog.Logger
}

// QueryController keeps the pin set for the visible area. Every refresh is
// tagged with a generation; only the latest generation's response is applied.
type QueryController struct {
	pins   ports.PinService
	tokens TokenSource
	cfg    QueryControllerConfig

	mu      sync.RWMutex
	seq     uint64
	cancel  context.CancelFunc
	current []domain.Pin
	loading bool
	box     *domain.BoundingBox
	center  *domain.Coordinates
	lastErr string
	changes notifier
}

func NewQueryController(pins ports.PinService, tokens TokenSource, cfg QueryControllerConfig) *QueryController {
	if cfg.BBoxDelta <= 0 {
		cfg.BBoxDelta = domain.DefaultBBoxDelta
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QueryController{pins: pins, tokens: tokens, cfg: cfg, current: []domain.Pin{}}
}

// Refresh queries the pins around center, superseding any query in flight.
// A superseded call returns ErrSuperseded and leaves the state to its successor.
func (q *QueryController) Refresh(ctx context.Context, center domain.Coordinates) ([]domain.Pin, error) {
	return q.RefreshAt(ctx, func() domain.Coordinates { return center })
}

// RefreshAt is Refresh around the center returned by at. at is read in the
// same step that tags the query, so when every change of center is followed
// by a RefreshAt, the latest query is always for the latest center. at must
// not call back into the controller.
func (q *QueryController) RefreshAt(ctx context.Context, at func() domain.Coordinates) ([]domain.Pin, error) {
	q.mu.Lock()
	center := at()
	if err := center.Validate(); err != nil {
		q.mu.Unlock()
		return nil, &domain.Error{Kind: domain.KindQuery, Op: "pins.query", Message: err.Error(), Err: err}
	}
	box := BoxFor(center, q.cfg.BBoxDelta)
	q.seq++
	seq := q.seq
	if q.cancel != nil {
		q.cancel()
	}
	qctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.loading = true
	q.box = &box
	q.center = &center
	fns := q.changes.snapshot()
	q.mu.Unlock()
	fire(fns)
	defer cancel()

	tok, err := q.tokens.Acquire(qctx)
	if err != nil {
		q.mu.Lock()
		if q.seq != seq {
			q.mu.Unlock()
			return nil, domain.ErrSuperseded
		}
		q.loading = false
		fns := q.changes.snapshot()
		q.mu.Unlock()
		fire(fns)
		return nil, err
	}

	start := time.Now()
	qctx, span := telemetry.Start(qctx, telemetry.SpanPinsQuery, attribute.String("bbox", box.String()))
	pins, err := q.pins.MapPins(qctx, tok.Value, box)
	telemetry.End(span, err)
	metrics.PinQueryDuration.Observe(time.Since(start).Seconds())

	q.mu.Lock()
	if q.seq != seq {
		q.mu.Unlock()
		metrics.StaleResponses.Inc()
		q.cfg.Logger.Debug("discarding superseded pin response", "seq", seq)
		return nil, domain.ErrSuperseded
	}
	q.loading = false
	q.cancel = nil
	metrics.PinQueries.WithLabelValues(metrics.Result(err)).Inc()

	if err != nil {
		q.current = []domain.Pin{}
		q.lastErr = "Could not load pins"
		fns := q.changes.snapshot()
		q.mu.Unlock()
		q.cfg.Logger.Warn("pin query failed", "bbox", box.String(), "error", err)
		fire(fns)
		return nil, &domain.Error{Kind: domain.KindQuery, Op: "pins.query", Message: q.LastError(), Err: err}
	}

	for i := range pins {
		d := geospatial.Haversine(center.Lat, center.Lng, pins[i].Location.Lat, pins[i].Location.Lng)
		pins[i].DistanceM = &d
	}
	q.current = pins
	q.lastErr = ""
	out := append([]domain.Pin(nil), pins...)
	fns = q.changes.snapshot()
	q.mu.Unlock()
	fire(fns)
	return out, nil
}

// RefreshActive re-queries around the last requested center.
func (q *QueryController) RefreshActive(ctx context.Context) ([]domain.Pin, error) {
	q.mu.RLock()
	c := q.center
	q.mu.RUnlock()
	if c == nil {
		return nil, domain.ValidationError("pins.query", "no active center")
	}
	return q.Refresh(ctx, *c)
}

// Clear cancels any query in flight and empties the pin set.
func (q *QueryController) Clear() {
	q.mu.Lock()
	q.seq++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.current = []domain.Pin{}
	q.loading = false
	q.lastErr = ""
	fns := q.changes.snapshot()
	q.mu.Unlock()
	fire(fns)
}

func (q *QueryController) Pins() []domain.Pin {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]domain.Pin{}, q.current...)
}

func (q *QueryController) Loading() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.loading
}

// Box is the last computed query box.
func (q *QueryController) Box() (domain.BoundingBox, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.box == nil {
		return domain.BoundingBox{}, false
	}
	return *q.box, true
}

func (q *QueryController) LastError() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.lastErr
}

func (q *QueryController) Subscribe(fn func()) {
	q.mu.Lock()
	q.changes.add(fn)
	q.mu.Unlock()
}
