package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
	"github.com/samirrijal/brooks/internal/pkg/metrics"
	"github.com/samirrijal/brooks/internal/pkg/telemetry"
)

const (
	DefaultFixTimeout     = 8 * time.Second
	DefaultGeocodeTimeout = 5 * time.Second
)

type LocationResolverConfig struct {
	FixTimeout     time.Duration
	GeocodeTimeout time.Duration
	Logger         *slog.Logger
}

// LocationResolver obtains one position fix per session and labels it with
// a best-effort reverse geocode.
type LocationResolver struct {
	geo    ports.Geolocator
	rev    ports.ReverseGeocoder
	events ports.EventPublisher
	cfg    LocationResolverConfig

	once sync.Once
	done chan struct{}

	mu       sync.RWMutex
	status   domain.LocationStatus
	location *domain.Location
	errMsg   string
	err      error
	override *domain.ThemeKey
	changes  notifier
}

// NewLocationResolver creates a resolver. rev and events may be nil.
func NewLocationResolver(geo ports.Geolocator, rev ports.ReverseGeocoder, events ports.EventPublisher, cfg LocationResolverConfig) *LocationResolver {
	if cfg.FixTimeout <= 0 {
		cfg.FixTimeout = DefaultFixTimeout
	}
	if cfg.GeocodeTimeout <= 0 {
		cfg.GeocodeTimeout = DefaultGeocodeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LocationResolver{
		geo:    geo,
		rev:    rev,
		events: events,
		cfg:    cfg,
		done:   make(chan struct{}),
		status: domain.LocationIdle,
	}
}

// Resolve runs the position fix. Only the first call does any work; later
// and concurrent callers wait for and receive the same outcome.
func (r *LocationResolver) Resolve(ctx context.Context) (*domain.Location, error) {
	r.once.Do(func() {
		go func() {
			defer close(r.done)
			r.resolve(context.WithoutCancel(ctx))
		}()
	})

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	loc := *r.location
	return &loc, nil
}

func (r *LocationResolver) resolve(ctx context.Context) {
	r.setStatus(domain.LocationLocating)

	fixCtx, cancel := context.WithTimeout(ctx, r.cfg.FixTimeout)
	fixCtx, span := telemetry.Start(fixCtx, telemetry.SpanLocate)
	pos, err := r.geo.CurrentPosition(fixCtx, domain.PositionOptions{HighAccuracy: true, Timeout: r.cfg.FixTimeout})
	if err == nil {
		err = pos.Validate()
	}
	if err != nil && fixCtx.Err() != nil && !errors.Is(err, domain.ErrTimeout) {
		err = errors.Join(domain.ErrTimeout, err)
	}
	telemetry.End(span, err)
	cancel()
	metrics.Geolocations.WithLabelValues(metrics.Result(err)).Inc()

	if err != nil {
		msg := locationMessage(err)
		r.cfg.Logger.Warn("location unavailable", "error", err)
		r.mu.Lock()
		r.status = domain.LocationError
		r.errMsg = msg
		r.err = &domain.Error{Kind: domain.KindLocation, Op: "locate", Message: msg, Err: err}
		fns := r.changes.snapshot()
		r.mu.Unlock()
		fire(fns)
		return
	}

	loc := &domain.Location{Coordinates: pos}
	if place := r.reverse(ctx, pos); place != nil {
		loc.Place = place
	}

	r.mu.Lock()
	r.status = domain.LocationReady
	r.location = loc
	fns := r.changes.snapshot()
	r.mu.Unlock()

	fields := map[string]string{"position": pos.String()}
	if loc.Place != nil {
		fields["place"] = loc.Place.Label()
	}
	publish(ctx, r.events, r.cfg.Logger, domain.EventLocated, fields)
	fire(fns)
}

// reverse labels pos. Any failure degrades to a coordinates-only location.
func (r *LocationResolver) reverse(ctx context.Context, pos domain.Coordinates) *domain.Place {
	if r.rev == nil {
		metrics.GeocodeDegraded.Inc()
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GeocodeTimeout)
	defer cancel()
	ctx, span := telemetry.Start(ctx, telemetry.SpanReverseGeocode,
		attribute.Float64("lat", pos.Lat), attribute.Float64("lng", pos.Lng))

	place, err := r.rev.Reverse(ctx, pos)
	telemetry.End(span, err)
	if err != nil {
		metrics.GeocodeDegraded.Inc()
		r.cfg.Logger.Info("reverse geocode failed, using coordinates only", "error", err)
		return nil
	}
	return place
}

func locationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Location permission denied"
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Location request timed out"
	case errors.Is(err, domain.ErrUnsupported):
		return "Geolocation is not supported"
	default:
		return "Location unavailable"
	}
}

func (r *LocationResolver) setStatus(s domain.LocationStatus) {
	r.mu.Lock()
	r.status = s
	fns := r.changes.snapshot()
	r.mu.Unlock()
	fire(fns)
}

func (r *LocationResolver) Status() domain.LocationStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Location returns the resolved fix, or nil before ready.
func (r *LocationResolver) Location() *domain.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.location == nil {
		return nil
	}
	loc := *r.location
	return &loc
}

// ErrorMessage is the human-readable failure reason in the error state.
func (r *LocationResolver) ErrorMessage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errMsg
}

// Theme returns the active theme and whether it is a user override. Without
// an override the theme follows the resolved city.
func (r *LocationResolver) Theme() (domain.ThemeKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.override != nil {
		return *r.override, true
	}
	if r.location != nil && r.location.Place != nil {
		return domain.ResolveTheme(r.location.Place.City), false
	}
	return domain.ThemeDefault, false
}

func (r *LocationResolver) SetThemeOverride(k domain.ThemeKey) {
	r.mu.Lock()
	r.override = &k
	fns := r.changes.snapshot()
	r.mu.Unlock()
	fire(fns)
}

func (r *LocationResolver) ClearThemeOverride() {
	r.mu.Lock()
	r.override = nil
	fns := r.changes.snapshot()
	r.mu.Unlock()
	fire(fns)
}

func (r *LocationResolver) Subscribe(fn func()) {
	r.mu.Lock()
	r.changes.add(fn)
	r.mu.Unlock()
}
