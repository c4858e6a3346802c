package geolocation

import (
	"context"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// Static reports a fixed position. A nil position behaves like a device
// without geolocation support.
type Static struct {
	pos *domain.Coordinates
}

// NewStatic creates a fixed geolocator.
func NewStatic(pos *domain.Coordinates) *Static {
	return &Static{pos: pos}
}

func (s *Static) CurrentPosition(ctx context.Context, _ domain.PositionOptions) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, domain.ErrTimeout
	}
	if s.pos == nil {
		return domain.Coordinates{}, domain.ErrUnsupported
	}
	return *s.pos, nil
}
