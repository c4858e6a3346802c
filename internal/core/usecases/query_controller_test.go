package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/usecases"
)

func TestBoxFor(t *testing.T) {
	box := usecases.BoxFor(domain.Coordinates{Lat: 10, Lng: 20}, 0.04)
	if got, want := box.String(), "19.96,9.96,20.04,10.04"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if again := usecases.BoxFor(domain.Coordinates{Lat: 10, Lng: 20}, 0.04); again != box {
		t.Error("expected identical box for an unchanged center")
	}
}

func TestQueryController_Refresh(t *testing.T) {
	pins := &mockPins{
		mapPinsFn: func(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error) {
			if token != "tok" {
				t.Errorf("expected bearer tok, got %s", token)
			}
			return []domain.Pin{{ID: "p1", Location: domain.Coordinates{Lat: 41.91, Lng: 12.4964}}}, nil
		},
	}
	q := usecases.NewQueryController(pins, &mockTokens{}, usecases.QueryControllerConfig{})

	got, err := q.Refresh(context.Background(), rome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].DistanceM == nil || *got[0].DistanceM < 700 || *got[0].DistanceM > 900 {
		t.Errorf("unexpected pins %+v", got)
	}
	if q.Loading() {
		t.Error("loading must be cleared")
	}
	if box, ok := q.Box(); !ok || !box.Contains(rome) {
		t.Errorf("unexpected box %+v", box)
	}
}

func TestQueryController_NoTokenNoQuery(t *testing.T) {
	pins := &mockPins{}
	tokens := &mockTokens{
		acquireFn: func(ctx context.Context) (domain.SessionToken, error) {
			return domain.SessionToken{}, domain.NewError(domain.KindAuth, "token", domain.ErrUnauthenticated)
		},
	}
	q := usecases.NewQueryController(pins, tokens, usecases.QueryControllerConfig{})

	if _, err := q.Refresh(context.Background(), rome); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if n, _ := pins.calls(); n != 0 {
		t.Errorf("expected no pin query, got %d", n)
	}
	if q.Loading() {
		t.Error("loading must be cleared")
	}
}

func TestQueryController_FailureEmptiesPins(t *testing.T) {
	fail := false
	pins := &mockPins{
		mapPinsFn: func(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error) {
			if fail {
				return nil, errors.New("status 500")
			}
			return []domain.Pin{{ID: "p1", Location: rome}}, nil
		},
	}
	q := usecases.NewQueryController(pins, &mockTokens{}, usecases.QueryControllerConfig{})

	if _, err := q.Refresh(context.Background(), rome); err != nil {
		t.Fatal(err)
	}
	fail = true
	_, err := q.Refresh(context.Background(), rome)
	if domain.KindOf(err) != domain.KindQuery {
		t.Fatalf("expected query error, got %v", err)
	}
	if len(q.Pins()) != 0 || q.Loading() || q.LastError() == "" {
		t.Errorf("expected empty, idle, errored state: %d %v %q", len(q.Pins()), q.Loading(), q.LastError())
	}
}

// A slow response for an old center must not overwrite a newer one.
func TestQueryController_OutOfOrderResponses(t *testing.T) {
	paris := domain.Coordinates{Lat: 48.8566, Lng: 2.3522}
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})

	pins := &mockPins{
		mapPinsFn: func(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error) {
			if bbox.Contains(rome) {
				close(slowStarted)
				<-releaseSlow
				return []domain.Pin{{ID: "rome"}}, nil
			}
			return []domain.Pin{{ID: "paris", Location: paris}}, nil
		},
	}
	q := usecases.NewQueryController(pins, &mockTokens{}, usecases.QueryControllerConfig{})

	slowErr := make(chan error, 1)
	go func() {
		_, err := q.Refresh(context.Background(), rome)
		slowErr <- err
	}()
	<-slowStarted

	if _, err := q.Refresh(context.Background(), paris); err != nil {
		t.Fatal(err)
	}
	close(releaseSlow)

	if err := <-slowErr; !errors.Is(err, domain.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded for the stale query, got %v", err)
	}
	got := q.Pins()
	if len(got) != 1 || got[0].ID != "paris" {
		t.Errorf("expected the latest center's pins, got %+v", got)
	}
}

func TestQueryController_SupersededIsCancelled(t *testing.T) {
	started := make(chan struct{})
	var cancelled bool
	pins := &mockPins{
		mapPinsFn: func(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error) {
			if bbox.Contains(rome) {
				close(started)
				<-ctx.Done()
				cancelled = true
				return nil, ctx.Err()
			}
			return []domain.Pin{}, nil
		},
	}
	q := usecases.NewQueryController(pins, &mockTokens{}, usecases.QueryControllerConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := q.Refresh(context.Background(), rome)
		done <- err
	}()
	<-started
	q.Clear()

	if err := <-done; !errors.Is(err, domain.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
	if !cancelled {
		t.Error("expected the superseded request to be cancelled")
	}
}

func TestQueryController_RefreshActive(t *testing.T) {
	pins := &mockPins{}
	q := usecases.NewQueryController(pins, &mockTokens{}, usecases.QueryControllerConfig{})

	if _, err := q.RefreshActive(context.Background()); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error without a center, got %v", err)
	}
	if _, err := q.Refresh(context.Background(), rome); err != nil {
		t.Fatal(err)
	}
	if _, err := q.RefreshActive(context.Background()); err != nil {
		t.Fatal(err)
	}
	pins.mu.Lock()
	defer pins.mu.Unlock()
	if len(pins.queries) != 2 || pins.queries[0] != pins.queries[1] {
		t.Errorf("expected two identical queries, got %+v", pins.queries)
	}
}
