package gesture_test

import (
	"math"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/gesture"
)

// --- Tests ---

var rome = domain.Coordinates{Lat: 41.9028, Lng: 12.4964}

func newController(clk clock.Clock, commits *[]domain.Coordinates) *gesture.Controller {
	return gesture.New(gesture.Config{
		ChargeDuration: 1200 * time.Millisecond,
		TolerancePx:    12,
		Clock:          clk,
	}, func(c domain.Coordinates) { *commits = append(*commits, c) })
}

func TestHold_CommitsOnceAfterCharge(t *testing.T) {
	clk := clock.NewMock()
	var commits []domain.Coordinates
	c := newController(clk, &commits)

	c.HoldStart(rome, 100, 100)
	clk.Add(600 * time.Millisecond)

	st := c.State()
	if st.Phase != gesture.PhaseCharging || st.Ring == nil {
		t.Fatalf("expected charging with ring, got %+v", st)
	}
	if math.Abs(st.Ring.Progress-0.5) > 1e-9 {
		t.Errorf("expected progress 0.5, got %v", st.Ring.Progress)
	}
	if math.Abs(st.Ring.DashOffset-gesture.RingCircumference/2) > 1e-9 {
		t.Errorf("expected half dash offset, got %v", st.Ring.DashOffset)
	}

	clk.Add(600 * time.Millisecond)
	if len(commits) != 1 || commits[0] != rome {
		t.Fatalf("expected one commit at anchor, got %v", commits)
	}
	st = c.State()
	if st.Phase != gesture.PhaseIdle || st.LastOutcome != gesture.OutcomeCommitted {
		t.Errorf("expected idle after commit, got %+v", st)
	}

	// Releasing after the commit changes nothing.
	c.HoldEnd()
	if c.State().LastOutcome != gesture.OutcomeCommitted {
		t.Error("release after commit must not cancel")
	}
}

func TestHold_ReleaseBeforeChargeCancels(t *testing.T) {
	clk := clock.NewMock()
	var commits []domain.Coordinates
	c := newController(clk, &commits)

	c.HoldStart(rome, 0, 0)
	clk.Add(1199 * time.Millisecond)
	c.HoldEnd()
	clk.Add(time.Second)

	if len(commits) != 0 {
		t.Fatalf("expected no commit, got %v", commits)
	}
	if c.State().LastOutcome != gesture.OutcomeReleased {
		t.Errorf("expected released outcome, got %q", c.State().LastOutcome)
	}
}

func TestHold_EscapeCancels(t *testing.T) {
	clk := clock.NewMock()
	var commits []domain.Coordinates
	c := newController(clk, &commits)

	c.HoldStart(rome, 0, 0)
	c.Cancel()
	clk.Add(2 * time.Second)

	if len(commits) != 0 {
		t.Fatal("escape must prevent commit")
	}
	if c.State().LastOutcome != gesture.OutcomeEscaped {
		t.Errorf("expected escaped outcome, got %q", c.State().LastOutcome)
	}
}

func TestHold_MoveBeyondTolerance(t *testing.T) {
	clk := clock.NewMock()
	var commits []domain.Coordinates
	c := newController(clk, &commits)

	c.HoldStart(rome, 100, 100)
	c.HoldMove(105, 105) // ~7px, within tolerance
	if c.State().Phase != gesture.PhaseCharging {
		t.Fatal("small jitter must not cancel")
	}
	c.HoldMove(120, 100)
	if c.State().LastOutcome != gesture.OutcomeMoved {
		t.Fatalf("expected moved outcome, got %+v", c.State())
	}
	clk.Add(2 * time.Second)
	if len(commits) != 0 {
		t.Fatal("panned hold must not commit")
	}
}

func TestHold_NewHoldReplacesOld(t *testing.T) {
	clk := clock.NewMock()
	var commits []domain.Coordinates
	c := newController(clk, &commits)

	paris := domain.Coordinates{Lat: 48.8566, Lng: 2.3522}
	c.HoldStart(rome, 0, 0)
	clk.Add(800 * time.Millisecond)
	c.HoldStart(paris, 10, 10)
	clk.Add(800 * time.Millisecond)

	if len(commits) != 0 {
		t.Fatalf("replaced hold must not commit, got %v", commits)
	}
	clk.Add(400 * time.Millisecond)
	if len(commits) != 1 || commits[0] != paris {
		t.Fatalf("expected single commit at second anchor, got %v", commits)
	}
}

func TestHold_OnChangeCalled(t *testing.T) {
	clk := clock.NewMock()
	var changes int
	c := gesture.New(gesture.Config{Clock: clk, OnChange: func() { changes++ }}, nil)

	c.HoldStart(rome, 0, 0)
	c.HoldEnd()
	if changes != 2 {
		t.Errorf("expected 2 change notifications, got %d", changes)
	}
}

func TestNewRing_Clamps(t *testing.T) {
	r := gesture.NewRing(1, 2, 1.7)
	if r.Progress != 1 || r.DashOffset != 0 {
		t.Errorf("expected full ring, got %+v", r)
	}
	r = gesture.NewRing(1, 2, -1)
	if r.Progress != 0 || r.DashOffset != gesture.RingCircumference {
		t.Errorf("expected empty ring, got %+v", r)
	}
	if r.Radius != 32 {
		t.Errorf("expected radius 32, got %v", r.Radius)
	}
}
