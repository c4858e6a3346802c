package gesture

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/pkg/metrics"
)

const (
	// DefaultChargeDuration is how long a press must be held to commit.
	DefaultChargeDuration = 1200 * time.Millisecond
	// DefaultTolerancePx is how far the pointer may drift before the hold
	// counts as a pan.
	DefaultTolerancePx = 12.0

	// RingRadius is the progress ring radius in pixels.
	RingRadius = 32.0
)

// RingCircumference is the full stroke length of the progress ring.
var RingCircumference = 2 * math.Pi * RingRadius

// Phase is the controller state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseCharging Phase = "charging"
)

// Outcome records how the last hold ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCommitted Outcome = "committed"
	OutcomeReleased  Outcome = "released"
	OutcomeEscaped   Outcome = "escaped"
	OutcomeMoved     Outcome = "moved"
	OutcomeReplaced  Outcome = "replaced"
)

// Session is one live press.
type Session struct {
	ID        uint64             `json:"id"`
	Anchor    domain.Coordinates `json:"anchor"`
	ScreenX   float64            `json:"screenX"`
	ScreenY   float64            `json:"screenY"`
	StartedAt time.Time          `json:"startedAt"`
}

// Ring is the progress indicator drawn around the press point.
type Ring struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Radius        float64 `json:"radius"`
	Circumference float64 `json:"circumference"`
	DashOffset    float64 `json:"dashOffset"`
	Progress      float64 `json:"progress"`
}

// State is a snapshot of the controller.
type State struct {
	Phase       Phase    `json:"phase"`
	Session     *Session `json:"session,omitempty"`
	Ring        *Ring    `json:"ring,omitempty"`
	LastOutcome Outcome  `json:"lastOutcome,omitempty"`
}

// Config tunes a Controller. Clock drives charge timing and defaults to the
// wall clock.
type Config struct {
	ChargeDuration time.Duration
	TolerancePx    float64
	Clock          clock.Clock
	Logger         *slog.Logger
	// OnChange is called, outside the lock, after every state transition.
	OnChange func()
}

// Controller turns a sustained press into a single commit. At most one
// session is live; the phase field is the only latch both the charge timer
// and the release path consult, so a hold commits or cancels exactly once.
type Controller struct {
	cfg      Config
	onCommit func(domain.Coordinates)

	mu      sync.Mutex
	phase   Phase
	session *Session
	timer   *clock.Timer
	nextID  uint64
	last    Outcome
}

// New creates a controller that calls onCommit with the anchor of each
// completed hold.
func New(cfg Config, onCommit func(domain.Coordinates)) *Controller {
	if cfg.ChargeDuration <= 0 {
		cfg.ChargeDuration = DefaultChargeDuration
	}
	if cfg.TolerancePx <= 0 {
		cfg.TolerancePx = DefaultTolerancePx
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{cfg: cfg, onCommit: onCommit, phase: PhaseIdle}
}

// HoldStart begins charging at anchor. A live session is cancelled first.
func (c *Controller) HoldStart(anchor domain.Coordinates, x, y float64) {
	c.mu.Lock()
	if c.phase == PhaseCharging {
		c.cancelLocked(OutcomeReplaced)
	}
	c.nextID++
	id := c.nextID
	c.session = &Session{ID: id, Anchor: anchor, ScreenX: x, ScreenY: y, StartedAt: c.cfg.Clock.Now()}
	c.phase = PhaseCharging
	c.timer = c.cfg.Clock.AfterFunc(c.cfg.ChargeDuration, func() { c.complete(id) })
	c.mu.Unlock()

	c.cfg.Logger.Debug("hold started", "session", id, "anchor", anchor.String())
	c.changed()
}

// HoldMove cancels the live session if the pointer left the tolerance radius.
func (c *Controller) HoldMove(x, y float64) {
	c.mu.Lock()
	if c.phase != PhaseCharging {
		c.mu.Unlock()
		return
	}
	if math.Hypot(x-c.session.ScreenX, y-c.session.ScreenY) <= c.cfg.TolerancePx {
		c.mu.Unlock()
		return
	}
	c.cancelLocked(OutcomeMoved)
	c.mu.Unlock()
	c.changed()
}

// HoldEnd cancels a hold released before the charge completed.
func (c *Controller) HoldEnd() {
	c.cancel(OutcomeReleased)
}

// Cancel aborts the live session (escape key).
func (c *Controller) Cancel() {
	c.cancel(OutcomeEscaped)
}

func (c *Controller) cancel(o Outcome) {
	c.mu.Lock()
	if c.phase != PhaseCharging {
		c.mu.Unlock()
		return
	}
	c.cancelLocked(o)
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) cancelLocked(o Outcome) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cfg.Logger.Debug("hold cancelled", "session", c.session.ID, "outcome", string(o))
	c.session = nil
	c.last = o
	c.phase = PhaseIdle
	metrics.Gestures.WithLabelValues(string(o)).Inc()
}

func (c *Controller) complete(id uint64) {
	c.mu.Lock()
	if c.phase != PhaseCharging || c.session == nil || c.session.ID != id {
		c.mu.Unlock()
		return
	}
	anchor := c.session.Anchor
	c.timer = nil
	c.session = nil
	c.last = OutcomeCommitted
	c.phase = PhaseIdle
	c.mu.Unlock()

	metrics.Gestures.WithLabelValues(string(OutcomeCommitted)).Inc()
	c.cfg.Logger.Debug("hold committed", "session", id, "anchor", anchor.String())
	if c.onCommit != nil {
		c.onCommit(anchor)
	}
	c.changed()
}

// State returns a snapshot, including ring progress for a live session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{Phase: c.phase, LastOutcome: c.last}
	if c.session == nil {
		return st
	}
	s := *c.session
	st.Session = &s
	progress := float64(c.cfg.Clock.Now().Sub(s.StartedAt)) / float64(c.cfg.ChargeDuration)
	st.Ring = NewRing(s.ScreenX, s.ScreenY, progress)
	return st
}

// Close stops any pending timer without committing.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.session = nil
	c.phase = PhaseIdle
	c.mu.Unlock()
}

func (c *Controller) changed() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}

// NewRing builds the ring for a progress value, clamped to [0, 1].
func NewRing(x, y, progress float64) *Ring {
	progress = math.Max(0, math.Min(1, progress))
	return &Ring{
		X:             x,
		Y:             y,
		Radius:        RingRadius,
		Circumference: RingCircumference,
		DashOffset:    RingCircumference * (1 - progress),
		Progress:      progress,
	}
}
