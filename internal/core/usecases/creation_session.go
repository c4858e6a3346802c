package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
	"github.com/samirrijal/brooks/internal/pkg/metrics"
	"github.com/samirrijal/brooks/internal/pkg/telemetry"
)

const maxReportedRecipients = 3

// ValidRecipientID reports whether s is a canonical RFC 4122 UUID of
// version 1 through 5.
func ValidRecipientID(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	v := id.Version()
	return v >= 1 && v <= 5 && id.Variant() == uuid.RFC4122
}

// ValidateDraft checks a draft before any network call is made.
func ValidateDraft(d domain.PinDraft) error {
	text := d.NormalizedText()
	switch {
	case text == "":
		return domain.ValidationError("pins.create", "Pin text is required")
	case domain.TextLength(text) > domain.MaxTextLength:
		return domain.ValidationError("pins.create", fmt.Sprintf("Pin text is limited to %d characters", domain.MaxTextLength))
	case !d.Audience.Valid():
		return domain.ValidationError("pins.create", fmt.Sprintf("Unknown audience %q", d.Audience))
	case !d.Reveal.Valid():
		return domain.ValidationError("pins.create", fmt.Sprintf("Unknown reveal type %q", d.Reveal))
	case !d.Precision.Valid():
		return domain.ValidationError("pins.create", fmt.Sprintf("Unknown map precision %q", d.Precision))
	case !d.Media.Valid():
		return domain.ValidationError("pins.create", fmt.Sprintf("Unknown media type %q", d.Media))
	case !d.Lifetime.Valid():
		return domain.ValidationError("pins.create", "Choose how long the pin lasts")
	case d.NotifyRadiusM < 0:
		return domain.ValidationError("pins.create", "Notify radius cannot be negative")
	}

	var invalid []string
	for _, id := range d.RecipientIDs {
		if !ValidRecipientID(id) {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		shown := invalid
		if len(shown) > maxReportedRecipients {
			shown = shown[:maxReportedRecipients]
		}
		msg := "Invalid UUID(s): " + strings.Join(shown, ", ")
		if len(invalid) > maxReportedRecipients {
			msg += "..."
		}
		return domain.ValidationError("pins.create", msg)
	}
	return nil
}

type CreationSessionConfig struct {
	Now    func() time.Time
	Logger *slog.Logger
	// OnCreated runs after a successful creation response, before Submit
	// returns. The orchestrator uses it to refresh the active area.
	OnCreated func(ctx context.Context)
}

// CreationSession holds the pin draft and submits it.
type CreationSession struct {
	pins   ports.PinService
	tokens TokenSource
	events ports.EventPublisher
	cfg    CreationSessionConfig

	mu         sync.Mutex
	draft      domain.PinDraft
	lastErr    string
	submitting bool
	changes    notifier
}

func NewCreationSession(pins ports.PinService, tokens TokenSource, events ports.EventPublisher, cfg CreationSessionConfig) *CreationSession {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CreationSession{pins: pins, tokens: tokens, events: events, cfg: cfg, draft: domain.DefaultDraft()}
}

func (c *CreationSession) Draft() domain.PinDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the form contents without validating them.
func (c *CreationSession) SetDraft(d domain.PinDraft) {
	c.mu.Lock()
	c.draft = d
	fns := c.changes.snapshot()
	c.mu.Unlock()
	fire(fns)
}

// Cancel discards the draft.
func (c *CreationSession) Cancel() {
	c.mu.Lock()
	c.draft = domain.DefaultDraft()
	c.lastErr = ""
	fns := c.changes.snapshot()
	c.mu.Unlock()
	fire(fns)
}

func (c *CreationSession) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *CreationSession) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *CreationSession) Subscribe(fn func()) {
	c.mu.Lock()
	c.changes.add(fn)
	c.mu.Unlock()
}

// Submit validates d and creates a pin at the given location. On failure
// the draft is kept for another attempt; on success it is reset.
func (c *CreationSession) Submit(ctx context.Context, d domain.PinDraft, at domain.Coordinates) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return domain.ValidationError("pins.create", "A pin is already being created")
	}
	c.draft = d
	if err := ValidateDraft(d); err != nil {
		c.lastErr = domain.UserMessage(err)
		fns := c.changes.snapshot()
		c.mu.Unlock()
		fire(fns)
		return err
	}
	if err := at.Validate(); err != nil {
		c.lastErr = err.Error()
		fns := c.changes.snapshot()
		c.mu.Unlock()
		fire(fns)
		return domain.ValidationError("pins.create", err.Error())
	}
	c.submitting = true
	c.lastErr = ""
	fns := c.changes.snapshot()
	c.mu.Unlock()
	fire(fns)

	err := c.create(ctx, d, at)
	metrics.PinsCreated.WithLabelValues(metrics.Result(err)).Inc()

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.lastErr = domain.UserMessage(err)
	} else {
		c.draft = domain.DefaultDraft()
	}
	fns = c.changes.snapshot()
	c.mu.Unlock()

	if err != nil {
		c.cfg.Logger.Warn("pin creation failed", "error", err)
		publish(ctx, c.events, c.cfg.Logger, domain.EventPinRejected, map[string]string{"error": err.Error()})
		fire(fns)
		return err
	}

	publish(ctx, c.events, c.cfg.Logger, domain.EventPinCreated, map[string]string{"position": at.String()})
	fire(fns)
	if c.cfg.OnCreated != nil {
		c.cfg.OnCreated(ctx)
	}
	return nil
}

func (c *CreationSession) create(ctx context.Context, d domain.PinDraft, at domain.Coordinates) error {
	tok, err := c.tokens.Acquire(ctx)
	if err != nil {
		return err
	}

	req := domain.BuildCreateRequest(d, at, c.cfg.Now())
	ctx, span := telemetry.Start(ctx, telemetry.SpanPinsCreate,
		attribute.String("audience", string(req.AudienceType)),
		attribute.Bool("acl", req.ACL != nil))
	err = c.pins.CreatePin(ctx, tok.Value, req)
	telemetry.End(span, err)
	if err != nil {
		return &domain.Error{Kind: domain.KindCreation, Op: "pins.create", Message: "Could not create pin", Err: err}
	}
	return nil
}
