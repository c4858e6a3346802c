package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/mapsurface"
)

// SessionHandler returns the full view state.
func SessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Session.Snapshot())
	}
}

// LoginHandler redirects to the identity provider. ?signup=true opens the
// registration screen instead.
func LoginHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url := deps.Session.BeginLogin(c.QueryBool("signup", false))
		if c.Query("format") == "json" {
			return c.JSON(fiber.Map{"url": url})
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}

// CallbackHandler completes the authorization-code redirect.
func CallbackHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if e := c.Query("error"); e != "" {
			msg := c.Query("error_description", e)
			return errUnauthorized(c, msg)
		}
		code, state := c.Query("code"), c.Query("state")
		if code == "" || state == "" {
			return errBadRequest(c, "code and state are required")
		}
		if err := deps.Session.CompleteLogin(c.UserContext(), state, code); err != nil {
			LoggerFromCtx(c.UserContext()).Warn("login failed", "error", err)
			return errFromDomain(c, err)
		}
		return c.JSON(deps.Session.Snapshot())
	}
}

// RefreshTokenHandler retries token acquisition after a failure.
func RefreshTokenHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Session.RefreshToken(c.UserContext()); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(deps.Session.Snapshot())
	}
}

func LogoutHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Session.SignOut(c.UserContext())
		return c.JSON(deps.Session.Snapshot())
	}
}

type centerRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// CenterHandler moves the map and reloads the pins around the new center.
func CenterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req centerRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}
		err := deps.Session.Relocate(c.UserContext(), domain.Coordinates{Lat: *req.Lat, Lng: *req.Lng})
		if err != nil && domain.KindOf(err) != domain.KindQuery {
			return errFromDomain(c, err)
		}
		// A failed pin query is shown in the view state, the move itself succeeded.
		return c.JSON(deps.Session.Snapshot())
	}
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// ThemeHandler sets a theme override. "auto" returns to the location theme.
func ThemeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req themeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		name := strings.ToLower(strings.TrimSpace(req.Theme))
		if name == "auto" || name == "" {
			deps.Session.ClearThemeOverride()
			return c.JSON(deps.Session.Snapshot().Theme)
		}
		key, ok := domain.ParseThemeKey(name)
		if !ok {
			return errUnprocessable(c, "unknown theme: "+req.Theme)
		}
		deps.Session.SetThemeOverride(key)
		return c.JSON(deps.Session.Snapshot().Theme)
	}
}

// MapHandler returns the active frame. ?format=document returns the
// engine-native marker document alone.
func MapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := deps.Session.Frame()
		if c.Query("format") != "document" {
			return c.JSON(f)
		}
		if !f.Configured {
			return newError(c, fiber.StatusServiceUnavailable, "map_unconfigured", f.Placeholder)
		}
		c.Set(fiber.HeaderContentType, f.ContentType)
		return c.SendString(f.Document)
	}
}

type providerRequest struct {
	Provider string `json:"provider"`
}

func ProviderHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req providerRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		p, err := mapsurface.ParseProvider(req.Provider)
		if err != nil {
			return errUnprocessable(c, err.Error())
		}
		if err := deps.Session.SetProvider(c.UserContext(), p); err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(deps.Session.Frame())
	}
}

// MapEventsHandler feeds one engine-native pointer event to the active map.
func MapEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "event body is required")
		}
		if err := deps.Session.DispatchMapEvent(body); err != nil {
			switch {
			case errors.Is(err, mapsurface.ErrClosed):
				return errConflict(c, "map engine was replaced, resend the event")
			default:
				return errBadRequest(c, err.Error())
			}
		}
		vs := deps.Session.Snapshot()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"gesture":  vs.Gesture,
			"creation": vs.Creation,
			"center":   vs.Center,
		})
	}
}

func GestureCancelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Session.CancelGesture()
		return c.JSON(deps.Session.Snapshot().Gesture)
	}
}

type pinsResponse struct {
	Pins    []domain.Pin        `json:"pins"`
	BBox    *domain.BoundingBox `json:"bbox,omitempty"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
}

func pinsFor(deps *Dependencies) pinsResponse {
	vs := deps.Session.Snapshot()
	return pinsResponse{Pins: vs.Pins, BBox: vs.Box, Loading: vs.Map.Loading, Error: vs.Map.Error}
}

func ListPinsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(pinsFor(deps))
	}
}

// RefreshPinsHandler re-queries the current area.
func RefreshPinsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := deps.Session.RefreshPins(c.UserContext()); err != nil && !errors.Is(err, domain.ErrSuperseded) {
			return errFromDomain(c, err)
		}
		return c.JSON(pinsFor(deps))
	}
}

// draftRequest is the creation form as a client submits it. Recipient
// fields accept comma or newline separated lists.
type draftRequest struct {
	Text               string     `json:"text"`
	AudienceType       string     `json:"audienceType"`
	RevealType         string     `json:"revealType"`
	MapPrecision       string     `json:"mapPrecision"`
	MediaType          string     `json:"mediaType"`
	Lifetime           string     `json:"lifetime"`
	TimeCapsule        bool       `json:"timeCapsule"`
	Recipients         string     `json:"recipients"`
	ExternalRecipients string     `json:"externalRecipients"`
	NotifyRadiusM      int        `json:"notifyRadiusM"`
	RevealAt           *time.Time `json:"revealAt"`
}

func (r draftRequest) toDraft() (domain.PinDraft, error) {
	d := domain.DefaultDraft()
	d.Text = r.Text
	if r.AudienceType != "" {
		d.Audience = domain.AudienceType(strings.ToUpper(r.AudienceType))
	}
	if r.RevealType != "" {
		d.Reveal = domain.RevealType(strings.ToUpper(r.RevealType))
	}
	if r.MapPrecision != "" {
		d.Precision = domain.Precision(strings.ToUpper(r.MapPrecision))
	}
	if r.MediaType != "" {
		d.Media = domain.MediaType(strings.ToUpper(r.MediaType))
	}
	if r.Lifetime != "" {
		l, err := domain.ParseLifetime(r.Lifetime)
		if err != nil {
			return d, err
		}
		d.Lifetime = l
	}
	d.TimeCapsule = r.TimeCapsule
	d.RecipientIDs = domain.SplitList(r.Recipients)
	d.ExternalRecipients = domain.SplitList(r.ExternalRecipients)
	d.NotifyRadiusM = r.NotifyRadiusM
	d.RevealAt = r.RevealAt
	return d, nil
}

func GetDraftHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Session.Snapshot().Creation)
	}
}

// PutDraftHandler saves form edits without validating them.
func PutDraftHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req draftRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		d, err := req.toDraft()
		if err != nil {
			return errUnprocessable(c, err.Error())
		}
		deps.Session.SetDraft(d)
		return c.JSON(deps.Session.Snapshot().Creation)
	}
}

// SubmitPinHandler creates a pin from the request body, or from the saved
// draft when the body is empty.
func SubmitPinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := deps.Session.Draft()
		if len(c.Body()) > 0 {
			var req draftRequest
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
			var err error
			if d, err = req.toDraft(); err != nil {
				return errUnprocessable(c, err.Error())
			}
		}
		if err := deps.Session.SubmitPin(c.UserContext(), d); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(pinsFor(deps))
	}
}

func CancelDraftHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Session.CancelPin()
		return c.SendStatus(fiber.StatusNoContent)
	}
}
