package session

import (
	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/gesture"
	"github.com/samirrijal/brooks/internal/mapsurface"
)

// Gate is the top-level screen. Only authentication gates the experience;
// location, query and creation failures are shown inside the map.
type Gate string

const (
	GateSignIn   Gate = "sign_in"
	GateSecuring Gate = "securing"
	GateMap      Gate = "map"
)

// LocatingLabel is shown until the location resolver settles.
const LocatingLabel = "Locating city"

type AuthView struct {
	Status domain.AuthStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
	User   *domain.User      `json:"user,omitempty"`
}

type LocationView struct {
	Status      domain.LocationStatus `json:"status"`
	Label       string                `json:"label"`
	Error       string                `json:"error,omitempty"`
	Coordinates *domain.Coordinates   `json:"coordinates,omitempty"`
}

type ThemeView struct {
	Key        domain.ThemeKey `json:"key"`
	Label      string          `json:"label"`
	Overridden bool            `json:"overridden"`
}

type MapView struct {
	Provider    mapsurface.Provider `json:"provider"`
	Label       string              `json:"label"`
	Configured  bool                `json:"configured"`
	Placeholder string              `json:"placeholder,omitempty"`
	PinCount    int                 `json:"pinCount"`
	Loading     bool                `json:"loading"`
	Error       string              `json:"error,omitempty"`
}

type CreationView struct {
	Open       bool                `json:"open"`
	Location   *domain.Coordinates `json:"location,omitempty"`
	Draft      domain.PinDraft     `json:"draft"`
	Submitting bool                `json:"submitting"`
	Error      string              `json:"error,omitempty"`
}

// ViewState is everything a client needs to draw the session.
type ViewState struct {
	Gate     Gate                `json:"gate"`
	Auth     AuthView            `json:"auth"`
	Center   domain.Coordinates  `json:"center"`
	Location LocationView        `json:"location"`
	Theme    ThemeView           `json:"theme"`
	Map      MapView             `json:"map"`
	Pins     []domain.Pin        `json:"pins"`
	Box      *domain.BoundingBox `json:"bbox,omitempty"`
	Gesture  gesture.State       `json:"gesture"`
	Creation CreationView        `json:"creation"`
}

func gateFor(s domain.AuthStatus) Gate {
	switch s {
	case domain.AuthAuthenticated:
		return GateMap
	case domain.AuthSecuring:
		return GateSecuring
	default:
		return GateSignIn
	}
}
