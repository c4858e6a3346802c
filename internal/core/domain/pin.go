package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength is the maximum number of characters in a pin's text.
const MaxTextLength = 500

// ExpiryLayout is the ISO-8601 layout used for expiresAt on the wire.
const ExpiryLayout = "2006-01-02T15:04:05.000Z07:00"

// PermanentExpiry is the far-future sentinel sent for pins that never expire.
var PermanentExpiry = time.Date(2124, time.January, 1, 0, 0, 0, 0, time.UTC)

// Precision controls how exactly a pin's location is shown on the map.
type Precision string

const (
	PrecisionExact   Precision = "EXACT"
	PrecisionBlurred Precision = "BLURRED"
)

func (p Precision) Valid() bool {
	return p == PrecisionExact || p == PrecisionBlurred
}

// AudienceType decides who may discover a pin.
type AudienceType string

const (
	AudiencePublic    AudienceType = "PUBLIC"
	AudiencePrivate   AudienceType = "PRIVATE"
	AudienceFriends   AudienceType = "FRIENDS"
	AudienceFollowers AudienceType = "FOLLOWERS"
)

func (a AudienceType) Valid() bool {
	switch a {
	case AudiencePublic, AudiencePrivate, AudienceFriends, AudienceFollowers:
		return true
	}
	return false
}

// RevealType decides when a pin's content becomes readable.
type RevealType string

const (
	RevealVisibleAlways RevealType = "VISIBLE_ALWAYS"
	RevealReachToReveal RevealType = "REACH_TO_REVEAL"
)

func (r RevealType) Valid() bool {
	return r == RevealVisibleAlways || r == RevealReachToReveal
}

// MediaType is the kind of attachment selected in the draft.
type MediaType string

const (
	MediaNone  MediaType = "NONE"
	MediaPhoto MediaType = "PHOTO"
	MediaVideo MediaType = "VIDEO"
	MediaAudio MediaType = "AUDIO"
	MediaLink  MediaType = "LINK"
)

func (m MediaType) Valid() bool {
	switch m {
	case MediaNone, MediaPhoto, MediaVideo, MediaAudio, MediaLink:
		return true
	}
	return false
}

// LifetimeHourOptions are the finite lifetimes offered by the form.
var LifetimeHourOptions = []int{1, 6, 24, 168, 720}

// Pin is a geotagged note as returned by the map query.
type Pin struct {
	ID           string      `json:"id"`
	Location     Coordinates `json:"location"`
	MapPrecision Precision   `json:"mapPrecision"`
	DistanceM    *float64    `json:"distanceM,omitempty"` // computed field
}

// Lifetime is either a finite number of hours or permanent.
type Lifetime struct {
	hours     int
	permanent bool
}

// Hours returns a finite lifetime.
func Hours(h int) Lifetime { return Lifetime{hours: h} }

// Permanent returns a lifetime that never expires.
func Permanent() Lifetime { return Lifetime{permanent: true} }

func (l Lifetime) IsPermanent() bool { return l.permanent }

func (l Lifetime) HoursValue() int { return l.hours }

// Valid reports whether l is permanent or one of LifetimeHourOptions.
func (l Lifetime) Valid() bool {
	if l.permanent {
		return true
	}
	return slices.Contains(LifetimeHourOptions, l.hours)
}

// ExpiresAt resolves the lifetime against now.
func (l Lifetime) ExpiresAt(now time.Time) time.Time {
	if l.permanent {
		return PermanentExpiry
	}
	return now.Add(time.Duration(l.hours) * time.Hour).UTC()
}

func (l Lifetime) String() string {
	if l.permanent {
		return "permanent"
	}
	return fmt.Sprintf("%dh", l.hours)
}

// MarshalText encodes the lifetime as "permanent" or "<n>h".
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts "permanent", "<n>h" or a bare hour count.
func (l *Lifetime) UnmarshalText(b []byte) error {
	parsed, err := ParseLifetime(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLifetime parses the textual lifetime form.
func ParseLifetime(s string) (Lifetime, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "permanent" {
		return Permanent(), nil
	}
	var h int
	if _, err := fmt.Sscanf(strings.TrimSuffix(s, "h"), "%d", &h); err != nil {
		return Lifetime{}, fmt.Errorf("invalid lifetime %q", s)
	}
	if l := Hours(h); l.Valid() {
		return l, nil
	}
	return Lifetime{}, fmt.Errorf("lifetime must be permanent or one of %v hours, got %d", LifetimeHourOptions, h)
}

// PinDraft is the in-progress creation form.
type PinDraft struct {
	Text               string       `json:"text"`
	Audience           AudienceType `json:"audienceType"`
	Reveal             RevealType   `json:"revealType"`
	Precision          Precision    `json:"mapPrecision"`
	Lifetime           Lifetime     `json:"lifetime"`
	Media              MediaType    `json:"mediaType"`
	TimeCapsule        bool         `json:"timeCapsule"`
	RecipientIDs       []string     `json:"recipientIds,omitempty"`
	ExternalRecipients []string     `json:"externalRecipients,omitempty"`
	NotifyRadiusM      int          `json:"notifyRadiusM,omitempty"`
	RevealAt           *time.Time   `json:"revealAt,omitempty"`
}

// DefaultDraft returns the form's initial values.
func DefaultDraft() PinDraft {
	return PinDraft{
		Audience:  AudiencePublic,
		Reveal:    RevealVisibleAlways,
		Precision: PrecisionExact,
		Lifetime:  Hours(24),
		Media:     MediaNone,
	}
}

// NormalizedText returns the trimmed pin text.
func (d PinDraft) NormalizedText() string {
	return strings.TrimSpace(d.Text)
}

// SplitList splits comma or newline separated input into trimmed, non-empty items.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// TextLength counts characters, not bytes.
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// PinACL restricts a pin to specific users.
type PinACL struct {
	UserIDs []string `json:"userIds"`
}

// PinLocation is the location part of a creation request.
type PinLocation struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	AltitudeM *float64 `json:"altitudeM"`
}

// CreatePinRequest is the JSON body accepted by POST /pins.
type CreatePinRequest struct {
	Text          string       `json:"text"`
	AudienceType  AudienceType `json:"audienceType"`
	RevealType    RevealType   `json:"revealType"`
	ExpiresAt     string       `json:"expiresAt"`
	MapPrecision  Precision    `json:"mapPrecision"`
	FutureSelf    bool         `json:"futureSelf"`
	Location      PinLocation  `json:"location"`
	ACL           *PinACL      `json:"acl,omitempty"`
	NotifyRadiusM *int         `json:"notifyRadiusM,omitempty"`
	RevealAt      *string      `json:"revealAt,omitempty"`
}

// BuildCreateRequest maps a draft onto the wire contract. It does not validate.
func BuildCreateRequest(d PinDraft, at Coordinates, now time.Time) *CreatePinRequest {
	req := &CreatePinRequest{
		Text:         d.NormalizedText(),
		AudienceType: d.Audience,
		RevealType:   d.Reveal,
		ExpiresAt:    d.Lifetime.ExpiresAt(now).Format(ExpiryLayout),
		MapPrecision: d.Precision,
		FutureSelf:   d.TimeCapsule,
		Location:     PinLocation{Lat: at.Lat, Lng: at.Lng},
	}
	if len(d.RecipientIDs) > 0 {
		ids := make([]string, len(d.RecipientIDs))
		copy(ids, d.RecipientIDs)
		req.ACL = &PinACL{UserIDs: ids}
	}
	if d.NotifyRadiusM > 0 {
		r := d.NotifyRadiusM
		req.NotifyRadiusM = &r
	}
	if d.RevealAt != nil {
		s := d.RevealAt.UTC().Format(ExpiryLayout)
		req.RevealAt = &s
	}
	return req
}
