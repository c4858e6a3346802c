package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/brooks/internal/core/domain"
)

func TestCoordinates_Validate(t *testing.T) {
	cases := []struct {
		name    string
		c       domain.Coordinates
		wantErr bool
	}{
		{"rome", domain.Coordinates{Lat: 41.9028, Lng: 12.4964}, false},
		{"poles", domain.Coordinates{Lat: -90, Lng: 180}, false},
		{"lat too high", domain.Coordinates{Lat: 90.1, Lng: 0}, true},
		{"lng too low", domain.Coordinates{Lat: 0, Lng: -180.5}, true},
		{"nan", domain.Coordinates{Lat: math.NaN(), Lng: 0}, true},
		{"inf", domain.Coordinates{Lat: 0, Lng: math.Inf(1)}, true},
	}
	for _, tc := range cases {
		err := tc.c.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: expected error=%v, got %v", tc.name, tc.wantErr, err)
		}
		var ce *domain.CoordinateError
		if err != nil && !errors.As(err, &ce) {
			t.Errorf("%s: expected *CoordinateError, got %T", tc.name, err)
		}
	}
}

func TestBoundingBox_StringOrder(t *testing.T) {
	b := domain.BoundingBox{MinLng: 12.4564, MinLat: 41.8628, MaxLng: 12.5364, MaxLat: 41.9428}
	if got := b.String(); got != "12.4564,41.8628,12.5364,41.9428" {
		t.Errorf("unexpected wire form %q", got)
	}
}

func TestLifetime_ExpiresAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

	got := domain.Hours(24).ExpiresAt(now)
	if !got.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("expected now+24h, got %v", got)
	}

	perm := domain.Permanent().ExpiresAt(now)
	if perm.Format(domain.ExpiryLayout) != "2124-01-01T00:00:00.000Z" {
		t.Errorf("unexpected permanent sentinel %s", perm.Format(domain.ExpiryLayout))
	}
}

func TestLifetime_TextRoundTrip(t *testing.T) {
	var d struct {
		L domain.Lifetime `json:"l"`
	}
	if err := json.Unmarshal([]byte(`{"l":"permanent"}`), &d); err != nil {
		t.Fatal(err)
	}
	if !d.L.IsPermanent() {
		t.Error("expected permanent lifetime")
	}
	if err := json.Unmarshal([]byte(`{"l":"168h"}`), &d); err != nil {
		t.Fatal(err)
	}
	if d.L.IsPermanent() || d.L.HoursValue() != 168 {
		t.Errorf("expected 168h, got %s", d.L)
	}
	if _, err := domain.ParseLifetime("-3h"); err == nil {
		t.Error("expected error for negative lifetime")
	}
}

func TestParseLifetime_OnlyOfferedOptions(t *testing.T) {
	for _, h := range domain.LifetimeHourOptions {
		l, err := domain.ParseLifetime(fmt.Sprintf("%dh", h))
		if err != nil || l.HoursValue() != h {
			t.Errorf("%dh: got %v, %v", h, l, err)
		}
	}
	for _, s := range []string{"0", "48h", "3000000h", "9223372036854775807h"} {
		if _, err := domain.ParseLifetime(s); err == nil {
			t.Errorf("%s: expected error", s)
		}
	}

	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	for _, h := range domain.LifetimeHourOptions {
		if exp := domain.Hours(h).ExpiresAt(now); !exp.After(now) {
			t.Errorf("%dh: expiry %s is not after now", h, exp)
		}
	}
	if domain.Hours(3000000).Valid() {
		t.Error("an hour count outside the options must be invalid")
	}
}

func TestBuildCreateRequest_OptionalFields(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	draft := domain.DefaultDraft()
	draft.Text = "  hello  "

	req := domain.BuildCreateRequest(draft, domain.Coordinates{Lat: 1, Lng: 2}, now)
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	s := string(body)
	if strings.Contains(s, `"acl"`) {
		t.Errorf("acl must be omitted without recipients: %s", s)
	}
	if strings.Contains(s, `"notifyRadiusM"`) {
		t.Errorf("notifyRadiusM must be omitted when zero: %s", s)
	}
	if !strings.Contains(s, `"altitudeM":null`) {
		t.Errorf("altitudeM must be null: %s", s)
	}
	if !strings.Contains(s, `"text":"hello"`) {
		t.Errorf("text must be trimmed: %s", s)
	}
	if req.ExpiresAt != "2025-03-11T08:30:00.000Z" {
		t.Errorf("unexpected expiresAt %s", req.ExpiresAt)
	}

	draft.RecipientIDs = []string{"a"}
	draft.NotifyRadiusM = 250
	req = domain.BuildCreateRequest(draft, domain.Coordinates{}, now)
	if req.ACL == nil || len(req.ACL.UserIDs) != 1 {
		t.Error("expected acl with one user")
	}
	if req.NotifyRadiusM == nil || *req.NotifyRadiusM != 250 {
		t.Error("expected notifyRadiusM 250")
	}
}

func TestSplitList(t *testing.T) {
	got := domain.SplitList(" a, ,b\n c ,")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("unexpected split %v", got)
	}
}

func TestResolveTheme(t *testing.T) {
	cases := map[string]domain.ThemeKey{
		"Rome":       domain.ThemeRome,
		" roma ":     domain.ThemeRome,
		"TBILISI":    domain.ThemeTbilisi,
		"Paris":      domain.ThemeParis,
		"Bilbao":     domain.ThemeDefault,
		"":           domain.ThemeDefault,
		"Paris, FR ": domain.ThemeDefault,
	}
	for in, want := range cases {
		if got := domain.ResolveTheme(in); got != want {
			t.Errorf("ResolveTheme(%q) = %s, want %s", in, got, want)
		}
	}
	if domain.ThemeDefault.Label() != "Atlas" {
		t.Errorf("unexpected default label %q", domain.ThemeDefault.Label())
	}
}

func TestSessionToken_Expired(t *testing.T) {
	now := time.Now()
	if (domain.SessionToken{Value: "x"}).Expired(now) {
		t.Error("token without expiry must not expire")
	}
	if !(domain.SessionToken{Value: "x", ExpiresAt: now.Add(10 * time.Second)}).Expired(now) {
		t.Error("token inside skew must be expired")
	}
	if (domain.SessionToken{Value: "x", ExpiresAt: now.Add(time.Hour)}).Expired(now) {
		t.Error("fresh token must not be expired")
	}
}

func TestKindOf(t *testing.T) {
	err := domain.ValidationError("submit", "text is required")
	wrapped := errors.Join(errors.New("ctx"), err)
	if domain.KindOf(wrapped) != domain.KindValidation {
		t.Errorf("expected validation kind, got %q", domain.KindOf(wrapped))
	}
	if domain.UserMessage(err) != "text is required" {
		t.Errorf("unexpected message %q", domain.UserMessage(err))
	}
}
