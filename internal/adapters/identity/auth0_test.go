package identity_test

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/samirrijal/brooks/internal/adapters/identity"
	"github.com/samirrijal/brooks/internal/pkg/httpx"
)

var testCfg = identity.Config{
	Domain:      "tenant.test",
	ClientID:    "cid",
	Audience:    "https://pins.api",
	RedirectURI: "http://localhost:8787/v1/auth/callback",
}

func newClient(t *testing.T, h fasthttp.RequestHandler) *identity.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, h) }()
	t.Cleanup(func() { _ = ln.Close() })

	hc := httpx.NewClient(time.Second)
	hc.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	cfg := testCfg
	cfg.Domain = "http://tenant.test"
	return identity.NewWithClient(cfg, hc)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoginURL(t *testing.T) {
	c := identity.NewWithClient(testCfg, nil)

	u, err := url.Parse(c.LoginURL("st-1", true))
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "https" || u.Host != "tenant.test" || u.Path != "/authorize" {
		t.Errorf("unexpected login url %s", u)
	}
	q := u.Query()
	if q.Get("state") != "st-1" || q.Get("screen_hint") != "signup" {
		t.Errorf("unexpected query %v", q)
	}
	if !strings.Contains(q.Get("scope"), "offline_access") {
		t.Errorf("expected offline_access scope, got %q", q.Get("scope"))
	}

	u, _ = url.Parse(c.LoginURL("st-2", false))
	if u.Query().Has("screen_hint") {
		t.Error("screen_hint must only be set for signup")
	}
}

func TestAcquireToken_RequiresLogin(t *testing.T) {
	c := identity.NewWithClient(testCfg, nil)
	_, err := c.AcquireToken(context.Background(), []string{"openid"})
	if !errors.Is(err, identity.ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestExchangeThenRefresh(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	access := signed(t, exp)

	var grants []string
	c := newClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/oauth/token" {
			ctx.SetStatusCode(404)
			return
		}
		args := ctx.PostArgs()
		grants = append(grants, string(args.Peek("grant_type")))
		if string(args.Peek("grant_type")) == "refresh_token" && string(args.Peek("refresh_token")) != "rt-1" {
			ctx.SetStatusCode(403)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"access_token":"` + access + `","refresh_token":"rt-1","token_type":"Bearer"}`)
	})

	g, err := c.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatal(err)
	}
	if g.AccessToken != access {
		t.Error("unexpected access token")
	}
	// expires_in absent: the exp claim is used instead.
	if g.ExpiresIn < 14*time.Minute || g.ExpiresIn > 15*time.Minute {
		t.Errorf("expected ~15m expiry from exp claim, got %s", g.ExpiresIn)
	}

	if _, err := c.AcquireToken(context.Background(), []string{"openid", "offline_access"}); err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 || grants[0] != "authorization_code" || grants[1] != "refresh_token" {
		t.Errorf("unexpected grant sequence %v", grants)
	}
}

func TestRevoke_ForgetsRefreshToken(t *testing.T) {
	var revoked bool
	c := newClient(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/oauth/token":
			ctx.SetBodyString(`{"access_token":"opaque","refresh_token":"rt-1","expires_in":900}`)
		case "/oauth/revoke":
			revoked = strings.Contains(string(ctx.PostBody()), "rt-1")
		}
	})

	if _, err := c.Exchange(context.Background(), "code"); err != nil {
		t.Fatal(err)
	}
	if err := c.Revoke(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Error("expected revoke call with refresh token")
	}
	if _, err := c.AcquireToken(context.Background(), nil); !errors.Is(err, identity.ErrNoRefreshToken) {
		t.Errorf("expected login required after revoke, got %v", err)
	}
}

func TestRevoke_DuringExchangeKeepsSignedOut(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	c := newClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/oauth/token" {
			return
		}
		close(entered)
		<-release
		ctx.SetBodyString(`{"access_token":"opaque","refresh_token":"rt-late","expires_in":900}`)
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Exchange(context.Background(), "code")
		done <- err
	}()

	<-entered
	if err := c.Revoke(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if _, err := c.AcquireToken(context.Background(), nil); !errors.Is(err, identity.ErrNoRefreshToken) {
		t.Errorf("expected login required after revoke, got %v", err)
	}
}

func TestExpiryFromJWT_Opaque(t *testing.T) {
	if _, ok := identity.ExpiryFromJWT("not-a-jwt"); ok {
		t.Error("opaque token must not report an expiry")
	}
}
