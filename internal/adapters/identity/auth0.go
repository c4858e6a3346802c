package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/pkg/httpx"
)

// ErrNoRefreshToken is returned by AcquireToken before any login completed.
var ErrNoRefreshToken = errors.New("login required")

// Config describes an OAuth2/OIDC tenant.
type Config struct {
	Domain      string
	ClientID    string
	Audience    string
	RedirectURI string
}

// Client implements ports.IdentityProvider against an Auth0-compatible tenant.
// It holds the refresh token in memory only.
type Client struct {
	cfg     Config
	baseURL string
	http    *fasthttp.Client

	mu           sync.Mutex
	refreshToken string

	// gen counts revocations; a token response only stores its refresh
	// token when no Revoke happened while it was in flight.
	gen uint64
}

// New creates an identity client.
func New(cfg Config, timeout time.Duration) *Client {
	return NewWithClient(cfg, httpx.NewClient(timeout))
}

// NewWithClient uses a caller-supplied fasthttp client.
func NewWithClient(cfg Config, c *fasthttp.Client) *Client {
	base := strings.TrimRight(cfg.Domain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{cfg: cfg, baseURL: base, http: c}
}

// LoginURL builds the hosted login redirect.
func (c *Client) LoginURL(state string, signup bool) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("scope", "openid profile email offline_access")
	q.Set("state", state)
	if c.cfg.Audience != "" {
		q.Set("audience", c.cfg.Audience)
	}
	if signup {
		q.Set("screen_hint", "signup")
	}
	return c.baseURL + "/authorize?" + q.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*domain.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.token(ctx, form, gen)
}

// AcquireToken runs a refresh-token grant for scopes.
func (c *Client) AcquireToken(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
	c.mu.Lock()
	rt, gen := c.refreshToken, c.gen
	c.mu.Unlock()
	if rt == "" {
		return nil, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("refresh_token", rt)
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
	if c.cfg.Audience != "" {
		form.Set("audience", c.cfg.Audience)
	}
	return c.token(ctx, form, gen)
}

func (c *Client) token(ctx context.Context, form url.Values, gen uint64) (*domain.TokenGrant, error) {
	body, err := httpx.Do(ctx, c.http, httpx.Request{
		Method:      fasthttp.MethodPost,
		URL:         c.baseURL + "/oauth/token",
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte(form.Encode()),
	})
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	if tr.RefreshToken != "" {
		c.mu.Lock()
		if c.gen == gen {
			c.refreshToken = tr.RefreshToken
		}
		c.mu.Unlock()
	}

	grant := &domain.TokenGrant{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		ExpiresIn:    time.Duration(tr.ExpiresIn) * time.Second,
	}
	if grant.ExpiresIn == 0 {
		if exp, ok := ExpiryFromJWT(tr.AccessToken); ok {
			grant.ExpiresIn = time.Until(exp)
		}
	}
	return grant, nil
}

// Revoke invalidates the refresh token at the tenant and forgets it locally.
// The local copy is dropped before the network call, and token responses
// still in flight will not store theirs.
func (c *Client) Revoke(ctx context.Context) error {
	c.mu.Lock()
	rt := c.refreshToken
	c.refreshToken = ""
	c.gen++
	c.mu.Unlock()
	if rt == "" {
		return nil
	}

	payload, _ := json.Marshal(map[string]string{
		"client_id": c.cfg.ClientID,
		"token":     rt,
	})
	_, err := httpx.Do(ctx, c.http, httpx.Request{
		Method: fasthttp.MethodPost,
		URL:    c.baseURL + "/oauth/revoke",
		Body:   payload,
	})
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

// UserInfo fetches the OIDC profile.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*domain.User, error) {
	var u domain.User
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/userinfo", accessToken, &u); err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	return &u, nil
}

// ExpiryFromJWT reads the exp claim of a JWT access token without verifying
// it. Opaque tokens report ok=false.
func ExpiryFromJWT(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
