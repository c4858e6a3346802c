package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
	"github.com/samirrijal/brooks/internal/pkg/metrics"
	"github.com/samirrijal/brooks/internal/pkg/telemetry"
)

// TokenCacheKey is where the current token record is mirrored in the cache.
const TokenCacheKey = "brooks.token"

const revokeTimeout = 10 * time.Second

// DefaultScopes are requested on every token acquisition.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

// TokenManagerConfig tunes a TokenManager.
type TokenManagerConfig struct {
	Scopes []string
	// CacheTTL bounds the cached record when the grant carries no expiry.
	CacheTTL time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// TokenManager owns the session token. Concurrent refreshes share one
// in-flight acquisition, and a sign-out invalidates any acquisition that
// started before it.
type TokenManager struct {
	idp    ports.IdentityProvider
	cache  ports.CacheService
	events ports.EventPublisher
	cfg    TokenManagerConfig
	group  singleflight.Group
	wg     sync.WaitGroup

	mu       sync.RWMutex
	token    *domain.SessionToken
	status   domain.AuthStatus
	lastErr  string
	user     *domain.User
	epoch    uint64
	inflight bool
	changes  notifier
}

// NewTokenManager creates a TokenManager. cache and events may be nil.
func NewTokenManager(idp ports.IdentityProvider, cache ports.CacheService, events ports.EventPublisher, cfg TokenManagerConfig) *TokenManager {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TokenManager{
		idp:    idp,
		cache:  cache,
		events: events,
		cfg:    cfg,
		status: domain.AuthUnauthenticated,
	}
}

// Token returns the current token, if any.
func (m *TokenManager) Token() (domain.SessionToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return domain.SessionToken{}, false
	}
	return *m.token, true
}

func (m *TokenManager) Status() domain.AuthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastError is the user-visible message of the last failed acquisition.
func (m *TokenManager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *TokenManager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Subscribe registers fn to be called after every token state change.
func (m *TokenManager) Subscribe(fn func()) {
	m.mu.Lock()
	m.changes.add(fn)
	m.mu.Unlock()
}

// LoginURL returns the identity provider's login page.
func (m *TokenManager) LoginURL(state string, signup bool) string {
	return m.idp.LoginURL(state, signup)
}

// OnAuthChange follows the identity provider's authentication state. Becoming
// authenticated starts an asynchronous acquisition; losing authentication
// drops the token without contacting the provider.
func (m *TokenManager) OnAuthChange(ctx context.Context, authenticated bool) {
	if !authenticated {
		m.clear(ctx, false)
		return
	}

	m.mu.Lock()
	if m.token != nil && m.status == domain.AuthAuthenticated {
		m.mu.Unlock()
		return
	}
	m.status = domain.AuthSecuring
	m.lastErr = ""
	fns := m.changes.snapshot()
	m.mu.Unlock()
	fire(fns)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.Refresh(context.WithoutCancel(ctx)); err != nil {
			m.cfg.Logger.Warn("token acquisition failed", "error", err)
		}
	}()
}

// Login completes an authorization-code redirect and acquires the first token.
func (m *TokenManager) Login(ctx context.Context, code string) error {
	m.mu.Lock()
	m.status = domain.AuthSecuring
	m.lastErr = ""
	epoch := m.epoch
	fns := m.changes.snapshot()
	m.mu.Unlock()
	fire(fns)

	ctx, span := telemetry.Start(ctx, telemetry.SpanTokenAcquire)
	grant, err := m.idp.Exchange(ctx, code)
	telemetry.End(span, err)
	metrics.TokenRefreshes.WithLabelValues(metrics.Result(err)).Inc()

	if _, err := m.apply(ctx, epoch, domain.AuthSecuring, grant, err); err != nil {
		return err
	}

	if u, err := m.idp.UserInfo(ctx, grant.AccessToken); err != nil {
		m.cfg.Logger.Warn("userinfo unavailable", "error", err)
	} else {
		m.mu.Lock()
		if m.epoch == epoch {
			m.user = u
		}
		fns = m.changes.snapshot()
		m.mu.Unlock()
		fire(fns)
	}
	return nil
}

// Refresh acquires a fresh token. Concurrent callers share one request.
func (m *TokenManager) Refresh(ctx context.Context) (domain.SessionToken, error) {
	v, err, _ := m.group.Do("token", func() (any, error) {
		m.mu.Lock()
		epoch := m.epoch
		m.inflight = true
		// A refresh without a session to secure falls back to signed out.
		onFail := domain.AuthSecuring
		if m.status == domain.AuthUnauthenticated {
			onFail = domain.AuthUnauthenticated
			m.status = domain.AuthSecuring
		}
		m.mu.Unlock()

		actx, span := telemetry.Start(ctx, telemetry.SpanTokenAcquire)
		grant, err := m.idp.AcquireToken(actx, m.cfg.Scopes)
		telemetry.End(span, err)
		metrics.TokenRefreshes.WithLabelValues(metrics.Result(err)).Inc()

		return m.apply(ctx, epoch, onFail, grant, err)
	})
	if err != nil {
		return domain.SessionToken{}, err
	}
	return v.(domain.SessionToken), nil
}

// apply installs the outcome of an acquisition that began at epoch. Results
// from before a sign-out are discarded. A failure leaves the status at onFail.
func (m *TokenManager) apply(ctx context.Context, epoch uint64, onFail domain.AuthStatus, grant *domain.TokenGrant, err error) (domain.SessionToken, error) {
	m.mu.Lock()
	m.inflight = false
	if m.epoch != epoch {
		m.mu.Unlock()
		return domain.SessionToken{}, domain.NewError(domain.KindAuth, "token", domain.ErrUnauthenticated)
	}

	if err != nil {
		m.token = nil
		m.lastErr = "Could not secure your session: " + err.Error()
		m.status = onFail
		fns := m.changes.snapshot()
		m.mu.Unlock()

		m.forget(ctx)
		publish(ctx, m.events, m.cfg.Logger, domain.EventTokenFailed, map[string]string{"error": err.Error()})
		fire(fns)
		return domain.SessionToken{}, &domain.Error{Kind: domain.KindAuth, Op: "token", Message: m.LastError(), Err: err}
	}

	tok := domain.SessionToken{Value: grant.AccessToken}
	if grant.ExpiresIn > 0 {
		tok.ExpiresAt = m.cfg.Now().Add(grant.ExpiresIn)
	}
	wasAuthenticated := m.status == domain.AuthAuthenticated
	m.token = &tok
	m.status = domain.AuthAuthenticated
	m.lastErr = ""
	fns := m.changes.snapshot()
	m.mu.Unlock()

	m.remember(ctx, tok)
	if !wasAuthenticated {
		publish(ctx, m.events, m.cfg.Logger, domain.EventSignedIn, nil)
	}
	fire(fns)
	return tok, nil
}

// Resume reads the cached token record as a hint of a returning session.
// With a live record the status becomes securing while the provider confirms
// the token; the token is only installed, and usable, once confirmed. It
// reports whether a confirmation was started.
func (m *TokenManager) Resume(ctx context.Context) bool {
	if m.cache == nil {
		return false
	}
	data, err := m.cache.Get(ctx, TokenCacheKey)
	if err != nil {
		return false
	}
	var rec cachedToken
	if err := json.Unmarshal(data, &rec); err != nil || rec.Value == "" {
		m.forget(ctx)
		return false
	}
	tok := domain.SessionToken{Value: rec.Value, ExpiresAt: rec.ExpiresAt}
	if tok.Expired(m.cfg.Now()) {
		m.forget(ctx)
		return false
	}

	m.mu.Lock()
	if m.status != domain.AuthUnauthenticated {
		m.mu.Unlock()
		return false
	}
	epoch := m.epoch
	m.status = domain.AuthSecuring
	m.lastErr = ""
	fns := m.changes.snapshot()
	m.mu.Unlock()
	fire(fns)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.confirm(context.WithoutCancel(ctx), epoch, tok)
	}()
	return true
}

// confirm checks a cached token against the provider. A rejected token is
// dropped from the cache and the session returns to signed out.
func (m *TokenManager) confirm(ctx context.Context, epoch uint64, tok domain.SessionToken) {
	cctx, span := telemetry.Start(ctx, telemetry.SpanTokenResume)
	u, err := m.idp.UserInfo(cctx, tok.Value)
	telemetry.End(span, err)

	m.mu.Lock()
	if m.epoch != epoch || m.token != nil || m.status != domain.AuthSecuring {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.status = domain.AuthUnauthenticated
		fns := m.changes.snapshot()
		m.mu.Unlock()

		m.cfg.Logger.Info("cached session not confirmed", "error", err)
		m.forget(ctx)
		fire(fns)
		return
	}
	m.token = &tok
	m.user = u
	m.status = domain.AuthAuthenticated
	fns := m.changes.snapshot()
	m.mu.Unlock()

	publish(ctx, m.events, m.cfg.Logger, domain.EventSignedIn, map[string]string{"resumed": "true"})
	fire(fns)
}

// Acquire returns a usable token, refreshing transparently when the current
// one is near expiry. Without a token and no acquisition in flight it fails
// with ErrUnauthenticated; failed acquisitions are never retried here.
func (m *TokenManager) Acquire(ctx context.Context) (domain.SessionToken, error) {
	m.mu.RLock()
	tok := m.token
	inflight := m.inflight
	m.mu.RUnlock()

	switch {
	case tok != nil && !tok.Expired(m.cfg.Now()):
		return *tok, nil
	case tok != nil, inflight:
		return m.Refresh(ctx)
	default:
		return domain.SessionToken{}, domain.NewError(domain.KindAuth, "token", domain.ErrUnauthenticated)
	}
}

// SignOut drops the token immediately, then revokes the session at the
// provider in the background.
func (m *TokenManager) SignOut(ctx context.Context) {
	m.clear(ctx, true)
}

func (m *TokenManager) clear(ctx context.Context, revoke bool) {
	m.mu.Lock()
	wasAuthenticated := m.status != domain.AuthUnauthenticated
	m.epoch++
	m.token = nil
	m.user = nil
	m.lastErr = ""
	m.inflight = false
	m.status = domain.AuthUnauthenticated
	fns := m.changes.snapshot()
	m.mu.Unlock()

	m.forget(ctx)
	fire(fns)
	if !wasAuthenticated {
		return
	}
	publish(ctx, m.events, m.cfg.Logger, domain.EventSignedOut, nil)

	if !revoke {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
		defer cancel()
		rctx, span := telemetry.Start(rctx, telemetry.SpanTokenRevoke)
		err := m.idp.Revoke(rctx)
		telemetry.End(span, err)
		if err != nil {
			m.cfg.Logger.Warn("token revocation failed", "error", err)
		}
	}()
}

type cachedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// remember mirrors the token into the cache. The record is only ever read
// back by Resume, as a hint that still needs confirming.
func (m *TokenManager) remember(ctx context.Context, tok domain.SessionToken) {
	if m.cache == nil {
		return
	}
	ttl := m.cfg.CacheTTL
	if !tok.ExpiresAt.IsZero() {
		ttl = tok.ExpiresAt.Sub(m.cfg.Now())
	}
	secs := int(ttl / time.Second)
	if secs <= 0 {
		return
	}
	data, err := json.Marshal(cachedToken{Value: tok.Value, ExpiresAt: tok.ExpiresAt})
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, TokenCacheKey, data, secs); err != nil {
		m.cfg.Logger.Debug("token cache write failed", "error", err)
	}
}

func (m *TokenManager) forget(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(context.WithoutCancel(ctx), TokenCacheKey); err != nil {
		m.cfg.Logger.Debug("token cache delete failed", "error", err)
	}
}

// Close waits for background acquisitions and revocations.
func (m *TokenManager) Close() {
	m.wg.Wait()
}
