package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/usecases"
)

func TestTokenManager_OnAuthChangeAcquires(t *testing.T) {
	idp := &mockIdP{}
	cache := newMockCache()
	events := &mockEvents{}
	tm := usecases.NewTokenManager(idp, cache, events, usecases.TokenManagerConfig{})

	changes := 0
	var mu sync.Mutex
	tm.Subscribe(func() { mu.Lock(); changes++; mu.Unlock() })

	tm.OnAuthChange(context.Background(), true)
	tm.Close()

	tok, ok := tm.Token()
	if !ok || tok.Value != "tok" {
		t.Fatalf("expected token, got %+v %v", tok, ok)
	}
	if tm.Status() != domain.AuthAuthenticated {
		t.Errorf("expected authenticated, got %s", tm.Status())
	}
	if !cache.has(usecases.TokenCacheKey) {
		t.Error("expected token mirrored in cache")
	}
	if !events.has(domain.EventSignedIn) {
		t.Error("expected signed_in event")
	}
	mu.Lock()
	defer mu.Unlock()
	if changes < 2 {
		t.Errorf("expected securing and authenticated notifications, got %d", changes)
	}
}

func TestTokenManager_FailureIsNotRetried(t *testing.T) {
	idp := &mockIdP{
		acquireFn: func(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
			return nil, errors.New("login_required")
		},
	}
	events := &mockEvents{}
	tm := usecases.NewTokenManager(idp, nil, events, usecases.TokenManagerConfig{})

	tm.OnAuthChange(context.Background(), true)
	tm.Close()

	if _, ok := tm.Token(); ok {
		t.Fatal("expected no token after failure")
	}
	if tm.LastError() == "" {
		t.Error("expected a user-visible error")
	}
	if tm.Status() != domain.AuthSecuring {
		t.Errorf("expected status to stay securing, got %s", tm.Status())
	}
	if !events.has(domain.EventTokenFailed) {
		t.Error("expected token_failed event")
	}

	_, err := tm.Acquire(context.Background())
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if n, _ := idp.counts(); n != 1 {
		t.Errorf("expected exactly one acquisition, got %d", n)
	}
}

func TestTokenManager_AcquireWithoutToken(t *testing.T) {
	idp := &mockIdP{}
	tm := usecases.NewTokenManager(idp, nil, nil, usecases.TokenManagerConfig{})

	_, err := tm.Acquire(context.Background())
	if domain.KindOf(err) != domain.KindAuth || !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if n, _ := idp.counts(); n != 0 {
		t.Errorf("expected no identity calls, got %d", n)
	}
}

func TestTokenManager_AcquireRefreshesNearExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	idp := &mockIdP{
		acquireFn: func(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
			return &domain.TokenGrant{AccessToken: "tok", ExpiresIn: time.Minute}, nil
		},
	}
	tm := usecases.NewTokenManager(idp, nil, nil, usecases.TokenManagerConfig{
		Now: func() time.Time { return now },
	})

	if _, err := tm.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := tm.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := idp.counts(); n != 1 {
		t.Fatalf("fresh token should be reused, got %d acquisitions", n)
	}

	now = now.Add(45 * time.Second)
	if _, err := tm.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := idp.counts(); n != 2 {
		t.Errorf("expected refresh within the expiry skew, got %d acquisitions", n)
	}
}

func TestTokenManager_SignOutDiscardsInflight(t *testing.T) {
	release := make(chan struct{})
	idp := &mockIdP{
		acquireFn: func(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
			<-release
			return &domain.TokenGrant{AccessToken: "late"}, nil
		},
	}
	tm := usecases.NewTokenManager(idp, nil, nil, usecases.TokenManagerConfig{})

	tm.OnAuthChange(context.Background(), true)
	if !waitFor(func() bool { n, _ := idp.counts(); return n == 1 }) {
		t.Fatal("acquisition never started")
	}
	tm.SignOut(context.Background())
	close(release)
	tm.Close()

	if _, ok := tm.Token(); ok {
		t.Error("late acquisition must not resurrect the token")
	}
	if tm.Status() != domain.AuthUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", tm.Status())
	}
}

func TestTokenManager_SignOutClearsBeforeRevoke(t *testing.T) {
	var tm *usecases.TokenManager
	var hadToken bool
	idp := &mockIdP{
		revokeFn: func(ctx context.Context) error {
			_, hadToken = tm.Token()
			return errors.New("network down")
		},
	}
	cache := newMockCache()
	events := &mockEvents{}
	tm = usecases.NewTokenManager(idp, cache, events, usecases.TokenManagerConfig{})

	if _, err := tm.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	tm.SignOut(context.Background())
	if _, ok := tm.Token(); ok {
		t.Fatal("token must be cleared synchronously")
	}
	tm.Close()

	if hadToken {
		t.Error("revocation ran while the token was still present")
	}
	if _, revokes := idp.counts(); revokes != 1 {
		t.Errorf("expected one revocation, got %d", revokes)
	}
	if cache.has(usecases.TokenCacheKey) {
		t.Error("expected cache entry removed")
	}
	if !events.has(domain.EventSignedOut) {
		t.Error("expected signed_out event")
	}
}

func TestTokenManager_LoginLoadsUser(t *testing.T) {
	idp := &mockIdP{}
	tm := usecases.NewTokenManager(idp, nil, nil, usecases.TokenManagerConfig{})

	if err := tm.Login(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
	tok, ok := tm.Token()
	if !ok || tok.Value != "tok-abc" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if u := tm.User(); u == nil || u.Name != "Ada" {
		t.Errorf("expected user profile, got %+v", u)
	}
}

func TestTokenManager_ConcurrentRefreshShared(t *testing.T) {
	release := make(chan struct{})
	idp := &mockIdP{
		acquireFn: func(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
			<-release
			return &domain.TokenGrant{AccessToken: "tok"}, nil
		},
	}
	tm := usecases.NewTokenManager(idp, nil, nil, usecases.TokenManagerConfig{})

	tm.OnAuthChange(context.Background(), true)
	if !waitFor(func() bool { n, _ := idp.counts(); return n == 1 }) {
		t.Fatal("acquisition never started")
	}

	// With an acquisition in flight, Acquire joins it instead of failing.
	done := make(chan error, 1)
	go func() {
		_, err := tm.Acquire(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tm.Close()
	if n, _ := idp.counts(); n != 1 {
		t.Errorf("expected one shared acquisition, got %d", n)
	}
}

func TestTokenManager_RefreshWithoutSessionStaysSignedOut(t *testing.T) {
	idp := &mockIdP{
		acquireFn: func(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
			return nil, errors.New("consent_required")
		},
	}
	tm := usecases.NewTokenManager(idp, nil, nil, usecases.TokenManagerConfig{})

	if _, err := tm.Refresh(context.Background()); domain.KindOf(err) != domain.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if tm.Status() != domain.AuthUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", tm.Status())
	}
	if tm.LastError() == "" {
		t.Error("expected a user-visible error")
	}
}

func TestTokenManager_ResumeConfirmsCachedToken(t *testing.T) {
	release := make(chan struct{})
	var checked string
	idp := &mockIdP{
		userInfoFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			<-release
			checked = accessToken
			return &domain.User{Subject: "auth0|1"}, nil
		},
	}
	cache := newMockCache()
	_ = cache.Set(context.Background(), usecases.TokenCacheKey, []byte(`{"value":"cached"}`), 60)
	events := &mockEvents{}
	tm := usecases.NewTokenManager(idp, cache, events, usecases.TokenManagerConfig{})

	if !tm.Resume(context.Background()) {
		t.Fatal("expected a confirmation to start")
	}
	if tm.Status() != domain.AuthSecuring {
		t.Errorf("expected securing while confirming, got %s", tm.Status())
	}
	if _, err := tm.Acquire(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("an unconfirmed cached token must not be usable, got %v", err)
	}

	close(release)
	tm.Close()

	tok, ok := tm.Token()
	if !ok || tok.Value != "cached" || checked != "cached" {
		t.Fatalf("expected confirmed cached token, got %+v %v (checked %q)", tok, ok, checked)
	}
	if tm.Status() != domain.AuthAuthenticated || tm.User() == nil {
		t.Errorf("expected authenticated with a user, got %s", tm.Status())
	}
	if n, _ := idp.counts(); n != 0 {
		t.Errorf("expected no token acquisitions, got %d", n)
	}
	if !events.has(domain.EventSignedIn) {
		t.Error("expected signed_in event")
	}
}

func TestTokenManager_ResumeRejectedToken(t *testing.T) {
	idp := &mockIdP{
		userInfoFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			return nil, errors.New("unexpected status 401")
		},
	}
	cache := newMockCache()
	_ = cache.Set(context.Background(), usecases.TokenCacheKey, []byte(`{"value":"stale"}`), 60)
	tm := usecases.NewTokenManager(idp, cache, nil, usecases.TokenManagerConfig{})

	if !tm.Resume(context.Background()) {
		t.Fatal("expected a confirmation to start")
	}
	tm.Close()

	if _, ok := tm.Token(); ok {
		t.Fatal("a rejected cached token must not be installed")
	}
	if tm.Status() != domain.AuthUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", tm.Status())
	}
	if cache.has(usecases.TokenCacheKey) {
		t.Error("expected rejected record removed from cache")
	}
}

func TestTokenManager_ResumeWithoutRecord(t *testing.T) {
	tm := usecases.NewTokenManager(&mockIdP{}, newMockCache(), nil, usecases.TokenManagerConfig{})
	if tm.Resume(context.Background()) {
		t.Fatal("expected nothing to resume")
	}
	if tm.Status() != domain.AuthUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", tm.Status())
	}

	cache := newMockCache()
	_ = cache.Set(context.Background(), usecases.TokenCacheKey,
		[]byte(`{"value":"old","expires_at":"2025-03-01T11:00:00Z"}`), 60)
	expired := usecases.NewTokenManager(&mockIdP{}, cache, nil, usecases.TokenManagerConfig{
		Now: func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if expired.Resume(context.Background()) {
		t.Fatal("an expired record must not be resumed")
	}
	if cache.has(usecases.TokenCacheKey) {
		t.Error("expected expired record removed from cache")
	}
}
