package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/brooks/internal/core/domain"
)

// --- Mock IdentityProvider ---

type mockIdP struct {
	exchangeFn func(ctx context.Context, code string) (*domain.TokenGrant, error)
	acquireFn  func(ctx context.Context, scopes []string) (*domain.TokenGrant, error)
	revokeFn   func(ctx context.Context) error
	userInfoFn func(ctx context.Context, accessToken string) (*domain.User, error)

	mu       sync.Mutex
	acquires int
	revokes  int
}

func (m *mockIdP) LoginURL(state string, signup bool) string {
	return "https://idp.test/authorize?state=" + state
}

func (m *mockIdP) Exchange(ctx context.Context, code string) (*domain.TokenGrant, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return &domain.TokenGrant{AccessToken: "tok-" + code}, nil
}

func (m *mockIdP) AcquireToken(ctx context.Context, scopes []string) (*domain.TokenGrant, error) {
	m.mu.Lock()
	m.acquires++
	m.mu.Unlock()
	if m.acquireFn != nil {
		return m.acquireFn(ctx, scopes)
	}
	return &domain.TokenGrant{AccessToken: "tok"}, nil
}

func (m *mockIdP) Revoke(ctx context.Context) error {
	m.mu.Lock()
	m.revokes++
	m.mu.Unlock()
	if m.revokeFn != nil {
		return m.revokeFn(ctx)
	}
	return nil
}

func (m *mockIdP) UserInfo(ctx context.Context, accessToken string) (*domain.User, error) {
	if m.userInfoFn != nil {
		return m.userInfoFn(ctx, accessToken)
	}
	return &domain.User{Subject: "auth0|1", Name: "Ada"}, nil
}

func (m *mockIdP) counts() (acquires, revokes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.revokes
}

// --- Mock PinService ---

type mockPins struct {
	mapPinsFn   func(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error)
	createPinFn func(ctx context.Context, token string, req *domain.CreatePinRequest) error

	mu      sync.Mutex
	queries []domain.BoundingBox
	creates []*domain.CreatePinRequest
}

func (m *mockPins) MapPins(ctx context.Context, token string, bbox domain.BoundingBox) ([]domain.Pin, error) {
	m.mu.Lock()
	m.queries = append(m.queries, bbox)
	m.mu.Unlock()
	if m.mapPinsFn != nil {
		return m.mapPinsFn(ctx, token, bbox)
	}
	return []domain.Pin{}, nil
}

func (m *mockPins) CreatePin(ctx context.Context, token string, req *domain.CreatePinRequest) error {
	m.mu.Lock()
	m.creates = append(m.creates, req)
	m.mu.Unlock()
	if m.createPinFn != nil {
		return m.createPinFn(ctx, token, req)
	}
	return nil
}

func (m *mockPins) calls() (queries, creates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries), len(m.creates)
}

// --- Mock TokenSource ---

type mockTokens struct {
	acquireFn func(ctx context.Context) (domain.SessionToken, error)
}

func (m *mockTokens) Acquire(ctx context.Context) (domain.SessionToken, error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx)
	}
	return domain.SessionToken{Value: "tok"}, nil
}

// --- Mock Geolocator / ReverseGeocoder ---

type mockGeo struct {
	positionFn func(ctx context.Context, opts domain.PositionOptions) (domain.Coordinates, error)

	mu    sync.Mutex
	calls int
}

func (m *mockGeo) CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Coordinates, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.positionFn != nil {
		return m.positionFn(ctx, opts)
	}
	return domain.Coordinates{Lat: 41.9028, Lng: 12.4964}, nil
}

type mockReverse struct {
	reverseFn func(ctx context.Context, c domain.Coordinates) (*domain.Place, error)
}

func (m *mockReverse) Reverse(ctx context.Context, c domain.Coordinates) (*domain.Place, error) {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, c)
	}
	return &domain.Place{City: "Rome", Country: "Italy"}, nil
}

// --- Mock EventPublisher ---

type mockEvents struct {
	mu     sync.Mutex
	events []domain.SessionEventType
}

func (m *mockEvents) PublishSessionEvent(ctx context.Context, ev *domain.SessionEvent) error {
	m.mu.Lock()
	m.events = append(m.events, ev.Type)
	m.mu.Unlock()
	return nil
}

func (m *mockEvents) has(t domain.SessionEventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e == t {
			return true
		}
	}
	return false
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, context.Canceled
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *mockCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// waitFor polls cond until it holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

var rome = domain.Coordinates{Lat: 41.9028, Lng: 12.4964}
