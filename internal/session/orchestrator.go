// Package session wires the session components together. The Orchestrator
// is the single owner of the view center; map engines and the gesture
// controller only request changes through callbacks.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
	"github.com/samirrijal/brooks/internal/core/usecases"
	"github.com/samirrijal/brooks/internal/gesture"
	"github.com/samirrijal/brooks/internal/mapsurface"
)

// LoginStateTTL bounds how long a login redirect may take.
const LoginStateTTL = 10 * time.Minute

var ErrInvalidLoginState = errors.New("unknown or expired login state")

// Deps are the outbound collaborators. Cache and Events may be nil.
type Deps struct {
	Identity   ports.IdentityProvider
	Geolocator ports.Geolocator
	Geocoder   ports.ReverseGeocoder
	Pins       ports.PinService
	Cache      ports.CacheService
	Events     ports.EventPublisher
}

type Config struct {
	DefaultCenter  domain.Coordinates
	BBoxDelta      float64
	Provider       mapsurface.Provider
	Map            mapsurface.Options
	Scopes         []string
	TokenCacheTTL  time.Duration
	FixTimeout     time.Duration
	GeocodeTimeout time.Duration
	ChargeDuration time.Duration
	TolerancePx    float64
	Clock          clock.Clock
	Now            func() time.Time
	Logger         *slog.Logger
}

type Orchestrator struct {
	cfg    Config
	events ports.EventPublisher
	logger *slog.Logger

	tokens   *usecases.TokenManager
	location *usecases.LocationResolver
	query    *usecases.QueryController
	creation *usecases.CreationSession
	gesture  *gesture.Controller
	surface  *mapsurface.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	center      domain.Coordinates
	relocated   bool
	hadToken    bool
	pending     *domain.Coordinates
	loginStates map[string]time.Time
	subs        map[uint64]func(ViewState)
	nextSub     uint64
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Provider == "" {
		cfg.Provider = mapsurface.ProviderLeaflet
	}
	if err := cfg.DefaultCenter.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:         cfg,
		events:      deps.Events,
		logger:      cfg.Logger.With("component", "session"),
		ctx:         ctx,
		cancel:      cancel,
		center:      cfg.DefaultCenter,
		loginStates: make(map[string]time.Time),
		subs:        make(map[uint64]func(ViewState)),
	}

	o.tokens = usecases.NewTokenManager(deps.Identity, deps.Cache, deps.Events, usecases.TokenManagerConfig{
		Scopes:   cfg.Scopes,
		CacheTTL: cfg.TokenCacheTTL,
		Now:      cfg.Now,
		Logger:   cfg.Logger.With("component", "tokens"),
	})
	o.location = usecases.NewLocationResolver(deps.Geolocator, deps.Geocoder, deps.Events, usecases.LocationResolverConfig{
		FixTimeout:     cfg.FixTimeout,
		GeocodeTimeout: cfg.GeocodeTimeout,
		Logger:         cfg.Logger.With("component", "location"),
	})
	o.query = usecases.NewQueryController(deps.Pins, o.tokens, usecases.QueryControllerConfig{
		BBoxDelta: cfg.BBoxDelta,
		Logger:    cfg.Logger.With("component", "query"),
	})
	o.creation = usecases.NewCreationSession(deps.Pins, o.tokens, deps.Events, usecases.CreationSessionConfig{
		Now:       cfg.Now,
		Logger:    cfg.Logger.With("component", "creation"),
		OnCreated: o.afterCreate,
	})
	o.gesture = gesture.New(gesture.Config{
		ChargeDuration: cfg.ChargeDuration,
		TolerancePx:    cfg.TolerancePx,
		Clock:          cfg.Clock,
		Logger:         cfg.Logger.With("component", "gesture"),
		OnChange:       o.changed,
	}, o.openCreation)

	surface, err := mapsurface.NewManager(cfg.Provider, cfg.Map, mapsurface.Callbacks{
		OnDoubleActivate: o.openCreation,
		OnHoldStart:      o.gesture.HoldStart,
		OnHoldMove:       o.gesture.HoldMove,
		OnHoldEnd:        o.gesture.HoldEnd,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	o.surface = surface

	o.tokens.Subscribe(o.onTokenChange)
	o.location.Subscribe(o.changed)
	o.query.Subscribe(o.onPinsChange)
	o.creation.Subscribe(o.changed)

	o.render()
	return o, nil
}

// Start resumes a cached session, if any, and begins location resolution.
// The first fix moves the center unless the user has already moved it.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.tokens.Resume(ctx) {
		o.logger.Info("confirming cached session")
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		loc, err := o.location.Resolve(o.ctx)
		if err != nil {
			o.logger.Info("keeping default center", "reason", err)
			return
		}
		o.mu.Lock()
		if o.relocated {
			o.mu.Unlock()
			return
		}
		o.center = loc.Coordinates
		o.mu.Unlock()
		o.render()
		o.refreshAsync()
	}()
}

// OnAuthChange forwards the identity provider's authentication state.
func (o *Orchestrator) OnAuthChange(ctx context.Context, authenticated bool) {
	if !authenticated {
		o.teardown()
	}
	o.tokens.OnAuthChange(ctx, authenticated)
}

// BeginLogin returns the login redirect URL with a fresh state nonce.
func (o *Orchestrator) BeginLogin(signup bool) string {
	state := uuid.NewString()
	now := o.cfg.Now()

	o.mu.Lock()
	for s, exp := range o.loginStates {
		if now.After(exp) {
			delete(o.loginStates, s)
		}
	}
	o.loginStates[state] = now.Add(LoginStateTTL)
	o.mu.Unlock()

	return o.tokens.LoginURL(state, signup)
}

// CompleteLogin finishes the redirect started by BeginLogin.
func (o *Orchestrator) CompleteLogin(ctx context.Context, state, code string) error {
	o.mu.Lock()
	exp, ok := o.loginStates[state]
	delete(o.loginStates, state)
	o.mu.Unlock()
	if !ok || o.cfg.Now().After(exp) {
		return &domain.Error{Kind: domain.KindAuth, Op: "login", Message: "Sign-in expired, please try again", Err: ErrInvalidLoginState}
	}
	return o.tokens.Login(ctx, code)
}

func (o *Orchestrator) RefreshToken(ctx context.Context) error {
	_, err := o.tokens.Refresh(ctx)
	return err
}

// SignOut ends the session: token, pins, pending intent and draft are
// discarded before the provider is told.
func (o *Orchestrator) SignOut(ctx context.Context) {
	o.teardown()
	o.tokens.SignOut(ctx)
}

func (o *Orchestrator) teardown() {
	o.gesture.Cancel()
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
	o.creation.Cancel()
	o.query.Clear()
}

// Center returns the current view center.
func (o *Orchestrator) Center() domain.Coordinates {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.center
}

// Relocate moves the view center and reloads the pins around it.
func (o *Orchestrator) Relocate(ctx context.Context, c domain.Coordinates) error {
	if err := c.Validate(); err != nil {
		return domain.ValidationError("center", err.Error())
	}
	o.mu.Lock()
	o.center = c
	o.relocated = true
	o.mu.Unlock()
	o.render()
	return o.refresh(ctx)
}

func (o *Orchestrator) SetThemeOverride(k domain.ThemeKey) { o.location.SetThemeOverride(k) }

func (o *Orchestrator) ClearThemeOverride() { o.location.ClearThemeOverride() }

// SetProvider swaps the map engine, carrying over the center and pins.
func (o *Orchestrator) SetProvider(ctx context.Context, p mapsurface.Provider) error {
	from := o.surface.Provider()
	if err := o.surface.Switch(p, o.Center(), o.query.Pins()); err != nil {
		return err
	}
	if from != p {
		o.gesture.Cancel()
		o.publish(ctx, domain.EventProviderChanged, map[string]string{"from": string(from), "to": string(p)})
	}
	o.changed()
	return nil
}

// DispatchMapEvent feeds one engine-native pointer event to the active map.
func (o *Orchestrator) DispatchMapEvent(raw []byte) error {
	return o.surface.Dispatch(raw)
}

func (o *Orchestrator) CancelGesture() { o.gesture.Cancel() }

// Frame returns what the active map engine shows.
func (o *Orchestrator) Frame() mapsurface.Frame { return o.surface.Frame() }

func (o *Orchestrator) Draft() domain.PinDraft { return o.creation.Draft() }

func (o *Orchestrator) SetDraft(d domain.PinDraft) { o.creation.SetDraft(d) }

// SubmitPin creates a pin at the pending creation point, or at the center
// when none is pending.
func (o *Orchestrator) SubmitPin(ctx context.Context, d domain.PinDraft) error {
	o.mu.RLock()
	at := o.center
	if o.pending != nil {
		at = *o.pending
	}
	o.mu.RUnlock()

	if err := o.creation.Submit(ctx, d, at); err != nil {
		return err
	}
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
	o.changed()
	return nil
}

// CancelPin closes the creation form and discards the draft.
func (o *Orchestrator) CancelPin() {
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
	o.creation.Cancel()
}

// RefreshPins reloads the pins around the current center.
func (o *Orchestrator) RefreshPins(ctx context.Context) ([]domain.Pin, error) {
	return o.query.RefreshAt(ctx, o.Center)
}

func (o *Orchestrator) Pins() []domain.Pin { return o.query.Pins() }

// Snapshot assembles the current view state.
func (o *Orchestrator) Snapshot() ViewState {
	o.mu.RLock()
	center := o.center
	var pending *domain.Coordinates
	if o.pending != nil {
		p := *o.pending
		pending = &p
	}
	o.mu.RUnlock()

	status := o.tokens.Status()
	frame := o.surface.Frame()
	pins := o.query.Pins()
	theme, overridden := o.location.Theme()

	vs := ViewState{
		Gate:   gateFor(status),
		Auth:   AuthView{Status: status, Error: o.tokens.LastError(), User: o.tokens.User()},
		Center: center,
		Theme:  ThemeView{Key: theme, Label: theme.Label(), Overridden: overridden},
		Map: MapView{
			Provider:    frame.Provider,
			Label:       frame.Label,
			Configured:  frame.Configured,
			Placeholder: frame.Placeholder,
			PinCount:    len(pins),
			Loading:     o.query.Loading(),
			Error:       o.query.LastError(),
		},
		Pins:    pins,
		Gesture: o.gesture.State(),
		Creation: CreationView{
			Open:       pending != nil,
			Location:   pending,
			Draft:      o.creation.Draft(),
			Submitting: o.creation.Submitting(),
			Error:      o.creation.LastError(),
		},
	}
	if box, ok := o.query.Box(); ok {
		vs.Box = &box
	}
	vs.Location = o.locationView()
	return vs
}

func (o *Orchestrator) locationView() LocationView {
	lv := LocationView{Status: o.location.Status(), Label: LocatingLabel}
	switch lv.Status {
	case domain.LocationReady:
		loc := o.location.Location()
		c := loc.Coordinates
		lv.Coordinates = &c
		if loc.Place != nil {
			lv.Label = loc.Place.Label()
		} else {
			lv.Label = c.String()
		}
	case domain.LocationError:
		lv.Error = o.location.ErrorMessage()
		lv.Label = lv.Error
	}
	return lv
}

// Subscribe registers fn for view state updates. The returned function
// removes the subscription.
func (o *Orchestrator) Subscribe(fn func(ViewState)) func() {
	o.mu.Lock()
	o.nextSub++
	id := o.nextSub
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Close stops background work and releases the map engine.
func (o *Orchestrator) Close() {
	o.cancel()
	o.gesture.Close()
	o.wg.Wait()
	o.tokens.Close()
	o.surface.Close()
}

// openCreation recenters on at and opens the creation form there.
func (o *Orchestrator) openCreation(at domain.Coordinates) {
	if at.Validate() != nil {
		return
	}
	o.mu.Lock()
	o.center = at
	o.relocated = true
	p := at
	o.pending = &p
	o.mu.Unlock()
	o.render()
	o.refreshAsync()
}

func (o *Orchestrator) afterCreate(ctx context.Context) {
	if err := o.refresh(ctx); err != nil {
		o.logger.Warn("refresh after create failed", "error", err)
	}
}

// refresh queries around the center as it is when the query is issued, so a
// query started for an older center can never outrank a newer one. Without a
// token it does nothing. Superseded queries are not errors.
func (o *Orchestrator) refresh(ctx context.Context) error {
	if _, ok := o.tokens.Token(); !ok {
		return nil
	}
	_, err := o.query.RefreshAt(ctx, o.Center)
	if errors.Is(err, domain.ErrSuperseded) {
		return nil
	}
	return err
}

func (o *Orchestrator) refreshAsync() {
	if o.ctx.Err() != nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.refresh(o.ctx); err != nil {
			o.logger.Warn("pin refresh failed", "error", err)
		}
	}()
}

// onTokenChange loads pins the moment a token appears.
func (o *Orchestrator) onTokenChange() {
	_, ok := o.tokens.Token()
	o.mu.Lock()
	appeared := ok && !o.hadToken
	o.hadToken = ok
	o.mu.Unlock()

	if appeared {
		o.refreshAsync()
	}
	o.changed()
}

func (o *Orchestrator) onPinsChange() {
	o.render()
	o.changed()
}

func (o *Orchestrator) render() {
	if err := o.surface.Render(o.Center(), o.query.Pins()); err != nil && !errors.Is(err, mapsurface.ErrClosed) {
		o.logger.Warn("map render failed", "error", err)
	}
}

func (o *Orchestrator) changed() {
	o.mu.RLock()
	subs := make([]func(ViewState), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	vs := o.Snapshot()
	for _, fn := range subs {
		fn(vs)
	}
}

func (o *Orchestrator) publish(ctx context.Context, t domain.SessionEventType, fields map[string]string) {
	if o.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	ev := &domain.SessionEvent{Type: t, At: o.cfg.Now().UTC(), Fields: fields}
	if err := o.events.PublishSessionEvent(ctx, ev); err != nil {
		o.logger.Warn("publish session event failed", "type", string(t), "error", err)
	}
}
