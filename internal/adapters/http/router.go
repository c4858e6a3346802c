package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/brooks/internal/pkg/metrics"
)

// upstreamTimeout bounds handlers that wait on the identity provider or the
// pins service.
const upstreamTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	if deps.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: deps.AllowOrigins,
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		}))
	}

	// Rate limiting: 120 requests per minute per IP. Pointer events are
	// exempt, a single drag produces dozens.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/v1/map/events" || c.Path() == "/ws"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", deps.Version)
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))
	SetupDocs(app)

	v1 := app.Group("/v1")
	v1.Get("/session", SessionHandler(deps))

	auth := v1.Group("/auth")
	auth.Get("/login", LoginHandler(deps))
	auth.Get("/callback", timeout.NewWithContext(CallbackHandler(deps), upstreamTimeout))
	auth.Post("/refresh", timeout.NewWithContext(RefreshTokenHandler(deps), upstreamTimeout))
	auth.Post("/logout", LogoutHandler(deps))

	v1.Post("/center", timeout.NewWithContext(CenterHandler(deps), upstreamTimeout))
	v1.Post("/theme", ThemeHandler(deps))

	v1.Get("/map", MapHandler(deps))
	v1.Post("/map/provider", ProviderHandler(deps))
	v1.Post("/map/events", MapEventsHandler(deps))
	v1.Post("/gesture/cancel", GestureCancelHandler(deps))

	v1.Get("/pins", ListPinsHandler(deps))
	v1.Post("/pins/refresh", timeout.NewWithContext(RefreshPinsHandler(deps), upstreamTimeout))
	v1.Get("/pins/draft", GetDraftHandler(deps))
	v1.Put("/pins/draft", PutDraftHandler(deps))
	v1.Delete("/pins/draft", CancelDraftHandler(deps))
	v1.Post("/pins", timeout.NewWithContext(SubmitPinHandler(deps), upstreamTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.Session)))
}
