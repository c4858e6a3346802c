package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/samirrijal/brooks/internal/adapters/geocode"
	"github.com/samirrijal/brooks/internal/adapters/geolocation"
	"github.com/samirrijal/brooks/internal/adapters/http"
	"github.com/samirrijal/brooks/internal/adapters/identity"
	"github.com/samirrijal/brooks/internal/adapters/memory"
	natsadapter "github.com/samirrijal/brooks/internal/adapters/nats"
	"github.com/samirrijal/brooks/internal/adapters/pinsapi"
	"github.com/samirrijal/brooks/internal/adapters/valkey"
	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
	"github.com/samirrijal/brooks/internal/mapsurface"
	"github.com/samirrijal/brooks/internal/pkg/config"
	"github.com/samirrijal/brooks/internal/pkg/logging"
	"github.com/samirrijal/brooks/internal/pkg/telemetry"
	"github.com/samirrijal/brooks/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load("brooks")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		AllowOrigins: cfg.Server.AllowOrigins,
		Version:      version,
	}

	// Cache: Valkey when configured, otherwise in-process.
	var cache ports.CacheService = memory.New()
	if cfg.Valkey.Addr != "" {
		vc, err := valkey.New(cfg.Valkey.Addr, "brooks:")
		if err != nil {
			slog.Warn("valkey unavailable, using in-memory cache", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
		}
	}

	// NATS
	var events ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			deps.Events = pub
		}
	}

	var geo ports.Geolocator
	switch cfg.Geolocation.Provider {
	case "static":
		var pos *domain.Coordinates
		if cfg.Geolocation.StaticSet {
			pos = &domain.Coordinates{Lat: cfg.Geolocation.StaticLat, Lng: cfg.Geolocation.StaticLng}
		}
		geo = geolocation.NewStatic(pos)
	default:
		geo = geolocation.NewIPAPI(cfg.Geolocation.URL, config.Seconds(cfg.Geolocation.Timeout))
	}

	provider, err := mapsurface.ParseProvider(cfg.Map.Provider)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Deps{
		Identity: identity.New(identity.Config{
			Domain:      cfg.Identity.Domain,
			ClientID:    cfg.Identity.ClientID,
			Audience:    cfg.Identity.Audience,
			RedirectURI: cfg.Identity.RedirectURI,
		}, config.Seconds(cfg.Identity.Timeout)),
		Geolocator: geo,
		Geocoder:   geocode.New(cfg.Geocode.URL, config.Seconds(cfg.Geocode.Timeout)),
		Pins:       pinsapi.New(cfg.Pins.APIURL, config.Seconds(cfg.Pins.Timeout)),
		Cache:      cache,
		Events:     events,
	}, session.Config{
		DefaultCenter: domain.Coordinates{Lat: cfg.Session.DefaultLat, Lng: cfg.Session.DefaultLng},
		BBoxDelta:     cfg.Session.BBoxDelta,
		Provider:      provider,
		Map: mapsurface.Options{
			LeafletTileURL:     cfg.Map.LeafletTileURL,
			LeafletAttribution: cfg.Map.LeafletAttribution,
			GoogleAPIKey:       cfg.Map.GoogleAPIKey,
			Zoom:               cfg.Map.Zoom,
		},
		Scopes:         cfg.Identity.ScopeList(),
		TokenCacheTTL:  config.Seconds(cfg.Session.TokenCacheTTL),
		FixTimeout:     config.Seconds(cfg.Geolocation.Timeout),
		GeocodeTimeout: config.Seconds(cfg.Geocode.Timeout),
		ChargeDuration: cfg.Session.ChargeDuration(),
		TolerancePx:    cfg.Session.HoldTolerancePx,
		Logger:         slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer sess.Close()
	sess.Start(ctx)
	deps.Session = sess

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeout),
		BodyLimit:    256 * 1024,
		AppName:      "Brooks",
	})
	app.Use(recover.New())

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "map", provider, "version", version)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
