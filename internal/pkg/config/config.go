package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Pins        PinsConfig        `mapstructure:"pins"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Geocode     GeocodeConfig     `mapstructure:"geocode"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Session     SessionConfig     `mapstructure:"session"`
	Map         MapConfig         `mapstructure:"map"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PinsConfig struct {
	APIURL  string `mapstructure:"api_url"`
	Timeout int    `mapstructure:"timeout"`
}

type IdentityConfig struct {
	Domain      string `mapstructure:"domain"`
	ClientID    string `mapstructure:"client_id"`
	Audience    string `mapstructure:"audience"`
	RedirectURI string `mapstructure:"redirect_uri"`
	Scopes      string `mapstructure:"scopes"`
	Timeout     int    `mapstructure:"timeout"`
}

// ScopeList splits the space-separated scopes.
func (i IdentityConfig) ScopeList() []string {
	return strings.Fields(i.Scopes)
}

type GeocodeConfig struct {
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"`
}

type GeolocationConfig struct {
	Provider  string  `mapstructure:"provider"` // "ipapi" | "static"
	URL       string  `mapstructure:"url"`
	Timeout   int     `mapstructure:"timeout"`
	StaticLat float64 `mapstructure:"static_lat"`
	StaticLng float64 `mapstructure:"static_lng"`
	StaticSet bool    `mapstructure:"static_set"`
}

type SessionConfig struct {
	DefaultLat      float64 `mapstructure:"default_lat"`
	DefaultLng      float64 `mapstructure:"default_lng"`
	BBoxDelta       float64 `mapstructure:"bbox_delta"`
	ChargeMS        int     `mapstructure:"charge_ms"`
	HoldTolerancePx float64 `mapstructure:"hold_tolerance_px"`
	TokenCacheTTL   int     `mapstructure:"token_cache_ttl"`
}

// ChargeDuration is the hold time needed to commit a pin placement.
func (s SessionConfig) ChargeDuration() time.Duration {
	return time.Duration(s.ChargeMS) * time.Millisecond
}

type MapConfig struct {
	Provider           string `mapstructure:"provider"` // "leaflet" | "google"
	LeafletTileURL     string `mapstructure:"leaflet_tile_url"`
	LeafletAttribution string `mapstructure:"leaflet_attribution"`
	GoogleAPIKey       string `mapstructure:"google_api_key"`
	Zoom               int    `mapstructure:"zoom"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Seconds converts a whole-second config value to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:5173, http://localhost:3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pins.api_url", "")
	v.SetDefault("pins.timeout", 10)
	v.SetDefault("identity.domain", "")
	v.SetDefault("identity.client_id", "")
	v.SetDefault("identity.audience", "")
	v.SetDefault("identity.redirect_uri", "http://localhost:8787/v1/auth/callback")
	v.SetDefault("identity.scopes", "openid profile email offline_access")
	v.SetDefault("identity.timeout", 10)
	v.SetDefault("geocode.url", "https://api.bigdatacloud.net/data/reverse-geocode-client")
	v.SetDefault("geocode.timeout", 5)
	v.SetDefault("geolocation.provider", "ipapi")
	v.SetDefault("geolocation.url", "http://ip-api.com/json")
	v.SetDefault("geolocation.timeout", 8)
	v.SetDefault("geolocation.static_lat", 0.0)
	v.SetDefault("geolocation.static_lng", 0.0)
	v.SetDefault("geolocation.static_set", false)
	v.SetDefault("session.default_lat", 41.9028)
	v.SetDefault("session.default_lng", 12.4964)
	v.SetDefault("session.bbox_delta", 0.04)
	v.SetDefault("session.charge_ms", 1200)
	v.SetDefault("session.hold_tolerance_px", 12.0)
	v.SetDefault("session.token_cache_ttl", 900)
	v.SetDefault("map.provider", "leaflet")
	v.SetDefault("map.leaflet_tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.leaflet_attribution", "&copy; OpenStreetMap contributors")
	v.SetDefault("map.google_api_key", "")
	v.SetDefault("map.zoom", 13)
	v.SetDefault("nats.url", "")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BROOKS_PINS_API_URL → pins.api_url
	v.SetEnvPrefix("BROOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Pins.APIURL == "" {
		errs = append(errs, "pins.api_url is required")
	}
	if c.Pins.Timeout <= 0 {
		errs = append(errs, "pins.timeout must be positive")
	}
	if c.Identity.Domain == "" {
		errs = append(errs, "identity.domain is required")
	}
	if c.Identity.ClientID == "" {
		errs = append(errs, "identity.client_id is required")
	}
	if c.Geolocation.Timeout <= 0 {
		errs = append(errs, "geolocation.timeout must be positive")
	}
	if c.Geocode.Timeout <= 0 {
		errs = append(errs, "geocode.timeout must be positive")
	}
	switch c.Geolocation.Provider {
	case "ipapi", "static":
	default:
		errs = append(errs, fmt.Sprintf("geolocation.provider must be ipapi or static, got %q", c.Geolocation.Provider))
	}
	switch c.Map.Provider {
	case "leaflet", "google":
	default:
		errs = append(errs, fmt.Sprintf("map.provider must be leaflet or google, got %q", c.Map.Provider))
	}
	if !validLat(c.Session.DefaultLat) || !validLng(c.Session.DefaultLng) {
		errs = append(errs, fmt.Sprintf("session default center %v,%v is out of range", c.Session.DefaultLat, c.Session.DefaultLng))
	}
	if c.Session.BBoxDelta <= 0 || c.Session.BBoxDelta > 5 {
		errs = append(errs, fmt.Sprintf("session.bbox_delta must be in (0, 5], got %v", c.Session.BBoxDelta))
	}
	if c.Session.ChargeMS <= 0 {
		errs = append(errs, "session.charge_ms must be positive")
	}
	if c.Session.HoldTolerancePx < 0 {
		errs = append(errs, "session.hold_tolerance_px must not be negative")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("map.zoom must be 0-22, got %d", c.Map.Zoom))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validLat(v float64) bool { return !math.IsNaN(v) && v >= -90 && v <= 90 }
func validLng(v float64) bool { return !math.IsNaN(v) && v >= -180 && v <= 180 }
