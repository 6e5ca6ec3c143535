package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-lookup/internal/units"
)

// Config holds service and CLI configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string

	GeocodingURL     string
	GeocodingTimeout time.Duration
	MaxCandidates    int

	ForecastURL     string
	ForecastTimeout time.Duration

	RequestTimeout time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	StoreBackend          string // memory, memcached, sqlite, postgres
	StoreDSN              string
	StoreTTL              time.Duration
	MaxFavorites          int
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	SessionSecret       string
	SessionTTL          time.Duration
	SessionSecureCookie bool

	GoogleGeocodingAPIKey string

	MaxQueryLength int
	DefaultUnits   units.Preference

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	TrackedLocations []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Geocoding struct {
		URL           string `yaml:"url"`
		Timeout       string `yaml:"timeout"`
		MaxCandidates int    `yaml:"max_candidates"`
	} `yaml:"geocoding"`

	Forecast struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"forecast"`

	Request struct {
		Timeout        string `yaml:"timeout"`
		MaxQueryLength int    `yaml:"max_query_length"`
	} `yaml:"request"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Store struct {
		Backend      string `yaml:"backend"`
		DSN          string `yaml:"dsn"`
		TTL          string `yaml:"ttl"`
		MaxFavorites int    `yaml:"max_favorites"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Session struct {
		TTL          string `yaml:"ttl"`
		SecureCookie bool   `yaml:"secure_cookie"`
	} `yaml:"session"`

	Units struct {
		Default string `yaml:"default"`
	} `yaml:"units"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	SessionSecret         string `yaml:"session_secret"`
	GoogleGeocodingAPIKey string `yaml:"google_geocoding_api_key"`
}

// Load reads .env (optional), config/{ENV_NAME}.yaml (default dev, optional)
// and config/secrets.yaml (optional) relative to the working directory, then
// applies env overrides. Missing files leave defaults in place.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return loadFrom(cwd)
}

func loadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	if err := readYAML(filepath.Join(dir, "config", env+".yaml"), &fc); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	var sec secretsFile
	if err := readYAML(filepath.Join(dir, "config", "secrets.yaml"), &sec); err != nil {
		return nil, fmt.Errorf("secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.GeocodingURL = firstNonEmpty(fc.Geocoding.URL, "https://geocoding-api.open-meteo.com/v1/search")
	cfg.GeocodingTimeout = parseDurationOrZero(fc.Geocoding.Timeout, 5*time.Second)
	cfg.MaxCandidates = fc.Geocoding.MaxCandidates
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	cfg.ForecastURL = firstNonEmpty(fc.Forecast.URL, "https://api.open-meteo.com/v1/forecast")
	cfg.ForecastTimeout = parseDurationOrZero(fc.Forecast.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.MaxQueryLength = fc.Request.MaxQueryLength
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 100
	}

	cfg.CircuitBreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.StoreBackend = strings.ToLower(firstNonEmpty(os.Getenv("STORE_BACKEND"), fc.Store.Backend, "memory"))
	cfg.StoreDSN = firstNonEmpty(os.Getenv("STORE_DSN"), fc.Store.DSN)
	cfg.StoreTTL = parseDurationOrZero(fc.Store.TTL, 0)
	cfg.MaxFavorites = fc.Store.MaxFavorites
	if cfg.MaxFavorites <= 0 {
		cfg.MaxFavorites = 10
	}
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Store.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.SessionSecret = firstNonEmpty(os.Getenv("SESSION_SECRET"), sec.SessionSecret)
	cfg.SessionTTL = parseDuration(fc.Session.TTL, 24*time.Hour)
	cfg.SessionSecureCookie = fc.Session.SecureCookie

	cfg.GoogleGeocodingAPIKey = firstNonEmpty(os.Getenv("GOOGLE_GEOCODING_API_KEY"), sec.GoogleGeocodingAPIKey)

	pref, err := units.ParsePreference(firstNonEmpty(os.Getenv("DEFAULT_UNITS"), fc.Units.Default, string(units.Metric)))
	if err != nil {
		return nil, fmt.Errorf("units.default: %w", err)
	}
	cfg.DefaultUnits = pref

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readYAML unmarshals path into out. A missing file is not an error.
func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unusable values and raises RequestTimeout so a request
// always outlives its two sequential upstream calls.
func validate(cfg *Config) error {
	if cfg.GeocodingTimeout <= 0 {
		return fmt.Errorf("geocoding.timeout must be positive")
	}
	if cfg.ForecastTimeout <= 0 {
		return fmt.Errorf("forecast.timeout must be positive")
	}
	if minimum := cfg.GeocodingTimeout + cfg.ForecastTimeout; cfg.RequestTimeout <= minimum {
		cfg.RequestTimeout = minimum + time.Second
	}
	switch cfg.StoreBackend {
	case "memory", "memcached":
	case "sqlite", "postgres":
		if cfg.StoreDSN == "" {
			return fmt.Errorf("store.dsn (or STORE_DSN) is required for the %s backend", cfg.StoreBackend)
		}
	default:
		return fmt.Errorf("store.backend must be memory, memcached, sqlite or postgres, got %q", cfg.StoreBackend)
	}
	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	return nil
}
