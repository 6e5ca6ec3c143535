package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/circuitbreaker"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/geolocate"
	"github.com/kjstillabower/weather-lookup/internal/health"
	"github.com/kjstillabower/weather-lookup/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/orchestrator"
	"github.com/kjstillabower/weather-lookup/internal/store"
	"github.com/kjstillabower/weather-lookup/internal/web"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	tracker := health.NewTracker()
	geocodingOpts := []client.Option{client.WithOutcomeRecorder(tracker)}
	forecastOpts := []client.Option{client.WithOutcomeRecorder(tracker)}
	if cfg.CircuitBreakerEnabled {
		geocodingOpts = append(geocodingOpts, client.WithBreaker(newBreaker(cfg, "geocoding", logger)))
		forecastOpts = append(forecastOpts, client.WithBreaker(newBreaker(cfg, "forecast", logger)))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	geocoder, err := client.NewGeocodingClient(cfg.GeocodingURL, cfg.GeocodingTimeout, cfg.MaxCandidates, geocodingOpts...)
	if err != nil {
		logger.Fatal("geocoding client", zap.Error(err))
	}
	forecaster, err := client.NewForecastClient(cfg.ForecastURL, cfg.ForecastTimeout, forecastOpts...)
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	backend, err := store.OpenBackend(openCtx, store.BackendOptions{
		Kind:             cfg.StoreBackend,
		DSN:              cfg.StoreDSN,
		MemcachedAddrs:   cfg.MemcachedAddrs,
		MemcachedTimeout: cfg.MemcachedTimeout,
		MaxIdleConns:     cfg.MemcachedMaxIdleConns,
		TTL:              cfg.StoreTTL,
	})
	openCancel()
	if err != nil {
		logger.Fatal("favorites store", zap.Error(err))
	}
	favorites := store.New(backend, cfg.MaxFavorites)
	logger.Info("store backend", zap.String("backend", backend.Name()), zap.Int("max_favorites", cfg.MaxFavorites))

	var namer orchestrator.ReverseGeocoder = geolocate.StaticNamer{}
	if cfg.GoogleGeocodingAPIKey != "" {
		g, err := geolocate.NewGoogleReverseGeocoder(cfg.GoogleGeocodingAPIKey)
		if err != nil {
			logger.Fatal("reverse geocoder", zap.Error(err))
		}
		namer = g
		logger.Info("reverse geocoding: google")
	}

	checker := health.NewChecker(health.Config{
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
	}, tracker)
	checker.AddPing("store", backend.Ping)

	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}
	handler, err := web.NewHandler(web.Config{
		Resolver:  geocoder,
		Fetcher:   forecaster,
		Namer:     namer,
		Favorites: favorites,
		Checker:   checker,
		Sessions: web.SessionConfig{
			Secret: cfg.SessionSecret,
			TTL:    cfg.SessionTTL,
			Secure: cfg.SessionSecureCookie,
		},
		MaxQueryLength: cfg.MaxQueryLength,
		DefaultUnits:   cfg.DefaultUnits,
	}, logger)
	if err != nil {
		logger.Fatal("handler", zap.Error(err))
	}
	observability.RegisterSessionGauge(handler.Sessions().Count)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := web.NewRouter(handler, web.RouterOptions{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		Denials:        tracker,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	sig := lifecycle.WaitForSignal(context.Background())
	logger.Info("graceful shutdown triggered", zap.Stringer("signal", sig))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := web.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := web.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", web.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if err := backend.Close(); err != nil {
		logger.Error("store close", zap.String("backend", backend.Name()), zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newBreaker builds a per-API breaker that reports its state as a gauge.
func newBreaker(cfg *config.Config, name string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(name).Set(0)
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        name,
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(component).Set(float64(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
}
