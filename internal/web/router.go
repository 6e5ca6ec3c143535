package web

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// RouterOptions configures middleware around the handlers.
type RouterOptions struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration // 0 disables the deadline
	Limiter        *rate.Limiter // nil disables rate limiting
	Denials        DenialRecorder
}

// NewRouter wires every route. /health and /metrics skip the rate limiter
// and timeout so health checks and scrapes keep working under load.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	app := router.NewRoute().Subrouter()
	app.Use(RateLimitMiddleware(opts.Limiter, opts.Denials))
	if opts.RequestTimeout > 0 {
		app.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	app.HandleFunc("/", h.GetPage).Methods(http.MethodGet)
	app.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	app.HandleFunc("/select", h.Select).Methods(http.MethodPost)
	app.HandleFunc("/units/system", h.ToggleSystem).Methods(http.MethodPost)
	app.HandleFunc("/units/{category}/{unit}", h.SetUnit).Methods(http.MethodPost)
	app.HandleFunc("/favorites", h.SaveFavorite).Methods(http.MethodPost)
	app.HandleFunc("/favorites/{index:[0-9]+}", h.SelectFavorite).Methods(http.MethodPost)
	app.HandleFunc("/geolocation", h.Geolocation).Methods(http.MethodPost)
	app.HandleFunc("/api/search", h.APISearch).Methods(http.MethodGet)

	return router
}
