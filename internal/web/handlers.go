// Package web serves the weather-lookup page and JSON API. Each browser
// session owns one orchestrator; handlers drive it and render what its
// presenter recorded.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/health"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/orchestrator"
	"github.com/kjstillabower/weather-lookup/internal/store"
	"github.com/kjstillabower/weather-lookup/internal/units"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Config holds the collaborators shared by every session.
type Config struct {
	Resolver       orchestrator.LocationResolver
	Fetcher        orchestrator.ForecastFetcher
	Namer          orchestrator.ReverseGeocoder // nil uses the generic "Current Location" name
	Favorites      *store.Store                 // nil disables favorites
	Checker        *health.Checker
	Sessions       SessionConfig
	MaxQueryLength int
	DefaultUnits   units.Preference
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cfg      Config
	sessions *Sessions
	logger   *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a Handler with its session registry.
func NewHandler(cfg Config, logger *zap.Logger) (*Handler, error) {
	if cfg.Resolver == nil || cfg.Fetcher == nil {
		return nil, fmt.Errorf("web: resolver and fetcher are required")
	}
	if cfg.DefaultUnits == (units.Preference{}) {
		cfg.DefaultUnits = units.DefaultPreference()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{cfg: cfg, logger: logger}
	sess, err := NewSessions(cfg.Sessions, h.newSessionOrchestrator)
	if err != nil {
		return nil, err
	}
	h.sessions = sess
	return h, nil
}

// Sessions exposes the registry for the active-session gauge.
func (h *Handler) Sessions() *Sessions {
	return h.sessions
}

func (h *Handler) newSessionOrchestrator(profileID string, p orchestrator.Presenter) *orchestrator.Orchestrator {
	opts := h.orchestratorOptions(h.cfg.DefaultUnits)
	if h.cfg.Favorites != nil {
		opts = append(opts, orchestrator.WithStore(h.cfg.Favorites.Profile(profileID)))
	}
	return orchestrator.New(h.cfg.Resolver, h.cfg.Fetcher, p, opts...)
}

func (h *Handler) orchestratorOptions(pref units.Preference) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(h.logger),
		orchestrator.WithPreference(pref),
	}
	if h.cfg.MaxQueryLength > 0 {
		opts = append(opts, orchestrator.WithMaxQueryLength(h.cfg.MaxQueryLength))
	}
	if h.cfg.Namer != nil {
		opts = append(opts, orchestrator.WithReverseGeocoder(h.cfg.Namer))
	}
	return opts
}

type pageData struct {
	Page       PageState
	Preference units.Preference
	Favorites  []models.Location
	CanSave    bool
	Query      string
	Country    string
}

// GetPage handles GET /. The first visit of a session shows the saved
// location, if any; the browser asks for geolocation when the page is empty.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.startup(func() {
		if err := sess.Orchestrator.LoadStartup(r.Context(), nil); err != nil {
			h.logOutcome(r, "startup", err)
		}
	})
	h.renderPage(w, r, sess, "", "")
}

// Search handles GET /search?q=&country=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.startup(func() {})
	q := r.URL.Query().Get("q")
	country := r.URL.Query().Get("country")
	if err := sess.Orchestrator.SearchInCountry(r.Context(), q, country); err != nil {
		h.logOutcome(r, "search", err)
	}
	h.renderPage(w, r, sess, q, country)
}

// Select handles POST /select with form field index (zero-based).
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		h.writePageError(w, r, http.StatusBadRequest, "index must be a number")
		return
	}
	if err := sess.Page.Select(r.Context(), index); err != nil {
		if errors.Is(err, ErrNoSuchCandidate) {
			h.writePageError(w, r, http.StatusBadRequest, "That choice is no longer available. Please search again.")
			return
		}
		h.logOutcome(r, "select", err)
	}
	redirectHome(w, r)
}

// ToggleSystem handles POST /units/system.
func (h *Handler) ToggleSystem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Orchestrator.ToggleSystem()
	redirectHome(w, r)
}

// SetUnit handles POST /units/{category}/{unit} for temperature, speed and
// precipitation.
func (h *Handler) SetUnit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	apply, err := unitSetter(vars["category"], vars["unit"])
	if err != nil {
		h.writePageError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	apply(sess.Orchestrator)
	redirectHome(w, r)
}

func unitSetter(category, unit string) (func(*orchestrator.Orchestrator), error) {
	switch category {
	case "temperature":
		u, err := units.ParseTempUnit(unit)
		if err != nil {
			return nil, err
		}
		return func(o *orchestrator.Orchestrator) { o.SetTemperatureUnit(u) }, nil
	case "speed":
		u, err := units.ParseSpeedUnit(unit)
		if err != nil {
			return nil, err
		}
		return func(o *orchestrator.Orchestrator) { o.SetSpeedUnit(u) }, nil
	case "precipitation":
		u, err := units.ParsePrecipUnit(unit)
		if err != nil {
			return nil, err
		}
		return func(o *orchestrator.Orchestrator) { o.SetPrecipitationUnit(u) }, nil
	}
	return nil, fmt.Errorf("unknown unit category %q", category)
}

// SaveFavorite handles POST /favorites.
func (h *Handler) SaveFavorite(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Orchestrator.SaveCurrent(r.Context()); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNothingToSave):
			h.writePageError(w, r, http.StatusConflict, "Search for a place before saving it.")
		case errors.Is(err, orchestrator.ErrNoStore):
			h.writePageError(w, r, http.StatusNotImplemented, "Favorites are not enabled.")
		default:
			h.logOutcome(r, "save_favorite", err)
			h.writePageError(w, r, http.StatusServiceUnavailable, "Could not save this location. Please try again.")
		}
		return
	}
	redirectHome(w, r)
}

// SelectFavorite handles POST /favorites/{index}.
func (h *Handler) SelectFavorite(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		h.writePageError(w, r, http.StatusBadRequest, "index must be a number")
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Orchestrator.SelectFavorite(r.Context(), index); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrFavoriteNotFound):
			h.writePageError(w, r, http.StatusNotFound, "That favorite no longer exists.")
			return
		case errors.Is(err, orchestrator.ErrNoStore):
			h.writePageError(w, r, http.StatusNotImplemented, "Favorites are not enabled.")
			return
		}
		h.logOutcome(r, "select_favorite", err)
	}
	redirectHome(w, r)
}

// Geolocation handles POST /geolocation with form fields lat and lon, sent
// by the page script after the browser grants a position fix.
func (h *Handler) Geolocation(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lat")), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lon")), 64)
	if errLat != nil || errLon != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat and lon must be numbers")
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.startup(func() {})
	if err := sess.Orchestrator.OnGeolocation(r.Context(), lat, lon); err != nil {
		if errors.Is(err, orchestrator.ErrInvalidLocation) {
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "coordinates are out of range")
			return
		}
		h.logOutcome(r, "geolocation", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type apiResponse struct {
	State      string             `json:"state"`
	View       *orchestrator.View `json:"view,omitempty"`
	Candidates []apiCandidate     `json:"candidates,omitempty"`
	Preference units.Preference   `json:"preference"`
}

type apiCandidate struct {
	models.Location
	DisplayName string `json:"displayName"`
}

// APISearch handles GET /api/search?q=&country=&units=&pick=. It runs a
// one-shot orchestrator without session state. pick (1-based) chooses a
// candidate when the query is ambiguous.
func (h *Handler) APISearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	pref, err := units.ParsePreference(firstNonEmpty(params.Get("units"), h.cfg.DefaultUnits.String()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNITS", err.Error())
		return
	}
	pick := 0
	if raw := params.Get("pick"); raw != "" {
		if pick, err = strconv.Atoi(raw); err != nil || pick < 1 {
			writeError(w, r, http.StatusBadRequest, "INVALID_PICK", "pick must be a positive number")
			return
		}
	}

	page := NewPagePresenter()
	orch := orchestrator.New(h.cfg.Resolver, h.cfg.Fetcher, page, h.orchestratorOptions(pref)...)
	err = orch.SearchInCountry(r.Context(), params.Get("q"), params.Get("country"))
	var invalid *orchestrator.InvalidInputError
	if errors.As(err, &invalid) {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", invalid.Message)
		return
	}
	if pick > 0 && err == nil && page.State().Kind == PageDisambiguation {
		if serr := page.Select(r.Context(), pick-1); errors.Is(serr, ErrNoSuchCandidate) {
			writeError(w, r, http.StatusBadRequest, "INVALID_PICK", "pick is out of range")
			return
		} else if serr != nil {
			err = serr
		}
	}
	if err != nil {
		h.logOutcome(r, "api_search", err)
	}
	h.writePageJSON(w, r, page.State(), orch.Preference())
}

func (h *Handler) writePageJSON(w http.ResponseWriter, r *http.Request, s PageState, pref units.Preference) {
	switch s.Kind {
	case PageResults:
		writeJSON(w, http.StatusOK, apiResponse{State: string(s.Kind), View: s.View, Preference: pref})
	case PageDisambiguation:
		resp := apiResponse{State: string(s.Kind), Preference: pref}
		for _, c := range s.Candidates {
			resp.Candidates = append(resp.Candidates, apiCandidate{Location: c, DisplayName: c.DisplayName()})
		}
		writeJSON(w, http.StatusOK, resp)
	case PageNoResults:
		writeError(w, r, http.StatusNotFound, "NO_RESULTS", "No search result found")
	default:
		writeServiceError(w, r)
	}
}

// GetHealth handles GET /health and logs status transitions.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Checker == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": health.StatusHealthy})
		return
	}
	result := h.cfg.Checker.Evaluate(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.Status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.Status),
			zap.String("reason", result.Reason))
	}
	h.healthStatusPrev = result.Status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.StatusCode, map[string]interface{}{
		"status":    result.Status,
		"reason":    result.Reason,
		"service":   "weather-lookup",
		"version":   "dev",
		"checks":    result.Checks,
		"sessions":  h.sessions.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.sessions.Get(w, r)
	if err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("session", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "SESSION_ERROR", "Unable to start a session")
		return nil, false
	}
	return sess, true
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, sess *Session, query, country string) {
	data := pageData{
		Page:       sess.Page.TakeState(),
		Preference: sess.Orchestrator.Preference(),
		Query:      query,
		Country:    country,
	}
	data.CanSave = data.Page.Kind == PageResults && h.cfg.Favorites != nil
	if h.cfg.Favorites != nil {
		favs, err := sess.Orchestrator.Favorites(r.Context())
		if err != nil {
			h.logOutcome(r, "list_favorites", err)
		}
		data.Favorites = favs
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.ExecuteTemplate(w, "page", data); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("render page", zap.Error(err))
	}
}

// writePageError answers a page form with a plain-text message. Browsers
// following the PRG flow never see it unless the form was tampered with.
func (h *Handler) writePageError(w http.ResponseWriter, r *http.Request, status int, message string) {
	observability.LoggerFrom(r.Context(), h.logger).Debug("page request rejected",
		zap.Int("status", status), zap.String("message", message))
	http.Error(w, message, status)
}

// logOutcome logs an orchestrator error. User errors were already rendered
// by the presenter; collaborator failures are logged by the orchestrator.
func (h *Handler) logOutcome(r *http.Request, op string, err error) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	if orchestrator.IsUserError(err) {
		logger.Debug("request rejected", zap.String("op", op), zap.Error(err))
		return
	}
	logger.Debug("request failed", zap.String("op", op), zap.Error(err))
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's
// correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes a 503 for upstream failures. The cause was
// already logged by the orchestrator.
func writeServiceError(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
}
