package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-lookup/internal/health"
	"github.com/kjstillabower/weather-lookup/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup/internal/store"
)

func newFavorites() *store.Store {
	return store.New(store.NewMemoryBackend(0), store.DefaultMaxFavorites)
}

// TestGetPage_NewSession verifies the first visit issues a session cookie
// and renders the empty page with the geolocation script.
func TestGetPage_NewSession(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)

	w := b.get(ts.router, "/")

	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if _, ok := b.cookies[cookieName]; !ok {
		t.Errorf("session cookie %q not set", cookieName)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-state="empty"`) {
		t.Error("page is not in the empty state")
	}
	if !strings.Contains(body, "navigator.geolocation") {
		t.Error("empty page should ask the browser for a position fix")
	}
	if ts.handler.Sessions().Count() != 1 {
		t.Errorf("Sessions().Count() = %d, want 1", ts.handler.Sessions().Count())
	}
}

// TestGetPage_SameCookieSameSession verifies a returning browser keeps its
// orchestrator.
func TestGetPage_SameCookieSameSession(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)

	b.get(ts.router, "/search?q=Berlin")
	w := b.get(ts.router, "/")

	if !strings.Contains(w.Body.String(), "Berlin, Land Berlin, Germany") {
		t.Error("returning browser lost its rendered location")
	}
	if ts.handler.Sessions().Count() != 1 {
		t.Errorf("Sessions().Count() = %d, want 1", ts.handler.Sessions().Count())
	}

	other := newBrowser(t)
	w = other.get(ts.router, "/")
	if strings.Contains(w.Body.String(), "Berlin, Land Berlin, Germany") {
		t.Error("a second browser saw another session's location")
	}
}

func TestSearch_SingleCandidateRendersResults(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)

	w := b.get(ts.router, "/search?q=Berlin")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{`data-state="results"`, "Berlin, Land Berlin, Germany", "20°", "10 km/h", "Partly cloudy"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if got, ok := ts.fetcher.last(); !ok || got.Latitude != berlin.Latitude {
		t.Errorf("fetch coordinates = %+v, want Berlin", got)
	}
}

func TestSearch_States(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantState string
		wantText  string
	}{
		{"no results", "Atlantis", "no_results", "No search result found!"},
		{"upstream failure", "failing", "api_error", "Something went wrong"},
		{"ambiguous", "London", "disambiguation", "London, Ontario, Canada"},
		{"empty query", "   ", "empty", "please enter a location to search for"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			b := newBrowser(t)

			w := b.get(ts.router, "/search?q="+url.QueryEscape(tt.query))

			body := w.Body.String()
			if !strings.Contains(body, `data-state="`+tt.wantState+`"`) {
				t.Errorf("page state missing %q", tt.wantState)
			}
			if !strings.Contains(body, tt.wantText) {
				t.Errorf("body missing %q", tt.wantText)
			}
		})
	}
}

// TestSearch_InvalidInputNoticeShownOnce verifies the validation message is a
// one-time notice that leaves the previous results in place.
func TestSearch_InvalidInputNoticeShownOnce(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)
	b.get(ts.router, "/search?q=Berlin")

	w := b.get(ts.router, "/search?q=")
	body := w.Body.String()
	if !strings.Contains(body, "please enter a location to search for") {
		t.Error("notice not shown")
	}
	if !strings.Contains(body, "Berlin, Land Berlin, Germany") {
		t.Error("previous results should stay visible behind the notice")
	}

	w = b.get(ts.router, "/")
	if strings.Contains(w.Body.String(), "please enter a location to search for") {
		t.Error("notice shown twice")
	}
}

func TestSelect_PicksCandidate(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)
	b.get(ts.router, "/search?q=London")

	w := b.post(ts.router, "/select", url.Values{"index": {"1"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("POST /select status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("redirect = %q, want /", loc)
	}
	if got, _ := ts.fetcher.last(); got.Latitude != londonCA.Latitude {
		t.Errorf("fetched %+v, want London, Ontario", got)
	}

	w = b.get(ts.router, "/")
	if !strings.Contains(w.Body.String(), "<h1>London, Ontario, Canada</h1>") {
		t.Error("selected candidate not rendered")
	}
}

func TestSelect_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		setup string
		index string
	}{
		{"not a number", "/search?q=London", "first"},
		{"out of range", "/search?q=London", "7"},
		{"not disambiguating", "/search?q=Berlin", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			b := newBrowser(t)
			b.get(ts.router, tt.setup)

			w := b.post(ts.router, "/select", url.Values{"index": {tt.index}})
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

// TestUnits_ToggleRerendersWithoutFetching verifies unit changes reuse the
// stored snapshot.
func TestUnits_ToggleRerendersWithoutFetching(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)
	b.get(ts.router, "/search?q=Berlin")

	w := b.post(ts.router, "/units/system", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("POST /units/system status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	body := b.get(ts.router, "/").Body.String()
	for _, want := range []string{"68°", "6 mph", "0.05 in", "Switch to Metric"} {
		if !strings.Contains(body, want) {
			t.Errorf("imperial body missing %q", want)
		}
	}

	b.post(ts.router, "/units/temperature/C", nil)
	body = b.get(ts.router, "/").Body.String()
	if !strings.Contains(body, "20°") || !strings.Contains(body, "6 mph") {
		t.Error("granular temperature change should keep mph")
	}

	if n := len(ts.fetcher.calls); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestUnits_InvalidUnit(t *testing.T) {
	ts := newTestServer(t, nil)
	b := newBrowser(t)

	for _, target := range []string{"/units/temperature/K", "/units/altitude/m", "/units/speed/knots"} {
		w := b.post(ts.router, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want %d", target, w.Code, http.StatusBadRequest)
		}
	}
}

func TestFavorites_SaveAndSelect(t *testing.T) {
	ts := newTestServer(t, newFavorites())
	b := newBrowser(t)

	b.get(ts.router, "/search?q=Berlin")
	if w := b.post(ts.router, "/favorites", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("POST /favorites status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	b.get(ts.router, "/search?q=London")
	b.post(ts.router, "/select", url.Values{"index": {"0"}})
	b.post(ts.router, "/favorites", nil)

	body := b.get(ts.router, "/").Body.String()
	if !strings.Contains(body, `action="/favorites/1"`) {
		t.Error("second favorite not listed")
	}

	if w := b.post(ts.router, "/favorites/0", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("POST /favorites/0 status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if got, _ := ts.fetcher.last(); got.Latitude != berlin.Latitude {
		t.Errorf("favorite 0 fetched %+v, want Berlin", got)
	}

	if w := b.post(ts.router, "/favorites/9", nil); w.Code != http.StatusNotFound {
		t.Errorf("POST /favorites/9 status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestFavorites_Rejected(t *testing.T) {
	t.Run("nothing rendered", func(t *testing.T) {
		ts := newTestServer(t, newFavorites())
		w := newBrowser(t).post(ts.router, "/favorites", nil)
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
		}
	})
	t.Run("no store", func(t *testing.T) {
		ts := newTestServer(t, nil)
		b := newBrowser(t)
		b.get(ts.router, "/search?q=Berlin")
		if w := b.post(ts.router, "/favorites", nil); w.Code != http.StatusNotImplemented {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotImplemented)
		}
	})
}

// TestStartup_ShowsSavedLocation verifies a session rebuilt for a known
// profile cookie opens on the newest favorite.
func TestStartup_ShowsSavedLocation(t *testing.T) {
	favorites := newFavorites()
	first := newTestServer(t, favorites)
	b := newBrowser(t)
	b.get(first.router, "/search?q=Berlin")
	b.post(first.router, "/favorites", nil)

	restarted := newTestServer(t, favorites)
	w := b.get(restarted.router, "/")

	if !strings.Contains(w.Body.String(), "<h1>Berlin, Land Berlin, Germany</h1>") {
		t.Error("saved location not shown on startup")
	}
	if len(restarted.fetcher.calls) != 1 {
		t.Errorf("startup fetch calls = %d, want 1", len(restarted.fetcher.calls))
	}

	// Startup runs once per session: a later GET must not refetch.
	b.get(restarted.router, "/")
	if len(restarted.fetcher.calls) != 1 {
		t.Errorf("fetch calls after reload = %d, want 1", len(restarted.fetcher.calls))
	}
}

func TestGeolocation(t *testing.T) {
	t.Run("named fix renders", func(t *testing.T) {
		ts := newTestServer(t, nil)
		b := newBrowser(t)

		w := b.post(ts.router, "/geolocation", url.Values{"lat": {"52.52"}, "lon": {"13.405"}})
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if !strings.Contains(b.get(ts.router, "/").Body.String(), "<h1>Current Location</h1>") {
			t.Error("geolocated forecast not rendered under the fallback name")
		}
	})

	tests := []struct {
		name     string
		lat, lon string
	}{
		{"not numbers", "north", "east"},
		{"off the globe", "123", "13.4"},
		{"missing", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			w := newBrowser(t).post(ts.router, "/geolocation", url.Values{"lat": {tt.lat}, "lon": {tt.lon}})
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			var resp map[string]map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"]["code"] != "INVALID_COORDINATES" {
				t.Errorf("code = %q, want INVALID_COORDINATES", resp["error"]["code"])
			}
			if len(ts.fetcher.calls) != 0 {
				t.Error("invalid coordinates reached the fetcher")
			}
		})
	}
}

func decodeAPI(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestAPISearch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantState  string
		wantCode   string
		wantTemp   float64
	}{
		{"single metric", "q=Berlin", http.StatusOK, "results", "", 20},
		{"single imperial", "q=Berlin&units=imperial", http.StatusOK, "results", "", 68},
		{"granular units", "q=Berlin&units=metric,F,km/h,mm", http.StatusOK, "results", "", 68},
		{"ambiguous", "q=London", http.StatusOK, "disambiguation", "", 0},
		{"ambiguous with pick", "q=London&pick=2", http.StatusOK, "results", "", 20},
		{"pick out of range", "q=London&pick=5", http.StatusBadRequest, "", "INVALID_PICK", 0},
		{"pick not a number", "q=London&pick=zero", http.StatusBadRequest, "", "INVALID_PICK", 0},
		{"empty query", "q=", http.StatusBadRequest, "", "INVALID_QUERY", 0},
		{"bad country", "q=Berlin&country=Germany", http.StatusBadRequest, "", "INVALID_QUERY", 0},
		{"bad units", "q=Berlin&units=nautical", http.StatusBadRequest, "", "INVALID_UNITS", 0},
		{"no results", "q=Atlantis", http.StatusNotFound, "", "NO_RESULTS", 0},
		{"only candidate lacks coordinates", "q=Mitad+del+Mundo", http.StatusNotFound, "", "NO_RESULTS", 0},
		{"upstream failure", "q=failing", http.StatusServiceUnavailable, "", "UPSTREAM_UNAVAILABLE", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/search?"+tt.query, nil)
			req.Header.Set("X-Correlation-ID", "api-test")
			w := httptest.NewRecorder()

			ts.router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decodeAPI(t, w)
			if tt.wantCode != "" {
				errObj, _ := resp["error"].(map[string]interface{})
				if errObj["code"] != tt.wantCode {
					t.Errorf("error.code = %v, want %s", errObj["code"], tt.wantCode)
				}
				if errObj["requestId"] != "api-test" {
					t.Errorf("error.requestId = %v, want api-test", errObj["requestId"])
				}
				return
			}
			if resp["state"] != tt.wantState {
				t.Errorf("state = %v, want %s", resp["state"], tt.wantState)
			}
			if tt.wantState == "results" {
				view := resp["view"].(map[string]interface{})
				current := view["current"].(map[string]interface{})
				if current["temperature"] != tt.wantTemp {
					t.Errorf("current.temperature = %v, want %v", current["temperature"], tt.wantTemp)
				}
			}
			if tt.wantState == "disambiguation" {
				candidates := resp["candidates"].([]interface{})
				if len(candidates) != 2 {
					t.Fatalf("candidates = %d, want 2", len(candidates))
				}
				second := candidates[1].(map[string]interface{})
				if second["displayName"] != "London, Ontario, Canada" {
					t.Errorf("candidates[1].displayName = %v", second["displayName"])
				}
			}
		})
	}
}

// TestAPISearch_NoSession verifies the API never creates browser sessions.
func TestAPISearch_NoSession(t *testing.T) {
	ts := newTestServer(t, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=Berlin", nil))

	if len(w.Result().Cookies()) != 0 {
		t.Error("API response set a cookie")
	}
	if ts.handler.Sessions().Count() != 0 {
		t.Errorf("Sessions().Count() = %d, want 0", ts.handler.Sessions().Count())
	}
}

func TestGetHealth_StatusAndTransitionLog(t *testing.T) {
	defer lifecycle.SetShuttingDown(false)
	core, logs := observer.New(zapcore.InfoLevel)
	tracker := health.NewTracker()
	checker := health.NewChecker(health.Config{DegradedWindow: time.Minute, DegradedErrorPct: 50}, tracker)

	h, err := NewHandler(Config{
		Resolver: newResolver(),
		Fetcher:  &mockFetcher{},
		Checker:  checker,
		Sessions: SessionConfig{Secret: testSecret},
	}, zap.New(core))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	router := NewRouter(h, RouterOptions{})

	get := func() (int, map[string]interface{}) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		return w.Code, decodeAPI(t, w)
	}

	code, body := get()
	if code != http.StatusOK || body["status"] != health.StatusHealthy {
		t.Fatalf("health = %d %v, want 200 healthy", code, body["status"])
	}

	tracker.RecordError()
	code, body = get()
	if code != http.StatusServiceUnavailable || body["status"] != health.StatusDegraded {
		t.Errorf("health = %d %v, want 503 degraded", code, body["status"])
	}
	checks := body["checks"].(map[string]interface{})
	if checks["openMeteo"] != "unhealthy" {
		t.Errorf("checks.openMeteo = %v, want unhealthy", checks["openMeteo"])
	}

	lifecycle.SetShuttingDown(true)
	code, body = get()
	if code != http.StatusServiceUnavailable || body["status"] != health.StatusShuttingDown {
		t.Errorf("health = %d %v, want 503 shutting-down", code, body["status"])
	}

	transitions := logs.FilterMessage("health status transition").All()
	if len(transitions) != 2 {
		t.Fatalf("transition logs = %d, want 2", len(transitions))
	}
	if got := transitions[1].ContextMap()["current_status"]; got != health.StatusShuttingDown {
		t.Errorf("last transition current_status = %v, want shutting-down", got)
	}
}

func TestNewHandler_RequiresCollaborators(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Error("NewHandler() with no resolver should fail")
	}
}
