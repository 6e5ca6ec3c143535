package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/store"
)

var (
	londonUK = models.Location{Name: "London", Admin1: "England", Country: "United Kingdom", Latitude: 51.5085, Longitude: -0.1257}
	londonCA = models.Location{Name: "London", Admin1: "Ontario", Country: "Canada", Latitude: 42.9834, Longitude: -81.233}
	berlin   = models.Location{Name: "Berlin", Admin1: "Land Berlin", Country: "Germany", Latitude: 52.5244, Longitude: 13.4105}

	errUpstream = errors.New("upstream down")
)

// mockResolver answers by lower-cased query; unknown queries are Empty.
type mockResolver struct {
	mu      sync.Mutex
	results map[string]client.Resolution
	calls   int
}

func (m *mockResolver) Resolve(_ context.Context, query, _ string) client.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if res, ok := m.results[strings.ToLower(query)]; ok {
		return res
	}
	return client.Empty()
}

type mockFetcher struct {
	mu    sync.Mutex
	err   error
	calls []models.Location
}

func (m *mockFetcher) Fetch(_ context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, models.Location{Latitude: lat, Longitude: lon})
	if m.err != nil {
		return models.WeatherSnapshot{}, m.err
	}
	return testSnapshot(), nil
}

func (m *mockFetcher) last() (models.Location, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return models.Location{}, false
	}
	return m.calls[len(m.calls)-1], true
}

func newResolver() *mockResolver {
	return &mockResolver{results: map[string]client.Resolution{
		"berlin":  client.Found([]models.Location{berlin}),
		"london":  client.Found([]models.Location{londonUK, londonCA}),
		"failing": client.Failed(errUpstream),
		"mitad del mundo": client.Found([]models.Location{
			{Name: "Mitad del Mundo", Country: "Ecuador", Latitude: 0, Longitude: -78.4558},
		}),
	}}
}

// testSnapshot is 20°C, 10 km/h and 1.27 mm so unit changes are visible.
func testSnapshot() models.WeatherSnapshot {
	loc := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2024, 6, 3, 13, 0, 0, 0, loc)
	hour := models.HourEntry{Time: now, Label: "1 pm", DayKey: "2024-06-03", DayName: "Monday", Temperature: 20, WeatherCode: 2, PrecipitationProbability: 10}
	daily := make([]models.DailyForecast, 0, models.ForecastDays)
	for i := 0; i < models.ForecastDays; i++ {
		d := now.AddDate(0, 0, i)
		daily = append(daily, models.DailyForecast{
			DayShort: d.Format("Mon"), DayLong: d.Weekday().String(), Date: d.Format("2006-01-02"),
			WeatherCode: 3, TempMax: 25, TempMin: 12.5, Precipitation: 2.54,
		})
	}
	return models.WeatherSnapshot{
		Timezone: "Europe/Berlin",
		Current: models.CurrentConditions{
			Temperature: 20, FeelsLike: 18.4, Humidity: 55, WindSpeed: 10,
			Precipitation: 1.27, WeatherCode: 2, Time: now,
		},
		Hourly: models.HourlyForecast{
			All:      []models.HourEntry{hour},
			Next24:   []models.HourEntry{hour},
			ByDay:    map[string][]models.HourEntry{"2024-06-03": {hour}},
			DayOrder: []string{"2024-06-03"},
		},
		Daily: daily,
	}
}

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	handler  *Handler
	router   http.Handler
	resolver *mockResolver
	fetcher  *mockFetcher
}

// newTestServer wires a Handler and router over mocks. favorites may be nil.
func newTestServer(t *testing.T, favorites *store.Store) *testServer {
	t.Helper()
	ts := &testServer{resolver: newResolver(), fetcher: &mockFetcher{}}
	h, err := NewHandler(Config{
		Resolver:  ts.resolver,
		Fetcher:   ts.fetcher,
		Favorites: favorites,
		Sessions:  SessionConfig{Secret: testSecret, TTL: time.Hour},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	ts.handler = h
	ts.router = NewRouter(h, RouterOptions{Logger: zap.NewNop()})
	return ts
}

// browser replays cookies between requests like a real client.
type browser struct {
	t       *testing.T
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T) *browser {
	return &browser{t: t, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(h http.Handler, target string) *httptest.ResponseRecorder {
	return b.do(h, httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(h, req)
}
