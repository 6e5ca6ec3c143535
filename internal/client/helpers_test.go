package client

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const (
	testGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	testForecastURL  = "https://api.open-meteo.com/v1/forecast"

	geocodingPattern = `=~^https://geocoding-api\.open-meteo\.com/v1/search`
	forecastPattern  = `=~^https://api\.open-meteo\.com/v1/forecast`
)

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

// londonResults is a geocoding body with two same-named cities.
func londonResults() string {
	return `{
  "results": [
    {"id": 2643743, "name": "London", "latitude": 51.50853, "longitude": -0.12574,
     "country_code": "GB", "country": "United Kingdom", "admin1": "England"},
    {"id": 6058560, "name": "London", "latitude": 42.98339, "longitude": -81.23304,
     "country_code": "CA", "country": "Canada", "admin1": "Ontario"}
  ],
  "generationtime_ms": 0.7
}`
}

// forecastBody builds an Open-Meteo style forecast starting at midnight on
// Monday 2024-06-03 in Europe/Berlin with 48 hourly entries and 7 days.
func forecastBody(t *testing.T, mutate func(map[string]interface{})) string {
	t.Helper()

	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	hourTimes := make([]string, 48)
	hourTemps := make([]float64, 48)
	hourCodes := make([]int, 48)
	hourProb := make([]interface{}, 48)
	for i := range hourTimes {
		hourTimes[i] = start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04")
		hourTemps[i] = 10 + float64(i%24)/2
		hourCodes[i] = []int{0, 2, 3, 61}[i%4]
		hourProb[i] = i % 100
	}
	hourProb[5] = nil

	dayTimes := make([]string, 7)
	for i := range dayTimes {
		dayTimes[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}

	body := map[string]interface{}{
		"latitude":           52.52,
		"longitude":          13.41,
		"timezone":           "Europe/Berlin",
		"utc_offset_seconds": 7200,
		"current": map[string]interface{}{
			"time":                 "2024-06-03T13:15",
			"temperature_2m":       20.0,
			"relative_humidity_2m": 55.0,
			"apparent_temperature": 19.4,
			"precipitation":        0.3,
			"weather_code":         2,
			"wind_speed_10m":       12.6,
			"visibility":           24140.0,
			"uv_index":             5.35,
			"surface_pressure":     1013.25,
		},
		"hourly": map[string]interface{}{
			"time":                      hourTimes,
			"temperature_2m":            hourTemps,
			"weather_code":              hourCodes,
			"precipitation_probability": hourProb,
		},
		"daily": map[string]interface{}{
			"time":               dayTimes,
			"weather_code":       []int{2, 3, 61, 0, 1, 95, 71},
			"temperature_2m_max": []float64{22, 21, 18, 25, 26, 23, 5},
			"temperature_2m_min": []float64{12, 11, 10, 14, 15, 13, -2},
			"precipitation_sum":  []float64{0.3, 0, 8.4, 0, 0, 12.1, 3},
			"sunrise":            []string{"2024-06-03T04:46", "2024-06-04T04:45"},
			"sunset":             []string{"2024-06-03T21:25", "2024-06-04T21:26"},
		},
	}
	if mutate != nil {
		mutate(body)
	}
	out, err := json.Marshal(body)
	require.NoError(t, err)
	return string(out)
}

func section(body map[string]interface{}, name string) map[string]interface{} {
	s, ok := body[name].(map[string]interface{})
	if !ok {
		panic(fmt.Sprintf("fixture has no %q section", name))
	}
	return s
}
