package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // forecast timezones are arbitrary IANA names

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/suntimes"
)

var (
	currentFields = []string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature", "precipitation",
		"weather_code", "wind_speed_10m", "visibility", "uv_index", "surface_pressure",
	}
	hourlyFields = []string{"temperature_2m", "weather_code", "precipitation_probability"}
	dailyFields  = []string{
		"weather_code", "temperature_2m_max", "temperature_2m_min", "precipitation_sum", "sunrise", "sunset",
	}
)

const (
	localTimeLayout = "2006-01-02T15:04"
	dateLayout      = "2006-01-02"
	hoursAhead      = 24
)

// ForecastClient fetches current, hourly and daily weather for coordinates.
type ForecastClient struct {
	up *upstream
}

// NewForecastClient creates a client for the forecast endpoint at apiURL.
func NewForecastClient(apiURL string, timeout time.Duration, opts ...Option) (*ForecastClient, error) {
	up, err := newUpstream(apiForecast, apiURL, timeout, opts)
	if err != nil {
		return nil, err
	}
	return &ForecastClient{up: up}, nil
}

type forecastResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Current          struct {
		Time            string   `json:"time"`
		Temperature     *float64 `json:"temperature_2m"`
		Humidity        *float64 `json:"relative_humidity_2m"`
		FeelsLike       *float64 `json:"apparent_temperature"`
		Precipitation   *float64 `json:"precipitation"`
		WeatherCode     *int     `json:"weather_code"`
		WindSpeed       *float64 `json:"wind_speed_10m"`
		Visibility      *float64 `json:"visibility"`
		UVIndex         *float64 `json:"uv_index"`
		SurfacePressure *float64 `json:"surface_pressure"`
	} `json:"current"`
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature              []float64  `json:"temperature_2m"`
		WeatherCode              []int      `json:"weather_code"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
	Daily struct {
		Time             []string  `json:"time"`
		WeatherCode      []int     `json:"weather_code"`
		TempMax          []float64 `json:"temperature_2m_max"`
		TempMin          []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		Sunrise          []string  `json:"sunrise"`
		Sunset           []string  `json:"sunset"`
	} `json:"daily"`
}

// Fetch returns a 7-day snapshot for the coordinates in canonical metric
// units. Timestamps are interpreted in the location's own timezone.
func (c *ForecastClient) Fetch(ctx context.Context, latitude, longitude float64) (models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	params.Set("current", strings.Join(currentFields, ","))
	params.Set("hourly", strings.Join(hourlyFields, ","))
	params.Set("daily", strings.Join(dailyFields, ","))
	params.Set("timezone", "auto")
	params.Set("forecast_days", strconv.Itoa(models.ForecastDays))

	var resp forecastResponse
	if err := c.up.getJSON(ctx, params, &resp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("forecast %.4f,%.4f: %w", latitude, longitude, err)
	}
	snap, err := normalizeForecast(resp, latitude, longitude)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("forecast %.4f,%.4f: %w", latitude, longitude, err)
	}
	return snap, nil
}

func normalizeForecast(resp forecastResponse, latitude, longitude float64) (models.WeatherSnapshot, error) {
	loc := forecastLocation(resp.Timezone, resp.UTCOffsetSeconds)

	current, err := normalizeCurrent(resp, loc)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	hourly, err := normalizeHourly(resp, loc, current.Time)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	daily, err := normalizeDaily(resp, loc)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	current.Sunrise = parseOptionalTime(resp.Daily.Sunrise, loc)
	current.Sunset = parseOptionalTime(resp.Daily.Sunset, loc)
	if current.Sunrise == nil || current.Sunset == nil {
		if st, err := suntimes.For(latitude, longitude, current.Time); err == nil {
			if current.Sunrise == nil {
				current.Sunrise = &st.Sunrise
			}
			if current.Sunset == nil {
				current.Sunset = &st.Sunset
			}
		}
	}

	return models.WeatherSnapshot{
		Current:  current,
		Hourly:   hourly,
		Daily:    daily,
		Timezone: resp.Timezone,
	}, nil
}

// forecastLocation prefers the IANA zone and falls back to the fixed offset.
func forecastLocation(name string, offsetSeconds int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if offsetSeconds != 0 {
		return time.FixedZone(name, offsetSeconds)
	}
	return time.UTC
}

func normalizeCurrent(resp forecastResponse, loc *time.Location) (models.CurrentConditions, error) {
	cur := resp.Current
	if cur.Temperature == nil || cur.WeatherCode == nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: missing current conditions", ErrDecode)
	}
	ts, err := time.ParseInLocation(localTimeLayout, cur.Time, loc)
	if err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: current time %q", ErrDecode, cur.Time)
	}
	return models.CurrentConditions{
		Temperature:     *cur.Temperature,
		FeelsLike:       valueOr(cur.FeelsLike, *cur.Temperature),
		Humidity:        valueOr(cur.Humidity, 0),
		WindSpeed:       valueOr(cur.WindSpeed, 0),
		Precipitation:   valueOr(cur.Precipitation, 0),
		WeatherCode:     *cur.WeatherCode,
		Time:            ts,
		Visibility:      cur.Visibility,
		UVIndex:         cur.UVIndex,
		SurfacePressure: cur.SurfacePressure,
	}, nil
}

func normalizeHourly(resp forecastResponse, loc *time.Location, now time.Time) (models.HourlyForecast, error) {
	h := resp.Hourly
	n := len(h.Time)
	if len(h.Temperature) != n || len(h.WeatherCode) != n || len(h.PrecipitationProbability) != n {
		return models.HourlyForecast{}, fmt.Errorf("%w: hourly series lengths differ", ErrDecode)
	}

	out := models.HourlyForecast{
		All:   make([]models.HourEntry, 0, n),
		ByDay: make(map[string][]models.HourEntry),
	}
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation(localTimeLayout, raw, loc)
		if err != nil {
			return models.HourlyForecast{}, fmt.Errorf("%w: hourly time %q", ErrDecode, raw)
		}
		entry := models.HourEntry{
			Time:                     ts,
			Label:                    strings.ToLower(ts.Format("3 PM")),
			DayKey:                   ts.Format(dateLayout),
			DayName:                  ts.Weekday().String(),
			Temperature:              h.Temperature[i],
			WeatherCode:              h.WeatherCode[i],
			PrecipitationProbability: int(valueOr(h.PrecipitationProbability[i], 0)),
		}
		out.All = append(out.All, entry)
		if _, seen := out.ByDay[entry.DayKey]; !seen {
			out.DayOrder = append(out.DayOrder, entry.DayKey)
		}
		out.ByDay[entry.DayKey] = append(out.ByDay[entry.DayKey], entry)
	}
	out.Next24 = nextHours(out.All, now, hoursAhead)
	return out, nil
}

// nextHours returns up to n entries starting at the hour containing now.
func nextHours(all []models.HourEntry, now time.Time, n int) []models.HourEntry {
	start := 0
	if !now.IsZero() {
		// Wall-clock truncation; Truncate is wrong for half-hour offsets.
		hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
		start = len(all)
		for i, e := range all {
			if !e.Time.Before(hour) {
				start = i
				break
			}
		}
	}
	end := start + n
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func normalizeDaily(resp forecastResponse, loc *time.Location) ([]models.DailyForecast, error) {
	d := resp.Daily
	n := len(d.Time)
	if len(d.WeatherCode) != n || len(d.TempMax) != n || len(d.TempMin) != n || len(d.PrecipitationSum) != n {
		return nil, fmt.Errorf("%w: daily series lengths differ", ErrDecode)
	}
	out := make([]models.DailyForecast, 0, n)
	for i, raw := range d.Time {
		day, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: daily date %q", ErrDecode, raw)
		}
		out = append(out, models.DailyForecast{
			DayShort:      day.Format("Mon"),
			DayLong:       day.Weekday().String(),
			Date:          raw,
			WeatherCode:   d.WeatherCode[i],
			TempMax:       d.TempMax[i],
			TempMin:       d.TempMin[i],
			Precipitation: d.PrecipitationSum[i],
		})
	}
	return out, nil
}

// parseOptionalTime parses the first entry of a daily time series.
func parseOptionalTime(series []string, loc *time.Location) *time.Time {
	if len(series) == 0 || series[0] == "" {
		return nil
	}
	ts, err := time.ParseInLocation(localTimeLayout, series[0], loc)
	if err != nil {
		return nil
	}
	return &ts
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
