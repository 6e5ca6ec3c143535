package models

import "time"

// ForecastDays is the fixed daily forecast horizon.
const ForecastDays = 7

// WeatherSnapshot is one forecast fetch: current conditions, hourly and daily
// series. Values are canonical metric and the snapshot is never mutated after
// it is built; a new fetch replaces it wholesale.
type WeatherSnapshot struct {
	Current  CurrentConditions `json:"current"`
	Hourly   HourlyForecast    `json:"hourly"`
	Daily    []DailyForecast   `json:"daily"`
	Timezone string            `json:"timezone"`
}

// CurrentConditions holds the current observation. Temperature and FeelsLike
// are °C, WindSpeed km/h, Precipitation mm, Visibility metres and
// SurfacePressure hPa (mb). Optional fields are nil when the upstream omits them.
type CurrentConditions struct {
	Temperature     float64    `json:"temperature"`
	FeelsLike       float64    `json:"feelsLike"`
	Humidity        float64    `json:"humidity"`
	WindSpeed       float64    `json:"windSpeed"`
	Precipitation   float64    `json:"precipitation"`
	WeatherCode     int        `json:"weatherCode"`
	Time            time.Time  `json:"time"`
	Visibility      *float64   `json:"visibility,omitempty"`
	UVIndex         *float64   `json:"uvIndex,omitempty"`
	SurfacePressure *float64   `json:"surfacePressure,omitempty"`
	Sunrise         *time.Time `json:"sunrise,omitempty"`
	Sunset          *time.Time `json:"sunset,omitempty"`
}

// DailyForecast is one day of the forecast; index 0 is today.
type DailyForecast struct {
	DayShort      string  `json:"dayShort"`
	DayLong       string  `json:"dayLong"`
	Date          string  `json:"date"` // YYYY-MM-DD in the location's timezone
	WeatherCode   int     `json:"weatherCode"`
	TempMax       float64 `json:"tempMax"`
	TempMin       float64 `json:"tempMin"`
	Precipitation float64 `json:"precipitation"`
}

// HourEntry is one hour of the hourly forecast.
type HourEntry struct {
	Time                     time.Time `json:"time"`
	Label                    string    `json:"label"`   // "3 pm"
	DayKey                   string    `json:"dayKey"`  // YYYY-MM-DD
	DayName                  string    `json:"dayName"` // "Monday"
	Temperature              float64   `json:"temperature"`
	WeatherCode              int       `json:"weatherCode"`
	PrecipitationProbability int       `json:"precipitationProbability"`
}

// HourlyForecast exposes the same hours three ways: flat, the next 24 hours,
// and grouped by day. DayOrder lists ByDay keys chronologically.
type HourlyForecast struct {
	All      []HourEntry            `json:"all"`
	Next24   []HourEntry            `json:"next24"`
	ByDay    map[string][]HourEntry `json:"byDay"`
	DayOrder []string               `json:"dayOrder"`
}
