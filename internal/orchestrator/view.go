package orchestrator

import (
	"time"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/units"
	"github.com/kjstillabower/weather-lookup/internal/wmo"
)

// View is a snapshot projected into display units. Every numeric field is
// converted and rounded from the same Preference, so a view never mixes units.
type View struct {
	Location    models.Location  `json:"location"`
	DisplayName string           `json:"displayName"`
	Preference  units.Preference `json:"preference"`
	Units       UnitLabels       `json:"units"`
	Timezone    string           `json:"timezone"`
	Current     CurrentView      `json:"current"`
	Daily       []DailyView      `json:"daily"`
	Next24      []HourView       `json:"next24"`
	Days        []DayHours       `json:"days"`
}

// UnitLabels are the suffixes shown next to values.
type UnitLabels struct {
	Temperature   string `json:"temperature"`
	Speed         string `json:"speed"`
	Precipitation string `json:"precipitation"`
	Visibility    string `json:"visibility"`
	Pressure      string `json:"pressure"`
}

// CurrentView is the current-conditions card.
type CurrentView struct {
	Temperature   float64    `json:"temperature"`
	FeelsLike     float64    `json:"feelsLike"`
	Humidity      float64    `json:"humidity"`
	WindSpeed     float64    `json:"windSpeed"`
	Precipitation float64    `json:"precipitation"`
	WeatherCode   int        `json:"weatherCode"`
	Icon          wmo.Icon   `json:"icon"`
	IconAsset     string     `json:"iconAsset"`
	Description   string     `json:"description"`
	Time          time.Time  `json:"time"`
	Visibility    *float64   `json:"visibility,omitempty"`
	UVIndex       *float64   `json:"uvIndex,omitempty"`
	Pressure      *float64   `json:"pressure,omitempty"`
	Sunrise       *time.Time `json:"sunrise,omitempty"`
	Sunset        *time.Time `json:"sunset,omitempty"`
}

// DailyView is one row of the 7-day forecast.
type DailyView struct {
	DayShort      string   `json:"dayShort"`
	DayLong       string   `json:"dayLong"`
	Date          string   `json:"date"`
	TempMax       float64  `json:"tempMax"`
	TempMin       float64  `json:"tempMin"`
	Precipitation float64  `json:"precipitation"`
	WeatherCode   int      `json:"weatherCode"`
	Icon          wmo.Icon `json:"icon"`
	IconAsset     string   `json:"iconAsset"`
	Description   string   `json:"description"`
}

// HourView is one hourly cell.
type HourView struct {
	Label                    string   `json:"label"`
	Temperature              float64  `json:"temperature"`
	PrecipitationProbability int      `json:"precipitationProbability"`
	WeatherCode              int      `json:"weatherCode"`
	Icon                     wmo.Icon `json:"icon"`
	IconAsset                string   `json:"iconAsset"`
	Description              string   `json:"description"`
}

// DayHours groups hours under one calendar day.
type DayHours struct {
	Key   string     `json:"key"`
	Name  string     `json:"name"`
	Hours []HourView `json:"hours"`
}

// BuildView projects snapshot for loc under pref. The snapshot is read only.
func BuildView(loc models.Location, snapshot models.WeatherSnapshot, pref units.Preference) View {
	p := projector{pref: pref}
	cur := snapshot.Current
	cls := wmo.Classify(cur.WeatherCode)

	v := View{
		Location:    loc,
		DisplayName: loc.DisplayName(),
		Preference:  pref,
		Units:       p.labels(),
		Timezone:    snapshot.Timezone,
		Current: CurrentView{
			Temperature:   p.temperature(cur.Temperature),
			FeelsLike:     p.temperature(cur.FeelsLike),
			Humidity:      units.Round(cur.Humidity),
			WindSpeed:     p.speed(cur.WindSpeed),
			Precipitation: p.precipitation(cur.Precipitation),
			WeatherCode:   cur.WeatherCode,
			Icon:          cls.Icon,
			IconAsset:     cls.Icon.Asset(),
			Description:   cls.Description,
			Time:          cur.Time,
			Sunrise:       cur.Sunrise,
			Sunset:        cur.Sunset,
		},
		Daily:  make([]DailyView, 0, len(snapshot.Daily)),
		Next24: p.hours(snapshot.Hourly.Next24),
		Days:   make([]DayHours, 0, len(snapshot.Hourly.DayOrder)),
	}
	if cur.Visibility != nil {
		v.Current.Visibility = ptr(p.visibility(*cur.Visibility))
	}
	if cur.UVIndex != nil {
		v.Current.UVIndex = ptr(units.Round(*cur.UVIndex))
	}
	if cur.SurfacePressure != nil {
		v.Current.Pressure = ptr(p.pressure(*cur.SurfacePressure))
	}

	for _, d := range snapshot.Daily {
		dc := wmo.Classify(d.WeatherCode)
		v.Daily = append(v.Daily, DailyView{
			DayShort:      d.DayShort,
			DayLong:       d.DayLong,
			Date:          d.Date,
			TempMax:       p.temperature(d.TempMax),
			TempMin:       p.temperature(d.TempMin),
			Precipitation: p.precipitation(d.Precipitation),
			WeatherCode:   d.WeatherCode,
			Icon:          dc.Icon,
			IconAsset:     dc.Icon.Asset(),
			Description:   dc.Description,
		})
	}

	for _, key := range snapshot.Hourly.DayOrder {
		hours := snapshot.Hourly.ByDay[key]
		name := ""
		if len(hours) > 0 {
			name = hours[0].DayName
		}
		v.Days = append(v.Days, DayHours{Key: key, Name: name, Hours: p.hours(hours)})
	}
	return v
}

type projector struct {
	pref units.Preference
}

func (p projector) labels() UnitLabels {
	l := UnitLabels{
		Temperature:   "°C",
		Speed:         string(units.KMH),
		Precipitation: string(units.Millimetres),
		Visibility:    "km",
		Pressure:      "mb",
	}
	if p.pref.Temperature == units.Fahrenheit {
		l.Temperature = "°F"
	}
	if p.pref.Speed == units.MPH {
		l.Speed = string(units.MPH)
		l.Visibility = "mi"
	}
	if p.pref.Precipitation == units.Inches {
		l.Precipitation = string(units.Inches)
		l.Pressure = "inHg"
	}
	return l
}

func (p projector) temperature(c float64) float64 {
	if p.pref.Temperature == units.Fahrenheit {
		return units.Round(units.CelsiusToFahrenheit(c))
	}
	return units.Round(c)
}

func (p projector) speed(kmh float64) float64 {
	if p.pref.Speed == units.MPH {
		return units.Round(units.KMHToMPH(kmh))
	}
	return units.Round(kmh)
}

func (p projector) precipitation(mm float64) float64 {
	if p.pref.Precipitation == units.Inches {
		return units.Round2(units.MMToInches(mm))
	}
	return units.Round2(mm)
}

func (p projector) visibility(metres float64) float64 {
	km := units.MetresToKilometres(metres)
	if p.pref.Speed == units.MPH {
		return units.Round(units.KilometresToMiles(km))
	}
	return units.Round(km)
}

func (p projector) pressure(mb float64) float64 {
	if p.pref.Precipitation == units.Inches {
		return units.Round2(units.MBToInches(mb))
	}
	return units.Round(mb)
}

func (p projector) hours(entries []models.HourEntry) []HourView {
	out := make([]HourView, 0, len(entries))
	for _, h := range entries {
		hc := wmo.Classify(h.WeatherCode)
		out = append(out, HourView{
			Label:                    h.Label,
			Temperature:              p.temperature(h.Temperature),
			PrecipitationProbability: h.PrecipitationProbability,
			WeatherCode:              h.WeatherCode,
			Icon:                     hc.Icon,
			IconAsset:                hc.Icon.Asset(),
			Description:              hc.Description,
		})
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}
