// Package wmo classifies WMO weather interpretation codes into the icon and
// description shown for current, hourly and daily conditions.
package wmo

// Icon is one of the nine display categories.
type Icon string

const (
	Clear        Icon = "clear"
	PartlyCloudy Icon = "partly-cloudy"
	Overcast     Icon = "overcast"
	Fog          Icon = "fog"
	Drizzle      Icon = "drizzle"
	Rain         Icon = "rain"
	Snow         Icon = "snow"
	Storm        Icon = "storm"
	Unknown      Icon = "unknown"
)

// UnknownDescription is returned for codes outside the table.
const UnknownDescription = "Unknown"

// Classification pairs an icon with its human-readable description.
type Classification struct {
	Icon        Icon   `json:"icon"`
	Description string `json:"description"`
}

var table = map[int]Classification{
	0:  {Clear, "Clear sky"},
	1:  {Clear, "Mainly clear"},
	2:  {PartlyCloudy, "Partly cloudy"},
	3:  {Overcast, "Overcast"},
	45: {Fog, "Fog"},
	48: {Fog, "Depositing rime fog"},
	51: {Drizzle, "Light drizzle"},
	53: {Drizzle, "Moderate drizzle"},
	55: {Drizzle, "Dense drizzle"},
	56: {Drizzle, "Light freezing drizzle"},
	57: {Drizzle, "Dense freezing drizzle"},
	61: {Rain, "Slight rain"},
	63: {Rain, "Moderate rain"},
	65: {Rain, "Heavy rain"},
	66: {Rain, "Light freezing rain"},
	67: {Rain, "Heavy freezing rain"},
	71: {Snow, "Slight snow fall"},
	73: {Snow, "Moderate snow fall"},
	75: {Snow, "Heavy snow fall"},
	77: {Snow, "Snow grains"},
	80: {Rain, "Slight rain showers"},
	81: {Rain, "Moderate rain showers"},
	82: {Rain, "Violent rain showers"},
	85: {Snow, "Slight snow showers"},
	86: {Snow, "Heavy snow showers"},
	95: {Storm, "Thunderstorm"},
	96: {Storm, "Thunderstorm with slight hail"},
	99: {Storm, "Thunderstorm with heavy hail"},
}

// Classify maps any integer to a classification. Codes not in the table,
// including negatives and values above 99, yield Unknown.
func Classify(code int) Classification {
	if c, ok := table[code]; ok {
		return c
	}
	return Classification{Icon: Unknown, Description: UnknownDescription}
}

// IconFor returns the icon for code.
func IconFor(code int) Icon {
	return Classify(code).Icon
}

// Describe returns the description for code.
func Describe(code int) string {
	return Classify(code).Description
}

var assets = map[Icon]string{
	Clear:        "icon-sunny.webp",
	PartlyCloudy: "icon-partly-cloudy.webp",
	Overcast:     "icon-overcast.webp",
	Fog:          "icon-fog.webp",
	Drizzle:      "icon-drizzle.webp",
	Rain:         "icon-rain.webp",
	Snow:         "icon-snow.webp",
	Storm:        "icon-storm.webp",
}

// Asset returns the image file name the page uses for the icon.
func (i Icon) Asset() string {
	if a, ok := assets[i]; ok {
		return a
	}
	return "icon-error.svg"
}
