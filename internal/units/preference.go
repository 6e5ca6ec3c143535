package units

import (
	"fmt"
	"strings"
)

// System is the measurement-system label shown on the bulk toggle.
type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

// TempUnit is the temperature display unit.
type TempUnit string

const (
	Celsius    TempUnit = "C"
	Fahrenheit TempUnit = "F"
)

// SpeedUnit is the wind speed display unit. Visibility follows it (km or mi).
type SpeedUnit string

const (
	KMH SpeedUnit = "km/h"
	MPH SpeedUnit = "mph"
)

// PrecipUnit is the precipitation display unit. Pressure follows it (mb or inHg).
type PrecipUnit string

const (
	Millimetres PrecipUnit = "mm"
	Inches      PrecipUnit = "in"
)

// Preference is the active unit selection. The zero value is not valid; use
// DefaultPreference or PreferenceFor.
//
// The bulk toggle sets all four fields together. Granular setters change one
// axis and leave the system label alone, so a preference such as
// Metric + mph is legal.
type Preference struct {
	System        System     `json:"system"`
	Temperature   TempUnit   `json:"temperature"`
	Speed         SpeedUnit  `json:"speed"`
	Precipitation PrecipUnit `json:"precipitation"`
}

// DefaultPreference is all-metric.
func DefaultPreference() Preference {
	return PreferenceFor(Metric)
}

// PreferenceFor returns the consistent preference for a system.
func PreferenceFor(s System) Preference {
	if s == Imperial {
		return Preference{System: Imperial, Temperature: Fahrenheit, Speed: MPH, Precipitation: Inches}
	}
	return Preference{System: Metric, Temperature: Celsius, Speed: KMH, Precipitation: Millimetres}
}

// ToggleSystem flips the system label and sets every sub-unit to match it.
func (p *Preference) ToggleSystem() {
	if p.System == Imperial {
		*p = PreferenceFor(Metric)
		return
	}
	*p = PreferenceFor(Imperial)
}

// SetTemperature selects a temperature unit. It returns false when u is
// already active.
func (p *Preference) SetTemperature(u TempUnit) bool {
	if p.Temperature == u {
		return false
	}
	p.Temperature = u
	return true
}

// SetSpeed selects a speed unit. It returns false when u is already active.
func (p *Preference) SetSpeed(u SpeedUnit) bool {
	if p.Speed == u {
		return false
	}
	p.Speed = u
	return true
}

// SetPrecipitation selects a precipitation unit. It returns false when u is
// already active.
func (p *Preference) SetPrecipitation(u PrecipUnit) bool {
	if p.Precipitation == u {
		return false
	}
	p.Precipitation = u
	return true
}

// Consistent reports whether every sub-unit matches the system label.
func (p Preference) Consistent() bool {
	return p == PreferenceFor(p.System)
}

// String encodes the preference as "system,temp,speed,precip", the form
// accepted by ParsePreference.
func (p Preference) String() string {
	return strings.Join([]string{string(p.System), string(p.Temperature), string(p.Speed), string(p.Precipitation)}, ",")
}

// ParsePreference accepts either a bare system name ("metric", "imperial")
// or the four-part form produced by String.
func ParsePreference(s string) (Preference, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", string(Metric):
		return PreferenceFor(Metric), nil
	case string(Imperial):
		return PreferenceFor(Imperial), nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Preference{}, fmt.Errorf("units: invalid preference %q", s)
	}
	p := Preference{System: System(strings.ToLower(strings.TrimSpace(parts[0])))}
	if p.System != Metric && p.System != Imperial {
		return Preference{}, fmt.Errorf("units: unknown system %q", parts[0])
	}
	var err error
	if p.Temperature, err = ParseTempUnit(parts[1]); err != nil {
		return Preference{}, err
	}
	if p.Speed, err = ParseSpeedUnit(parts[2]); err != nil {
		return Preference{}, err
	}
	if p.Precipitation, err = ParsePrecipUnit(parts[3]); err != nil {
		return Preference{}, err
	}
	return p, nil
}

// ParseTempUnit accepts "C", "F", "celsius" or "fahrenheit" in any case.
func ParseTempUnit(s string) (TempUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	}
	return "", fmt.Errorf("units: unknown temperature unit %q", s)
}

// ParseSpeedUnit accepts "km/h", "kmh" or "mph".
func ParseSpeedUnit(s string) (SpeedUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km/h", "kmh":
		return KMH, nil
	case "mph":
		return MPH, nil
	}
	return "", fmt.Errorf("units: unknown speed unit %q", s)
}

// ParsePrecipUnit accepts "mm", "in" or "inches".
func ParsePrecipUnit(s string) (PrecipUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mm":
		return Millimetres, nil
	case "in", "inches":
		return Inches, nil
	}
	return "", fmt.Errorf("units: unknown precipitation unit %q", s)
}
