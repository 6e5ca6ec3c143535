// Package units converts canonical metric weather values for display and
// holds the user's unit preference.
package units

import "math"

const (
	mmPerInch       = 25.4
	mbPerInchOfHg   = 33.8639
	mphPerKMH       = 0.621371
	metresPerKMetre = 1000
)

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// MMToInches converts millimetres of precipitation to inches.
func MMToInches(mm float64) float64 {
	return mm / mmPerInch
}

// MBToInches converts millibars of pressure to inches of mercury.
func MBToInches(mb float64) float64 {
	return mb / mbPerInchOfHg
}

// KMHToMPH converts km/h to mph.
func KMHToMPH(kmh float64) float64 {
	return kmh * mphPerKMH
}

// MetresToKilometres converts a visibility distance in metres to kilometres.
func MetresToKilometres(m float64) float64 {
	return m / metresPerKMetre
}

// KilometresToMiles uses the same factor as KMHToMPH.
func KilometresToMiles(km float64) float64 {
	return km * mphPerKMH
}

// Round rounds half away from zero to an integer value.
func Round(v float64) float64 {
	return math.Round(v)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
