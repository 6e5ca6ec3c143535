// Package suntimes computes astronomical sunrise and sunset for a position.
// It backs the forecast when the upstream daily series omits them.
package suntimes

import (
	"fmt"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// Times holds sunrise and sunset in the location of the requested date.
type Times struct {
	Sunrise time.Time
	Sunset  time.Time
}

// For returns sunrise and sunset on date's calendar day at the given
// coordinates. Results are expressed in date.Location(). Polar day and
// polar night return an error.
func For(latitude, longitude float64, date time.Time) (Times, error) {
	observer := astral.Observer{Latitude: latitude, Longitude: longitude}
	loc := date.Location()

	sunrise, err := astral.Sunrise(observer, date)
	if err != nil {
		return Times{}, fmt.Errorf("calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(observer, date)
	if err != nil {
		return Times{}, fmt.Errorf("calculate sunset: %w", err)
	}
	return Times{Sunrise: sunrise.In(loc), Sunset: sunset.In(loc)}, nil
}
