// Package geolocate names a raw latitude/longitude fix so it can be shown
// and saved like a searched location.
package geolocate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// FallbackName is used when a fix cannot be named.
const FallbackName = "Current Location"

// ErrNoAddress is returned when the lookup succeeds with no usable address.
var ErrNoAddress = errors.New("no address for coordinates")

// Fallback returns an unnamed location at the given coordinates.
func Fallback(latitude, longitude float64) models.Location {
	return models.Location{Name: FallbackName, Latitude: latitude, Longitude: longitude}
}

// StaticNamer names every fix FallbackName. Used when no geocoding key is configured.
type StaticNamer struct{}

// Reverse implements the reverse geocoder contract.
func (StaticNamer) Reverse(_ context.Context, latitude, longitude float64) (models.Location, error) {
	return Fallback(latitude, longitude), nil
}

type lookupFunc func(geocoder.Location) ([]geocoder.Address, error)

// the geocoder package keys requests off a package-level variable
var apiKeyMu sync.Mutex

// GoogleReverseGeocoder names fixes through the Google Geocoding API.
type GoogleReverseGeocoder struct {
	apiKey string
	lookup lookupFunc
}

// NewGoogleReverseGeocoder returns a reverse geocoder using apiKey.
func NewGoogleReverseGeocoder(apiKey string) (*GoogleReverseGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("geolocate: API key is required")
	}
	return &GoogleReverseGeocoder{apiKey: apiKey, lookup: geocoder.GeocodingReverse}, nil
}

// Reverse returns a Location named after the city (or nearest admin area)
// at the coordinates. Coordinates are always the ones passed in.
func (g *GoogleReverseGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}

	apiKeyMu.Lock()
	geocoder.ApiKey = g.apiKey
	addresses, err := g.lookup(geocoder.Location{Latitude: latitude, Longitude: longitude})
	apiKeyMu.Unlock()
	if err != nil {
		return models.Location{}, fmt.Errorf("reverse geocode %.4f,%.4f: %w", latitude, longitude, err)
	}

	for _, a := range addresses {
		name := firstNonEmpty(a.City, a.County, a.State)
		if name == "" {
			continue
		}
		admin1 := a.State
		if admin1 == name {
			admin1 = ""
		}
		return models.Location{
			Name:      name,
			Admin1:    admin1,
			Country:   a.Country,
			Latitude:  latitude,
			Longitude: longitude,
		}, nil
	}
	return models.Location{}, fmt.Errorf("reverse geocode %.4f,%.4f: %w", latitude, longitude, ErrNoAddress)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
