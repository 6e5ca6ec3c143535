package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxQueryLength is the exclusive upper bound on query length in runes.
const DefaultMaxQueryLength = 100

// ErrQueryEmpty is returned when the query is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("please enter a location to search for")

// ErrQueryTooLong is returned when the query reaches the length bound.
var ErrQueryTooLong = errors.New("location name is too long")

// ErrQueryControlChars is returned when the query contains control characters.
var ErrQueryControlChars = errors.New("location name contains invalid characters")

// ErrCountryInvalid is returned for a country filter that is not ISO 3166-1 alpha-2.
var ErrCountryInvalid = errors.New("country must be a two-letter ISO code")

// ErrCoordinatesInvalid is returned for an out-of-range latitude or longitude.
var ErrCoordinatesInvalid = errors.New("coordinates out of range")

var validate = validator.New()

type countryFilter struct {
	Code string `validate:"omitempty,iso3166_1_alpha2"`
}

type coordinates struct {
	Latitude  float64 `validate:"min=-90,max=90"`
	Longitude float64 `validate:"min=-180,max=180"`
}

// ValidateQuery trims input and requires it to be non-empty and shorter than
// maxLen runes (DefaultMaxQueryLength when maxLen <= 0). Returns the trimmed
// query; the error message is safe to show to the user.
func ValidateQuery(input string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}
	s := strings.TrimSpace(input)
	if err := validate.Var(s, "required"); err != nil {
		return "", ErrQueryEmpty
	}
	if err := validate.Var(s, fmt.Sprintf("max=%d", maxLen-1)); err != nil {
		return "", ErrQueryTooLong
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", ErrQueryControlChars
	}
	return s, nil
}

// ValidateCountry upper-cases and checks an optional country filter.
// An empty code is valid and means "any country".
func ValidateCountry(code string) (string, error) {
	f := countryFilter{Code: strings.ToUpper(strings.TrimSpace(code))}
	if err := validate.Struct(f); err != nil {
		return "", ErrCountryInvalid
	}
	return f.Code, nil
}

// ValidateCoordinates checks a geolocation fix is on the globe.
func ValidateCoordinates(latitude, longitude float64) error {
	if err := validate.Struct(coordinates{Latitude: latitude, Longitude: longitude}); err != nil {
		return fmt.Errorf("%w: %.4f,%.4f", ErrCoordinatesInvalid, latitude, longitude)
	}
	return nil
}
