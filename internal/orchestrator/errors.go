package orchestrator

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

var (
	// ErrInvalidInput matches every *InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidLocation is returned when a location without coordinates
	// reaches the fetch step. No network call is made.
	ErrInvalidLocation = errors.New("location has no coordinates")

	// ErrNothingToSave is returned by SaveCurrent before anything has rendered.
	ErrNothingToSave = errors.New("no location is being shown")

	// ErrNoStore is returned by favorites operations when no store is configured.
	ErrNoStore = errors.New("no location store configured")

	// ErrFavoriteNotFound is returned for an out-of-range favorite index.
	ErrFavoriteNotFound = errors.New("favorite not found")
)

// InvalidInputError is a rejected query or country filter. Message is safe
// to show to the user.
type InvalidInputError struct {
	Message string
	Err     error
}

func (e *InvalidInputError) Error() string {
	return e.Message
}

// Unwrap exposes both ErrInvalidInput and the validation cause.
func (e *InvalidInputError) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}

// ResolutionFailure wraps a geocoding failure for a query.
type ResolutionFailure struct {
	Query string
	Err   error
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionFailure) Unwrap() error {
	return e.Err
}

// FetchFailure wraps a forecast failure for a location.
type FetchFailure struct {
	Location models.Location
	Err      error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch forecast for %s: %v", e.Location.DisplayName(), e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}
