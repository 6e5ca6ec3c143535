package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// Location is a place the user can look weather up for. Coordinates are the
// operational key for fetching; name, admin1 and country identify it for
// favorites and disambiguation.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HasCoordinates reports whether both coordinates are set. A zero value on
// either axis is treated as missing.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// IdentityKey returns the case-folded name|admin1|country triple used to
// deduplicate favorites. Two distinct cities with the same name differ here.
func (l Location) IdentityKey() string {
	// Casers carry state and must not be shared across goroutines.
	folder := cases.Fold()
	parts := []string{l.Name, l.Admin1, l.Country}
	for i, p := range parts {
		parts[i] = folder.String(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// DisplayName joins name, admin region and country, skipping empty parts.
func (l Location) DisplayName() string {
	var parts []string
	for _, p := range []string{l.Name, l.Admin1, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
