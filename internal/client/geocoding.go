package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// DefaultMaxCandidates is the number of geocoding matches requested.
const DefaultMaxCandidates = 5

// ResolutionKind tags the outcome of a geocoding lookup.
type ResolutionKind int

const (
	ResolutionFound ResolutionKind = iota
	ResolutionEmpty
	ResolutionFailed
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionFound:
		return "found"
	case ResolutionEmpty:
		return "empty"
	case ResolutionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolution is the tagged result of Resolve. Candidates is non-empty only
// for ResolutionFound and Err is set only for ResolutionFailed.
type Resolution struct {
	Kind       ResolutionKind
	Candidates []models.Location
	Err        error
}

// Found returns a ResolutionFound result, or ResolutionEmpty for no candidates.
func Found(candidates []models.Location) Resolution {
	if len(candidates) == 0 {
		return Empty()
	}
	return Resolution{Kind: ResolutionFound, Candidates: candidates}
}

// Empty returns a ResolutionEmpty result.
func Empty() Resolution {
	return Resolution{Kind: ResolutionEmpty}
}

// Failed returns a ResolutionFailed result carrying err.
func Failed(err error) Resolution {
	return Resolution{Kind: ResolutionFailed, Err: err}
}

// GeocodingClient resolves free-text place names via Open-Meteo geocoding.
type GeocodingClient struct {
	up            *upstream
	maxCandidates int
}

// NewGeocodingClient creates a client for the search endpoint at apiURL.
// maxCandidates <= 0 uses DefaultMaxCandidates.
func NewGeocodingClient(apiURL string, timeout time.Duration, maxCandidates int, opts ...Option) (*GeocodingClient, error) {
	up, err := newUpstream(apiGeocoding, apiURL, timeout, opts)
	if err != nil {
		return nil, err
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &GeocodingClient{up: up, maxCandidates: maxCandidates}, nil
}

type geocodingResponse struct {
	Results []struct {
		Name      string   `json:"name"`
		Country   string   `json:"country"`
		Admin1    string   `json:"admin1"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"results"`
}

// Resolve looks up query, optionally restricted to an ISO 3166-1 alpha-2
// countryCode. Candidates keep upstream relevance order. Results without
// usable coordinates (see models.Location.HasCoordinates) are dropped since
// they cannot be fetched.
func (c *GeocodingClient) Resolve(ctx context.Context, query, countryCode string) Resolution {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(c.maxCandidates))
	params.Set("language", "en")
	params.Set("format", "json")
	if cc := strings.TrimSpace(countryCode); cc != "" {
		params.Set("countryCode", strings.ToUpper(cc))
	}

	var resp geocodingResponse
	if err := c.up.getJSON(ctx, params, &resp); err != nil {
		return Failed(fmt.Errorf("geocode %q: %w", query, err))
	}

	candidates := make([]models.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		loc := models.Location{
			Name:      r.Name,
			Country:   r.Country,
			Admin1:    r.Admin1,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
		}
		if !loc.HasCoordinates() {
			continue
		}
		candidates = append(candidates, loc)
		if len(candidates) == c.maxCandidates {
			break
		}
	}
	return Found(candidates)
}
