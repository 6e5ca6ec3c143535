// Package store persists favorite locations per profile. The newest entry of
// a profile's list doubles as its saved startup location.
package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// DefaultMaxFavorites bounds each profile's list when no limit is configured.
const DefaultMaxFavorites = 10

// ErrMissingCoordinates is returned when saving a location that cannot be fetched.
var ErrMissingCoordinates = errors.New("store: location has no coordinates")

// Backend persists one ordered list (oldest first) per profile.
// Implementations replace the whole list on every write.
type Backend interface {
	Load(ctx context.Context, profile string) ([]models.Location, error)
	Replace(ctx context.Context, profile string, locations []models.Location) error
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

const lockStripes = 64

// Store applies dedup and capacity rules on top of a Backend.
type Store struct {
	backend      Backend
	maxFavorites int
	locks        [lockStripes]sync.Mutex
}

// New wraps backend. maxFavorites <= 0 uses DefaultMaxFavorites.
func New(backend Backend, maxFavorites int) *Store {
	if maxFavorites <= 0 {
		maxFavorites = DefaultMaxFavorites
	}
	return &Store{backend: backend, maxFavorites: maxFavorites}
}

// Backend returns the underlying backend (for health checks and shutdown).
func (s *Store) Backend() Backend {
	return s.backend
}

// Profile returns the view of one profile's favorites.
func (s *Store) Profile(id string) *ProfileStore {
	return &ProfileStore{store: s, profile: id}
}

func (s *Store) lockFor(profile string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(profile))
	return &s.locks[h.Sum32()%lockStripes]
}

// ProfileStore is the save/getSaved/list surface for one profile.
type ProfileStore struct {
	store   *Store
	profile string
}

// Save appends loc as the newest favorite and makes it the saved location.
// A location already present (same identity key) moves to the newest slot.
// The oldest entries are evicted beyond the capacity bound.
func (p *ProfileStore) Save(ctx context.Context, loc models.Location) error {
	if !loc.HasCoordinates() {
		return ErrMissingCoordinates
	}
	mu := p.store.lockFor(p.profile)
	mu.Lock()
	defer mu.Unlock()

	current, err := p.store.backend.Load(ctx, p.profile)
	if err != nil {
		return fmt.Errorf("store: load favorites: %w", err)
	}
	next := appendFavorite(current, loc, p.store.maxFavorites)
	if err := p.store.backend.Replace(ctx, p.profile, next); err != nil {
		return fmt.Errorf("store: save favorite: %w", err)
	}
	observability.FavoritesSavedTotal.WithLabelValues(p.store.backend.Name()).Inc()
	return nil
}

// GetSaved returns the most recently saved location, if any.
func (p *ProfileStore) GetSaved(ctx context.Context) (models.Location, bool, error) {
	list, err := p.List(ctx)
	if err != nil {
		return models.Location{}, false, err
	}
	if len(list) == 0 {
		return models.Location{}, false, nil
	}
	return list[len(list)-1], true, nil
}

// List returns favorites oldest first.
func (p *ProfileStore) List(ctx context.Context) ([]models.Location, error) {
	list, err := p.store.backend.Load(ctx, p.profile)
	if err != nil {
		return nil, fmt.Errorf("store: load favorites: %w", err)
	}
	return list, nil
}

// appendFavorite returns a new slice with loc at the end, any earlier entry
// with the same identity removed, trimmed to max from the front.
func appendFavorite(current []models.Location, loc models.Location, max int) []models.Location {
	key := loc.IdentityKey()
	next := make([]models.Location, 0, len(current)+1)
	for _, existing := range current {
		if existing.IdentityKey() != key {
			next = append(next, existing)
		}
	}
	next = append(next, loc)
	if len(next) > max {
		next = next[len(next)-max:]
	}
	return next
}
