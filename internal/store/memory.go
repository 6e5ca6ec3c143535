package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// MemoryBackend keeps favorites in process memory. Lists are copied in and
// out so callers never share backing arrays.
type MemoryBackend struct {
	items *gocache.Cache
	ttl   time.Duration
}

// NewMemoryBackend creates a MemoryBackend. ttl <= 0 keeps entries until
// process exit; otherwise idle profiles expire after ttl.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	if ttl <= 0 {
		return &MemoryBackend{items: gocache.New(gocache.NoExpiration, 0), ttl: gocache.NoExpiration}
	}
	return &MemoryBackend{items: gocache.New(ttl, ttl), ttl: ttl}
}

// Load implements Backend.
func (m *MemoryBackend) Load(ctx context.Context, profile string) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.items.Get(profile)
	if !ok {
		return nil, nil
	}
	stored := v.([]models.Location)
	return append([]models.Location(nil), stored...), nil
}

// Replace implements Backend.
func (m *MemoryBackend) Replace(ctx context.Context, profile string, locations []models.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.items.Set(profile, append([]models.Location(nil), locations...), m.ttl)
	return nil
}

// Ping implements Backend.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.items.Flush()
	return nil
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return "memory" }
