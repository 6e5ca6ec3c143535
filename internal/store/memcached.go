package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

const (
	keyPrefix      = "favorites:"
	maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as unix timestamps
)

// MemcachedBackend stores each profile's list as one JSON item.
type MemcachedBackend struct {
	client     *memcache.Client
	expiration int32
}

// NewMemcachedBackend creates a MemcachedBackend. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use package defaults if zero. ttl is clamped to memcached's 30-day relative limit.
func NewMemcachedBackend(addrs string, timeout time.Duration, maxIdleConns int, ttl time.Duration) *MemcachedBackend {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	exp := int32(ttl.Seconds())
	if exp <= 0 || exp > maxRelativeExp {
		exp = maxRelativeExp
	}
	return &MemcachedBackend{client: client, expiration: exp}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcached keys are at most 250 bytes with no spaces or control characters;
// profile ids are uuids so the prefix keeps them well within that.
func (m *MemcachedBackend) key(profile string) string {
	return keyPrefix + profile
}

// Load implements Backend. A miss is an empty list.
func (m *MemcachedBackend) Load(ctx context.Context, profile string) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := m.client.Get(m.key(profile))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return decodeLocations(item.Value)
}

// Replace implements Backend.
func (m *MemcachedBackend) Replace(ctx context.Context, profile string, locations []models.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(locations)
	if err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{
		Key:        m.key(profile),
		Value:      raw,
		Expiration: m.expiration,
	})
}

// Ping implements Backend.
func (m *MemcachedBackend) Ping(context.Context) error {
	return m.client.Ping()
}

// Close closes the memcached client connections.
func (m *MemcachedBackend) Close() error {
	return m.client.Close()
}

// Name implements Backend.
func (m *MemcachedBackend) Name() string { return "memcached" }

func decodeLocations(raw []byte) ([]models.Location, error) {
	var out []models.Location
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
