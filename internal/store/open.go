package store

import (
	"context"
	"fmt"
	"time"
)

// BackendOptions selects and configures a backend.
type BackendOptions struct {
	Kind             string // memory, memcached, sqlite, postgres
	DSN              string // sqlite path or postgres connection string
	MemcachedAddrs   string
	MemcachedTimeout time.Duration
	MaxIdleConns     int
	TTL              time.Duration // memory and memcached only
}

// OpenBackend builds the backend named by opts.Kind.
func OpenBackend(ctx context.Context, opts BackendOptions) (Backend, error) {
	switch opts.Kind {
	case "", "memory":
		return NewMemoryBackend(opts.TTL), nil
	case "memcached":
		return NewMemcachedBackend(opts.MemcachedAddrs, opts.MemcachedTimeout, opts.MaxIdleConns, opts.TTL), nil
	case "sqlite":
		if opts.DSN == "" {
			return nil, fmt.Errorf("store: sqlite backend requires a database path")
		}
		return NewSQLiteBackend(opts.DSN)
	case "postgres":
		if opts.DSN == "" {
			return nil, fmt.Errorf("store: postgres backend requires a DSN")
		}
		return NewPostgresBackend(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Kind)
	}
}
