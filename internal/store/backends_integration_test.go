//go:build integration
// +build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// TestMemcachedBackend_Integration verifies that MemcachedBackend stores and
// loads lists when a memcached server is available.
func TestMemcachedBackend_Integration(t *testing.T) {
	b := NewMemcachedBackend("localhost:11211", 500*time.Millisecond, 2, time.Hour)
	defer b.Close()

	ctx := context.Background()
	if err := b.Ping(ctx); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	profile := uuid.NewString()
	want := []models.Location{londonUK, paris}
	if err := b.Replace(ctx, profile, want); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	got, err := b.Load(ctx, profile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	miss, err := b.Load(ctx, uuid.NewString())
	if err != nil || len(miss) != 0 {
		t.Errorf("Load(miss) = %v, %v; want empty, nil", miss, err)
	}
}

// TestPostgresBackend_Integration verifies the postgres backend against the
// database in STORE_TEST_DSN.
func TestPostgresBackend_Integration(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_DSN not set")
	}
	ctx := context.Background()
	b, err := NewPostgresBackend(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresBackend() error = %v", err)
	}
	defer b.Close()

	profile := uuid.NewString()
	p := New(b, 2).Profile(profile)
	for _, loc := range []models.Location{londonUK, londonCA, paris} {
		if err := p.Save(ctx, loc); err != nil {
			t.Fatalf("Save(%s) error = %v", loc.DisplayName(), err)
		}
	}
	list, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0] != londonCA || list[1] != paris {
		t.Errorf("List() = %+v, want [londonCA paris]", list)
	}
}
