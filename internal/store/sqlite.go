package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// favoriteRow is one list entry. Position orders a profile's list.
type favoriteRow struct {
	ID        uint   `gorm:"primaryKey"`
	Profile   string `gorm:"index:idx_favorites_profile_position,priority:1;not null"`
	Position  int    `gorm:"index:idx_favorites_profile_position,priority:2;not null"`
	Name      string `gorm:"not null"`
	Admin1    string
	Country   string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

func (favoriteRow) TableName() string { return "favorites" }

// SQLiteBackend stores favorites in a SQLite file through gorm.
type SQLiteBackend struct {
	db *gorm.DB
}

// NewSQLiteBackend opens (creating if needed) the database at path and
// migrates the favorites table.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&favoriteRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context, profile string) ([]models.Location, error) {
	var rows []favoriteRow
	err := b.db.WithContext(ctx).
		Where("profile = ?", profile).
		Order("position asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Location{
			Name:      r.Name,
			Admin1:    r.Admin1,
			Country:   r.Country,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return out, nil
}

// Replace implements Backend. The delete and inserts share one transaction.
func (b *SQLiteBackend) Replace(ctx context.Context, profile string, locations []models.Location) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile = ?", profile).Delete(&favoriteRow{}).Error; err != nil {
			return err
		}
		if len(locations) == 0 {
			return nil
		}
		rows := make([]favoriteRow, 0, len(locations))
		for i, loc := range locations {
			rows = append(rows, favoriteRow{
				Profile:   profile,
				Position:  i,
				Name:      loc.Name,
				Admin1:    loc.Admin1,
				Country:   loc.Country,
				Latitude:  loc.Latitude,
				Longitude: loc.Longitude,
			})
		}
		return tx.Create(&rows).Error
	})
}

// Ping implements Backend.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return "sqlite" }
