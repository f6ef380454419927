package database

import (
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Member{},
		&models.GymClass{},
		&models.Enrollment{},
		&models.WaitlistEntry{},
		&models.CheckInToken{},
		&models.ScanRecord{},
		&models.CacheEntry{},
	)
}
