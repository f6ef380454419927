package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
)

// ClassService owns the class records the check-in and enrollment cores hang
// off. Schedules, pricing, and trainer assignment beyond the stored fields are
// managed elsewhere.
type ClassService struct {
	db *gorm.DB
}

// NewClassService constructs a ClassService.
func NewClassService(db *gorm.DB) (*ClassService, error) {
	if db == nil {
		return nil, errors.New("class service: db is required")
	}
	return &ClassService{db: db}, nil
}

// CreateClassInput carries the fields required to create a class.
type CreateClassInput struct {
	Name      string
	TrainerID string
	Capacity  int
	StartsAt  time.Time
	EndsAt    time.Time
	Location  string
}

// Create persists a new class.
func (s *ClassService) Create(ctx context.Context, input CreateClassInput) (*models.GymClass, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("class service: name is required")
	}
	if input.Capacity <= 0 {
		return nil, errors.New("class service: capacity must be positive")
	}

	class := models.GymClass{
		Name:      name,
		TrainerID: strings.TrimSpace(input.TrainerID),
		Capacity:  input.Capacity,
		StartsAt:  input.StartsAt,
		EndsAt:    input.EndsAt,
		Location:  strings.TrimSpace(input.Location),
	}

	if err := s.db.WithContext(ctx).Create(&class).Error; err != nil {
		return nil, fmt.Errorf("class service: create: %w", err)
	}
	return &class, nil
}

// Get fetches a class by id.
func (s *ClassService) Get(ctx context.Context, id string) (*models.GymClass, error) {
	var class models.GymClass
	if err := s.db.WithContext(ctx).First(&class, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("class service: get: %w", err)
	}
	return &class, nil
}

// List returns classes ordered by start time.
func (s *ClassService) List(ctx context.Context) ([]models.GymClass, error) {
	var classes []models.GymClass
	if err := s.db.WithContext(ctx).Order("starts_at, name").Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("class service: list: %w", err)
	}
	return classes, nil
}

// Delete removes a class; enrollments, waitlist entries, and tokens cascade.
// Enrollment and scan operations running concurrently observe "not found"
// afterwards.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.GymClass{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("class service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrClassNotFound
	}
	return nil
}
