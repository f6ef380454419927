package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
)

// MemberService maintains the member directory scans and rosters reference.
type MemberService struct {
	db *gorm.DB
}

// NewMemberService constructs a MemberService.
func NewMemberService(db *gorm.DB) (*MemberService, error) {
	if db == nil {
		return nil, errors.New("member service: db is required")
	}
	return &MemberService{db: db}, nil
}

// RegisterMemberInput carries the fields required to register a member.
type RegisterMemberInput struct {
	Email     string
	FirstName string
	LastName  string
}

// Register persists a new member. Email addresses are unique.
func (s *MemberService) Register(ctx context.Context, input RegisterMemberInput) (*models.Member, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("member service: email is required")
	}

	member := models.Member{
		Email:     email,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		IsActive:  true,
	}

	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrMemberEmailTaken
		}
		return nil, fmt.Errorf("member service: register: %w", err)
	}
	return &member, nil
}

// Get fetches a member by id.
func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("member service: get: %w", err)
	}
	return &member, nil
}

// List returns all members ordered by registration time.
func (s *MemberService) List(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := s.db.WithContext(ctx).Order("created_at, email").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("member service: list: %w", err)
	}
	return members, nil
}

// Deactivate flips the member inactive. Their history stays intact.
func (s *MemberService) Deactivate(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("member service: deactivate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}
