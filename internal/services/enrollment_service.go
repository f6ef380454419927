package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
	"github.com/gymstack/gymstack/pkg/logger"
	"github.com/gymstack/gymstack/pkg/metrics"
)

// Notifier receives promotion events after they commit. Delivery mechanics
// (email, push, SMS) live outside this service; a nil notifier disables
// notifications entirely.
type Notifier interface {
	NotifyPromotion(ctx context.Context, classID, memberID string) error
}

// OccupancyPublisher receives class occupancy snapshots after roster or
// waitlist changes commit.
type OccupancyPublisher interface {
	PublishOccupancy(classID string, enrolled, capacity, waitlisted int)
}

// EnrollmentOption customises EnrollmentService behaviour.
type EnrollmentOption func(*EnrollmentService)

// WithEnrollmentClock injects a custom clock primarily for testing.
func WithEnrollmentClock(clock func() time.Time) EnrollmentOption {
	return func(s *EnrollmentService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithNotifier wires promotion notifications.
func WithNotifier(n Notifier) EnrollmentOption {
	return func(s *EnrollmentService) {
		s.notifier = n
	}
}

// WithOccupancyPublisher wires realtime occupancy broadcasts.
func WithOccupancyPublisher(p OccupancyPublisher) EnrollmentOption {
	return func(s *EnrollmentService) {
		s.publisher = p
	}
}

// EnrollmentService adds and removes members from class rosters, enforces
// capacity, and promotes waitlisted members. Every mutation of a class's
// roster or waitlist runs as one atomic transaction anchored on the class row.
type EnrollmentService struct {
	db        *gorm.DB
	notifier  Notifier
	publisher OccupancyPublisher
	now       func() time.Time
	log       *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(db *gorm.DB, opts ...EnrollmentOption) (*EnrollmentService, error) {
	if db == nil {
		return nil, errors.New("enrollment service: db is required")
	}

	service := &EnrollmentService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("enrollment"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// SeatStatus is the outcome of an enroll call.
type SeatStatus string

const (
	SeatStatusEnrolled   SeatStatus = "enrolled"
	SeatStatusWaitlisted SeatStatus = "waitlisted"
)

// EnrollmentResult reports where the member landed.
type EnrollmentResult struct {
	Status     SeatStatus         `json:"status"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
	// Position is the 1-based waitlist position when Status is waitlisted.
	Position int `json:"position,omitempty"`
}

// Enroll books a seat for the member or appends them to the waitlist when the
// class is full. Two concurrent calls for the last open seat cannot both win:
// the capacity check and the insert share one transaction on the class row.
func (s *EnrollmentService) Enroll(ctx context.Context, classID, memberID string) (*EnrollmentResult, error) {
	if memberID == "" {
		return nil, errors.New("enrollment service: member id is required")
	}

	var result EnrollmentResult
	err := withWriteRetry(ctx, s.db, func(tx *gorm.DB) error {
		var class models.GymClass
		if err := lockForUpdate(tx).First(&class, "id = ?", classID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}

		var active int64
		if err := tx.Model(&models.Enrollment{}).
			Where("class_id = ? AND member_id = ? AND status = ?", class.ID, memberID, models.EnrollmentStatusEnrolled).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrAlreadyEnrolled
		}

		// A member already queued keeps their spot; re-enrolling reports the
		// current position instead of adding a second entry.
		var existing models.WaitlistEntry
		err := tx.Where("class_id = ? AND member_id = ?", class.ID, memberID).First(&existing).Error
		switch {
		case err == nil:
			position, posErr := s.waitlistPositionTx(tx, class.ID, existing.ID)
			if posErr != nil {
				return posErr
			}
			result = EnrollmentResult{Status: SeatStatusWaitlisted, Position: position}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		enrolled, err := s.activeCountTx(tx, class.ID)
		if err != nil {
			return err
		}

		now := s.now()
		if enrolled < int64(class.Capacity) {
			enrollment := models.Enrollment{
				ClassID:    class.ID,
				MemberID:   memberID,
				Status:     models.EnrollmentStatusEnrolled,
				EnrolledAt: now,
			}
			if err := tx.Create(&enrollment).Error; err != nil {
				return err
			}
			result = EnrollmentResult{Status: SeatStatusEnrolled, Enrollment: &enrollment}
			return nil
		}

		entry := models.WaitlistEntry{
			ClassID:  class.ID,
			MemberID: memberID,
			AddedAt:  now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		position, err := s.waitlistPositionTx(tx, class.ID, entry.ID)
		if err != nil {
			return err
		}
		result = EnrollmentResult{Status: SeatStatusWaitlisted, Position: position}
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			metrics.Enrollments.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	metrics.Enrollments.WithLabelValues(string(result.Status)).Inc()
	s.publishOccupancy(ctx, classID)
	return &result, nil
}

// CancelResult reports the outcome of a cancellation, including the promoted
// member when a waitlisted member gained the freed seat.
type CancelResult struct {
	Promoted *models.Enrollment `json:"promoted,omitempty"`
}

// Cancel releases the member's seat (and any waitlist spot) and promotes the
// head of the waitlist when a seat frees. Removals are idempotent; at most one
// member is promoted per cancellation.
func (s *EnrollmentService) Cancel(ctx context.Context, classID, memberID string) (*CancelResult, error) {
	if memberID == "" {
		return nil, errors.New("enrollment service: member id is required")
	}

	var result CancelResult
	err := withWriteRetry(ctx, s.db, func(tx *gorm.DB) error {
		result = CancelResult{}

		var class models.GymClass
		if err := lockForUpdate(tx).First(&class, "id = ?", classID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}

		if err := tx.Model(&models.Enrollment{}).
			Where("class_id = ? AND member_id = ? AND status = ?", class.ID, memberID, models.EnrollmentStatusEnrolled).
			Update("status", models.EnrollmentStatusCancelled).Error; err != nil {
			return err
		}

		if err := tx.Where("class_id = ? AND member_id = ?", class.ID, memberID).
			Delete(&models.WaitlistEntry{}).Error; err != nil {
			return err
		}

		enrolled, err := s.activeCountTx(tx, class.ID)
		if err != nil {
			return err
		}
		if enrolled >= int64(class.Capacity) {
			return nil
		}

		// Strict FIFO: earliest added_at wins, id breaks ties by insertion order.
		var head models.WaitlistEntry
		err = tx.Where("class_id = ?", class.ID).
			Order("added_at, id").
			First(&head).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return err
		}

		promotion := models.Enrollment{
			ClassID:    class.ID,
			MemberID:   head.MemberID,
			Status:     models.EnrollmentStatusEnrolled,
			EnrolledAt: s.now(),
			Promoted:   true,
		}
		if err := tx.Create(&promotion).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.WaitlistEntry{}, "id = ?", head.ID).Error; err != nil {
			return err
		}

		result.Promoted = &promotion
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Promoted != nil {
		metrics.WaitlistPromotions.Inc()
		logger.WithClass(s.log, classID).Info("waitlist member promoted",
			zap.String("member_id", result.Promoted.MemberID))
		s.notifyPromotion(ctx, classID, result.Promoted.MemberID)
	}
	s.publishOccupancy(ctx, classID)
	return &result, nil
}

// IsEnrolled reports whether the member currently holds an enrolled seat.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, classID, memberID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("class_id = ? AND member_id = ? AND status = ?", classID, memberID, models.EnrollmentStatusEnrolled).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("enrollment service: is enrolled: %w", err)
	}
	return count > 0, nil
}

// Roster returns all roster entries for the class ordered by enrollment time.
func (s *EnrollmentService) Roster(ctx context.Context, classID string) ([]models.Enrollment, error) {
	var entries []models.Enrollment
	err := s.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("enrolled_at, created_at").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("enrollment service: roster: %w", err)
	}
	return entries, nil
}

// Waitlist returns the queue for the class in promotion order.
func (s *EnrollmentService) Waitlist(ctx context.Context, classID string) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := s.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("added_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("enrollment service: waitlist: %w", err)
	}
	return entries, nil
}

// ActiveCount returns the number of members currently holding a seat.
func (s *EnrollmentService) ActiveCount(ctx context.Context, classID string) (int64, error) {
	return s.activeCountTx(s.db.WithContext(ctx), classID)
}

func (s *EnrollmentService) activeCountTx(tx *gorm.DB, classID string) (int64, error) {
	var count int64
	err := tx.Model(&models.Enrollment{}).
		Where("class_id = ? AND status = ?", classID, models.EnrollmentStatusEnrolled).
		Count(&count).Error
	return count, err
}

func (s *EnrollmentService) waitlistPositionTx(tx *gorm.DB, classID string, entryID uint) (int, error) {
	var entry models.WaitlistEntry
	if err := tx.First(&entry, "id = ?", entryID).Error; err != nil {
		return 0, err
	}

	var ahead int64
	err := tx.Model(&models.WaitlistEntry{}).
		Where("class_id = ? AND (added_at < ? OR (added_at = ? AND id <= ?))", classID, entry.AddedAt, entry.AddedAt, entry.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead), nil
}

func (s *EnrollmentService) notifyPromotion(ctx context.Context, classID, memberID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPromotion(ctx, classID, memberID); err != nil {
		// The promotion already committed; a failed notification is logged, not unwound.
		logger.WithClass(s.log, classID).Warn("promotion notification failed",
			zap.String("member_id", memberID),
			zap.Error(err))
	}
}

func (s *EnrollmentService) publishOccupancy(ctx context.Context, classID string) {
	if s.publisher == nil {
		return
	}

	var class models.GymClass
	if err := s.db.WithContext(ctx).First(&class, "id = ?", classID).Error; err != nil {
		return
	}
	enrolled, err := s.ActiveCount(ctx, classID)
	if err != nil {
		return
	}
	var waitlisted int64
	if err := s.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("class_id = ?", classID).Count(&waitlisted).Error; err != nil {
		return
	}

	s.publisher.PublishOccupancy(classID, int(enrolled), class.Capacity, int(waitlisted))
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrAlreadyEnrolled) || errors.Is(err, ErrClassNotFound)
}
