package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
	"github.com/gymstack/gymstack/pkg/logger"
	"github.com/gymstack/gymstack/pkg/metrics"
)

// ScanOption customises ScanService behaviour.
type ScanOption func(*ScanService)

// WithScanClock injects a custom clock primarily for testing.
func WithScanClock(clock func() time.Time) ScanOption {
	return func(s *ScanService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ScanService validates scanned token text and records accepted scans. The
// lifecycle checks, the enrollment check, and the ledger append run inside one
// transaction on the token row, so concurrent scans of the same token
// serialise and a token garbage-collected mid-flight is observed as missing,
// never as a silently accepted scan.
type ScanService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewScanService constructs a ScanService.
func NewScanService(db *gorm.DB, opts ...ScanOption) (*ScanService, error) {
	if db == nil {
		return nil, errors.New("scan service: db is required")
	}

	service := &ScanService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("scan"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RecordScanInput carries one scan attempt. Token is the raw text exactly as
// produced by OpenSession; the service performs no normalisation beyond
// exact-match lookup.
type RecordScanInput struct {
	Token    string
	MemberID string
	ScanType models.ScanType
	Location *models.GeoPoint
}

// ScanResult is the success payload of a recorded scan.
type ScanResult struct {
	Record    models.ScanRecord `json:"record"`
	ClassID   string            `json:"class_id"`
	ClassName string            `json:"class_name"`
}

// RecordScan validates the token, checks enrollment, rejects duplicate
// check-ins, and appends the scan. Attendance is marked the instant this call
// returns successfully.
func (s *ScanService) RecordScan(ctx context.Context, input RecordScanInput) (*ScanResult, error) {
	if input.Token == "" {
		return nil, failScan(ErrInvalidToken)
	}
	if input.MemberID == "" {
		return nil, errors.New("scan service: member id is required")
	}
	switch input.ScanType {
	case models.ScanTypeCheckIn, models.ScanTypeCheckOut:
	default:
		return nil, fmt.Errorf("scan service: unknown scan type %q", input.ScanType)
	}

	var result ScanResult
	err := withWriteRetry(ctx, s.db, func(tx *gorm.DB) error {
		var token models.CheckInToken
		if err := lockForUpdate(tx).First(&token, "id = ?", input.Token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		now := s.now()
		switch {
		case !now.Before(token.ExpiresAt):
			return ErrTokenExpired
		case !token.Active:
			return ErrTokenInactive
		case token.UsageCount >= token.MaxUsage:
			return ErrTokenExhausted
		}

		if !token.SessionType.Allows(input.ScanType) {
			return ErrScanTypeNotAllowed
		}

		// A token whose class vanished is dead; the cascade normally removes
		// it together with the class, so this is a read-skew guard.
		var class models.GymClass
		if err := tx.First(&class, "id = ?", token.ClassID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		var enrolled int64
		if err := tx.Model(&models.Enrollment{}).
			Where("class_id = ? AND member_id = ? AND status = ?", class.ID, input.MemberID, models.EnrollmentStatusEnrolled).
			Count(&enrolled).Error; err != nil {
			return err
		}
		if enrolled == 0 {
			return ErrNotEnrolled
		}

		// Check-ins are deduplicated per (token, member); checkout retries are harmless.
		if input.ScanType == models.ScanTypeCheckIn {
			var prior int64
			if err := tx.Model(&models.ScanRecord{}).
				Where("token_id = ? AND member_id = ? AND scan_type = ?", token.ID, input.MemberID, models.ScanTypeCheckIn).
				Count(&prior).Error; err != nil {
				return err
			}
			if prior > 0 {
				return ErrDuplicateCheckIn
			}
		}

		record := models.ScanRecord{
			TokenID:   token.ID,
			MemberID:  input.MemberID,
			ScanType:  input.ScanType,
			ScannedAt: now,
		}
		if input.Location != nil {
			raw, marshalErr := json.Marshal(input.Location)
			if marshalErr != nil {
				return fmt.Errorf("encode location: %w", marshalErr)
			}
			record.Location = datatypes.JSON(raw)
		}

		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CheckInToken{}).
			Where("id = ?", token.ID).
			Update("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
			return err
		}

		result = ScanResult{
			Record:    record,
			ClassID:   class.ID,
			ClassName: class.Name,
		}
		return nil
	})
	if err != nil {
		return nil, failScan(err)
	}

	metrics.ScanAttempts.WithLabelValues("accepted").Inc()
	s.log.Info("scan recorded",
		zap.String("class_id", result.ClassID),
		zap.String("member_id", input.MemberID),
		zap.String("scan_type", string(input.ScanType)))

	return &result, nil
}

// failScan bumps the per-kind rejection counter and passes the error through.
func failScan(err error) error {
	result := "error"
	switch {
	case errors.Is(err, ErrInvalidToken):
		result = "invalid_token"
	case errors.Is(err, ErrTokenExpired):
		result = "token_expired"
	case errors.Is(err, ErrTokenInactive):
		result = "token_inactive"
	case errors.Is(err, ErrTokenExhausted):
		result = "token_exhausted"
	case errors.Is(err, ErrScanTypeNotAllowed):
		result = "scan_type_not_allowed"
	case errors.Is(err, ErrNotEnrolled):
		result = "not_enrolled"
	case errors.Is(err, ErrDuplicateCheckIn):
		result = "duplicate_checkin"
	case errors.Is(err, ErrStorageUnavailable):
		result = "storage_unavailable"
	}
	metrics.ScanAttempts.WithLabelValues(result).Inc()
	return err
}
