package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
	"github.com/gymstack/gymstack/pkg/crypto"
	"github.com/gymstack/gymstack/pkg/logger"
	"github.com/gymstack/gymstack/pkg/metrics"
)

const (
	defaultTokenTTL      = 2 * time.Hour
	defaultTokenBytes    = 32
	minTokenBytes        = 32
	defaultTokenMaxUsage = 100
	defaultQRCodeSize    = 256
)

// CheckInSessionOption customises CheckInSessionService behaviour.
type CheckInSessionOption func(*CheckInSessionService)

// WithSessionClock injects a custom clock primarily for testing.
func WithSessionClock(clock func() time.Time) CheckInSessionOption {
	return func(s *CheckInSessionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTokenTTL overrides the default token lifetime.
func WithTokenTTL(d time.Duration) CheckInSessionOption {
	return func(s *CheckInSessionService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithTokenBytes adjusts the random token length in bytes. Values under 32
// bytes are clamped so a misconfiguration can never weaken token entropy.
func WithTokenBytes(size int) CheckInSessionOption {
	return func(s *CheckInSessionService) {
		if size > 0 {
			if size < minTokenBytes {
				size = minTokenBytes
			}
			s.tokenBytes = size
		}
	}
}

// WithDefaultMaxUsage overrides the default per-token usage limit.
func WithDefaultMaxUsage(max int) CheckInSessionOption {
	return func(s *CheckInSessionService) {
		if max > 0 {
			s.maxUsage = max
		}
	}
}

// CheckInSessionService issues, inspects, closes, and garbage-collects
// check-in tokens.
type CheckInSessionService struct {
	db         *gorm.DB
	ttl        time.Duration
	tokenBytes int
	maxUsage   int
	now        func() time.Time
	log        *zap.Logger
}

// NewCheckInSessionService constructs a CheckInSessionService.
func NewCheckInSessionService(db *gorm.DB, opts ...CheckInSessionOption) (*CheckInSessionService, error) {
	if db == nil {
		return nil, errors.New("checkin session service: db is required")
	}

	service := &CheckInSessionService{
		db:         db,
		ttl:        defaultTokenTTL,
		tokenBytes: defaultTokenBytes,
		maxUsage:   defaultTokenMaxUsage,
		now:        time.Now,
		log:        logger.WithModule("checkin"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// OpenSessionInput carries the parameters for opening a check-in session.
type OpenSessionInput struct {
	ClassID     string
	IssuedBy    string
	SessionType models.SessionType
	// MaxUsage and TTL override the service defaults when positive.
	MaxUsage int
	TTL      time.Duration
	Metadata map[string]any
}

// OpenSession generates a fresh token for the class and persists it.
// Fails with ErrInvalidClass when the class id does not resolve.
func (s *CheckInSessionService) OpenSession(ctx context.Context, input OpenSessionInput) (*models.CheckInToken, error) {
	sessionType := input.SessionType
	if sessionType == "" {
		sessionType = models.SessionTypeCheckIn
	}
	switch sessionType {
	case models.SessionTypeCheckIn, models.SessionTypeCheckOut, models.SessionTypeBoth:
	default:
		return nil, fmt.Errorf("checkin session service: unknown session type %q", sessionType)
	}
	if input.IssuedBy == "" {
		return nil, errors.New("checkin session service: issuer is required")
	}

	var class models.GymClass
	if err := s.db.WithContext(ctx).First(&class, "id = ?", input.ClassID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidClass
		}
		return nil, fmt.Errorf("checkin session service: resolve class: %w", err)
	}

	id, err := crypto.GenerateToken(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("checkin session service: generate token: %w", err)
	}

	maxUsage := s.maxUsage
	if input.MaxUsage > 0 {
		maxUsage = input.MaxUsage
	}
	ttl := s.ttl
	if input.TTL > 0 {
		ttl = input.TTL
	}

	now := s.now()
	token := models.CheckInToken{
		ID:          id,
		ClassID:     class.ID,
		IssuedBy:    input.IssuedBy,
		SessionType: sessionType,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		Active:      true,
		UsageCount:  0,
		MaxUsage:    maxUsage,
	}

	if len(input.Metadata) > 0 {
		raw, marshalErr := json.Marshal(input.Metadata)
		if marshalErr != nil {
			return nil, fmt.Errorf("checkin session service: encode metadata: %w", marshalErr)
		}
		token.Metadata = datatypes.JSON(raw)
	}

	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return nil, fmt.Errorf("checkin session service: create token: %w", err)
	}

	metrics.OpenCheckInSessions.Inc()
	s.log.Info("check-in session opened",
		zap.String("class_id", class.ID),
		zap.String("issued_by", input.IssuedBy),
		zap.Time("expires_at", token.ExpiresAt))

	return &token, nil
}

// CloseSession revokes the token. Closing an already-closed or unknown token
// is a no-op, never an error.
func (s *CheckInSessionService) CloseSession(ctx context.Context, tokenID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.CheckInToken{}).
		Where("id = ? AND active = ?", tokenID, true).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("checkin session service: close session: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.OpenCheckInSessions.Dec()
		s.log.Info("check-in session closed", zap.String("token_prefix", tokenPrefix(tokenID)))
	}
	return nil
}

// IsUsable reports whether a scan against the token could currently succeed.
// Pure function of the token's persisted state and the injected clock.
func (s *CheckInSessionService) IsUsable(token *models.CheckInToken) bool {
	if token == nil {
		return false
	}
	return token.Active &&
		s.now().Before(token.ExpiresAt) &&
		token.UsageCount < token.MaxUsage
}

// GetSession loads a token together with its scan ledger.
func (s *CheckInSessionService) GetSession(ctx context.Context, tokenID string) (*models.CheckInToken, error) {
	var token models.CheckInToken
	err := s.db.WithContext(ctx).
		Preload("Scans", func(db *gorm.DB) *gorm.DB {
			return db.Order("scanned_at, created_at")
		}).
		First(&token, "id = ?", tokenID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("checkin session service: get session: %w", err)
	}
	return &token, nil
}

// SessionStats summarises a token's scan ledger. All values are recomputed
// from the scans on every call; nothing here is stored.
type SessionStats struct {
	TotalScans     int `json:"total_scans"`
	CheckIns       int `json:"checkins"`
	CheckOuts      int `json:"checkouts"`
	UniqueMembers  int `json:"unique_members"`
	RemainingUsage int `json:"remaining_usage"`
}

// Stats derives scan statistics for a loaded token.
func (s *CheckInSessionService) Stats(token *models.CheckInToken) SessionStats {
	stats := SessionStats{}
	if token == nil {
		return stats
	}

	members := make(map[string]struct{})
	for _, scan := range token.Scans {
		stats.TotalScans++
		if scan.ScanType == models.ScanTypeCheckIn {
			stats.CheckIns++
		} else {
			stats.CheckOuts++
		}
		members[scan.MemberID] = struct{}{}
	}
	stats.UniqueMembers = len(members)
	stats.RemainingUsage = token.RemainingUsage()
	return stats
}

// QRCode renders the token text as a PNG for display on the trainer's screen.
func (s *CheckInSessionService) QRCode(ctx context.Context, tokenID string, size int) ([]byte, error) {
	var token models.CheckInToken
	if err := s.db.WithContext(ctx).First(&token, "id = ?", tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("checkin session service: load token: %w", err)
	}

	if size <= 0 {
		size = defaultQRCodeSize
	}
	png, err := qrcode.Encode(token.ID, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("checkin session service: encode qr: %w", err)
	}
	return png, nil
}

// CleanupExpired deletes tokens that are observably dead: past expiry or
// explicitly revoked. Exhausted-but-live tokens stay visible so scan attempts
// keep failing with the exhausted kind instead of "not found". The sweep never
// holds locks that block scan validation; a concurrent scan that loses the
// race simply observes the token as missing inside its own transaction.
func (s *CheckInSessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).
		Where("expires_at <= ? OR active = ?", now, false).
		Delete(&models.CheckInToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("checkin session service: cleanup: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.TokensPurged.Add(float64(result.RowsAffected))
	}

	// Recompute the gauge after the sweep; increments and decrements alone
	// drift once expired-but-open tokens are purged.
	var open int64
	if err := s.db.WithContext(ctx).
		Model(&models.CheckInToken{}).
		Where("active = ? AND expires_at > ?", true, now).
		Count(&open).Error; err == nil {
		metrics.OpenCheckInSessions.Set(float64(open))
	}

	return result.RowsAffected, nil
}

func tokenPrefix(tokenID string) string {
	if len(tokenID) <= 8 {
		return tokenID
	}
	return tokenID[:8]
}
