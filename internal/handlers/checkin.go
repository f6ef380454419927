package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/middleware"
	"github.com/gymstack/gymstack/internal/models"
	"github.com/gymstack/gymstack/internal/services"
	appErrors "github.com/gymstack/gymstack/pkg/errors"
	"github.com/gymstack/gymstack/pkg/response"
)

// CheckInHandler exposes the check-in session lifecycle and scan recording.
type CheckInHandler struct {
	sessions *services.CheckInSessionService
	scans    *services.ScanService
}

// NewCheckInHandler constructs a CheckInHandler.
func NewCheckInHandler(sessions *services.CheckInSessionService, scans *services.ScanService) *CheckInHandler {
	return &CheckInHandler{sessions: sessions, scans: scans}
}

type openSessionRequest struct {
	ClassID     string         `json:"class_id" validate:"required"`
	SessionType string         `json:"session_type" validate:"omitempty,oneof=checkin checkout both"`
	MaxUsage    int            `json:"max_usage" validate:"omitempty,gt=0"`
	TTLSeconds  int            `json:"ttl_seconds" validate:"omitempty,gt=0"`
	Metadata    map[string]any `json:"metadata"`
}

type sessionDTO struct {
	Token       string             `json:"token"`
	ClassID     string             `json:"class_id"`
	SessionType models.SessionType `json:"session_type"`
	IssuedAt    time.Time          `json:"issued_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Active      bool               `json:"active"`
	UsageCount  int                `json:"usage_count"`
	MaxUsage    int                `json:"max_usage"`
}

func newSessionDTO(token *models.CheckInToken) sessionDTO {
	return sessionDTO{
		Token:       token.ID,
		ClassID:     token.ClassID,
		SessionType: token.SessionType,
		IssuedAt:    token.IssuedAt,
		ExpiresAt:   token.ExpiresAt,
		Active:      token.Active,
		UsageCount:  token.UsageCount,
		MaxUsage:    token.MaxUsage,
	}
}

// POST /api/checkin/sessions
func (h *CheckInHandler) OpenSession(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req openSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.sessions.OpenSession(requestContext(c), services.OpenSessionInput{
		ClassID:     req.ClassID,
		IssuedBy:    userID,
		SessionType: models.SessionType(req.SessionType),
		MaxUsage:    req.MaxUsage,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.Error(c, mapCheckInError(err))
		return
	}

	response.Success(c, http.StatusCreated, newSessionDTO(token))
}

// DELETE /api/checkin/sessions/:id
func (h *CheckInHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.CloseSession(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, mapCheckInError(err))
		return
	}
	// Closing is idempotent: unknown or already-closed tokens report closed too.
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// GET /api/checkin/sessions/:id
func (h *CheckInHandler) GetSession(c *gin.Context) {
	token, err := h.sessions.GetSession(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapCheckInError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session": newSessionDTO(token),
		"stats":   h.sessions.Stats(token),
		"usable":  h.sessions.IsUsable(token),
		"scans":   token.Scans,
	})
}

// GET /api/checkin/sessions/:id/qr
func (h *CheckInHandler) SessionQR(c *gin.Context) {
	png, err := h.sessions.QRCode(requestContext(c), c.Param("id"), 0)
	if err != nil {
		response.Error(c, mapCheckInError(err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type scanRequest struct {
	Token    string           `json:"token" validate:"required"`
	ScanType string           `json:"scan_type" validate:"omitempty,oneof=checkin checkout"`
	MemberID string           `json:"member_id" validate:"omitempty,max=64"`
	Location *models.GeoPoint `json:"location"`
}

// POST /api/checkin/scan
func (h *CheckInHandler) Scan(c *gin.Context) {
	var req scanRequest
	if !bindAndValidate(c, &req) {
		return
	}

	// Members scan as themselves; only staff tokens may scan on a member's
	// behalf (front desk kiosk) by naming the member in the payload.
	memberID := resolveMemberID(c, req.MemberID)
	if memberID == "" {
		response.Error(c, appErrors.NewBadRequest("member id is required"))
		return
	}

	scanType := models.ScanType(req.ScanType)
	if scanType == "" {
		scanType = models.ScanTypeCheckIn
	}

	result, err := h.scans.RecordScan(requestContext(c), services.RecordScanInput{
		Token:    req.Token,
		MemberID: memberID,
		ScanType: scanType,
		Location: req.Location,
	})
	if err != nil {
		response.Error(c, mapCheckInError(err))
		return
	}

	response.Success(c, http.StatusOK, result)
}

func mapCheckInError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidClass):
		return appErrors.ErrInvalidClass
	case errors.Is(err, services.ErrInvalidToken):
		return appErrors.ErrInvalidToken
	case errors.Is(err, services.ErrTokenExpired):
		return appErrors.ErrTokenExpired
	case errors.Is(err, services.ErrTokenInactive):
		return appErrors.ErrTokenInactive
	case errors.Is(err, services.ErrTokenExhausted):
		return appErrors.ErrTokenExhausted
	case errors.Is(err, services.ErrScanTypeNotAllowed):
		return appErrors.ErrScanTypeNotAllowed
	case errors.Is(err, services.ErrNotEnrolled):
		return appErrors.ErrNotEnrolled
	case errors.Is(err, services.ErrDuplicateCheckIn):
		return appErrors.ErrDuplicateCheckIn
	case errors.Is(err, services.ErrStorageUnavailable):
		return appErrors.ErrStorageUnavailable
	default:
		return err
	}
}
