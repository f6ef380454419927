package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/middleware"
	"github.com/gymstack/gymstack/internal/services"
	appErrors "github.com/gymstack/gymstack/pkg/errors"
	"github.com/gymstack/gymstack/pkg/response"
)

// EnrollmentHandler exposes roster and waitlist management for classes.
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
}

// NewEnrollmentHandler constructs an EnrollmentHandler.
func NewEnrollmentHandler(enrollments *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type enrollRequest struct {
	MemberID string `json:"member_id" validate:"omitempty,max=64"`
}

// resolveMemberID returns the acting member: members act as themselves; only
// staff tokens may name a member in the payload.
func resolveMemberID(c *gin.Context, fromBody string) string {
	if memberID := c.GetString(middleware.CtxMemberIDKey); memberID != "" {
		return memberID
	}
	if middleware.IsStaff(c) {
		return fromBody
	}
	return ""
}

// POST /api/classes/:id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	memberID := resolveMemberID(c, req.MemberID)
	if memberID == "" {
		response.Error(c, appErrors.NewBadRequest("member id is required"))
		return
	}

	result, err := h.enrollments.Enroll(requestContext(c), c.Param("id"), memberID)
	if err != nil {
		response.Error(c, mapEnrollmentError(err))
		return
	}

	status := http.StatusCreated
	if result.Status == services.SeatStatusWaitlisted {
		status = http.StatusAccepted
	}
	response.Success(c, status, result)
}

// DELETE /api/classes/:id/enroll
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	var req enrollRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	memberID := resolveMemberID(c, req.MemberID)
	if memberID == "" {
		response.Error(c, appErrors.NewBadRequest("member id is required"))
		return
	}

	result, err := h.enrollments.Cancel(requestContext(c), c.Param("id"), memberID)
	if err != nil {
		response.Error(c, mapEnrollmentError(err))
		return
	}

	payload := gin.H{"cancelled": true}
	if result.Promoted != nil {
		payload["promoted_member_id"] = result.Promoted.MemberID
	}
	response.Success(c, http.StatusOK, payload)
}

// GET /api/classes/:id/roster
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	roster, err := h.enrollments.Roster(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapEnrollmentError(err))
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"roster": roster},
		&response.Meta{Count: len(roster)})
}

// GET /api/classes/:id/waitlist
func (h *EnrollmentHandler) Waitlist(c *gin.Context) {
	waitlist, err := h.enrollments.Waitlist(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapEnrollmentError(err))
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"waitlist": waitlist},
		&response.Meta{Count: len(waitlist), Waitlisted: len(waitlist)})
}

func mapEnrollmentError(err error) error {
	switch {
	case errors.Is(err, services.ErrClassNotFound):
		return appErrors.ErrClassNotFound
	case errors.Is(err, services.ErrAlreadyEnrolled):
		return appErrors.ErrAlreadyEnrolled
	case errors.Is(err, services.ErrStorageUnavailable):
		return appErrors.ErrStorageUnavailable
	default:
		return err
	}
}
