package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/services"
	appErrors "github.com/gymstack/gymstack/pkg/errors"
	"github.com/gymstack/gymstack/pkg/response"
)

// ClassHandler exposes class CRUD plus live occupancy reads.
type ClassHandler struct {
	classes     *services.ClassService
	enrollments *services.EnrollmentService
}

// NewClassHandler constructs a ClassHandler.
func NewClassHandler(classes *services.ClassService, enrollments *services.EnrollmentService) *ClassHandler {
	return &ClassHandler{classes: classes, enrollments: enrollments}
}

type createClassRequest struct {
	Name      string    `json:"name" validate:"required,max=255"`
	TrainerID string    `json:"trainer_id" validate:"omitempty,max=64"`
	Capacity  int       `json:"capacity" validate:"required,gt=0"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required"`
	Location  string    `json:"location" validate:"omitempty,max=255"`
}

// POST /api/classes
func (h *ClassHandler) Create(c *gin.Context) {
	var req createClassRequest
	if !bindAndValidate(c, &req) {
		return
	}

	class, err := h.classes.Create(requestContext(c), services.CreateClassInput{
		Name:      req.Name,
		TrainerID: req.TrainerID,
		Capacity:  req.Capacity,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Location:  req.Location,
	})
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	response.Success(c, http.StatusCreated, class)
}

// GET /api/classes
func (h *ClassHandler) List(c *gin.Context) {
	classes, err := h.classes.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"classes": classes},
		&response.Meta{Count: len(classes)})
}

// GET /api/classes/:id
func (h *ClassHandler) Get(c *gin.Context) {
	ctx := requestContext(c)

	class, err := h.classes.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, mapClassError(err))
		return
	}

	enrolled, err := h.enrollments.ActiveCount(ctx, class.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	waitlist, err := h.enrollments.Waitlist(ctx, class.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"class":      class,
		"enrolled":   enrolled,
		"waitlisted": len(waitlist),
	})
}

// DELETE /api/classes/:id
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, mapClassError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func mapClassError(err error) error {
	if errors.Is(err, services.ErrClassNotFound) {
		return appErrors.ErrClassNotFound
	}
	if errors.Is(err, services.ErrStorageUnavailable) {
		return appErrors.ErrStorageUnavailable
	}
	return err
}
